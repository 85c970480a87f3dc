package service

import (
	"context"
	"testing"

	"github.com/dealspot/dealspot-api/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFavorites(t *testing.T) (*FavoritesService, *env, string) {
	t.Helper()
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)
	return NewFavoritesService(e.sessions, zap.NewNop()), e, sid
}

func TestToggle_AddThenRemove(t *testing.T) {
	svc, _, sid := newFavorites(t)

	f, err := svc.Toggle(context.Background(), sid, FavoriteCoupon, "cpn-brunch-for-two")
	require.NoError(t, err)
	assert.True(t, f.HasCoupon("cpn-brunch-for-two"))

	// Toggling again restores the original set.
	f, err = svc.Toggle(context.Background(), sid, FavoriteCoupon, "cpn-brunch-for-two")
	require.NoError(t, err)
	assert.False(t, f.HasCoupon("cpn-brunch-for-two"))
	assert.Empty(t, f.CouponIDs)
}

func TestToggle_KindsAreIndependent(t *testing.T) {
	svc, _, sid := newFavorites(t)

	_, err := svc.Toggle(context.Background(), sid, FavoriteCoupon, "shared-id")
	require.NoError(t, err)
	f, err := svc.Toggle(context.Background(), sid, FavoriteBusiness, "shared-id")
	require.NoError(t, err)

	assert.True(t, f.HasCoupon("shared-id"))
	assert.True(t, f.HasBusiness("shared-id"))

	f, err = svc.Toggle(context.Background(), sid, FavoriteBusiness, "shared-id")
	require.NoError(t, err)
	assert.True(t, f.HasCoupon("shared-id"), "removing the business must not touch the coupon set")
	assert.False(t, f.HasBusiness("shared-id"))
}

func TestToggle_UnsyncedIDAccepted(t *testing.T) {
	svc, _, sid := newFavorites(t)

	// No directory lookup: an ID the replica has not seen still toggles.
	f, err := svc.Toggle(context.Background(), sid, FavoriteBusiness, "biz-not-synced-yet")
	require.NoError(t, err)
	assert.True(t, f.HasBusiness("biz-not-synced-yet"))
}

func TestToggle_Anonymous(t *testing.T) {
	svc, _, _ := newFavorites(t)

	_, err := svc.Toggle(context.Background(), "no-session", FavoriteCoupon, "cpn-brunch-for-two")
	var notAuth *domain.ErrNotAuthenticated
	require.ErrorAs(t, err, &notAuth)
}

func TestToggle_BadKind(t *testing.T) {
	svc, _, sid := newFavorites(t)

	_, err := svc.Toggle(context.Background(), sid, "blogpost", "some-id")
	var invalid *domain.ErrValidation
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "kind", invalid.Field)
}

func TestToggle_EmptyID(t *testing.T) {
	svc, _, sid := newFavorites(t)

	_, err := svc.Toggle(context.Background(), sid, FavoriteCoupon, "")
	var invalid *domain.ErrValidation
	require.ErrorAs(t, err, &invalid)
}

func TestFavorites_EmptySetsNotNil(t *testing.T) {
	svc, _, sid := newFavorites(t)

	f, err := svc.Favorites(context.Background(), sid)
	require.NoError(t, err)
	assert.NotNil(t, f.CouponIDs)
	assert.NotNil(t, f.BusinessIDs)
}

func TestFavorites_SurviveRedeem(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)
	svc := NewFavoritesService(e.sessions, zap.NewNop())

	_, err := svc.Toggle(context.Background(), sid, FavoriteCoupon, "cpn-kayak-day")
	require.NoError(t, err)

	_, err = e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-brunch-for-two"})
	require.NoError(t, err)

	f, err := svc.Favorites(context.Background(), sid)
	require.NoError(t, err)
	assert.True(t, f.HasCoupon("cpn-kayak-day"))
}
