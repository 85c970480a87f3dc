package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dealspot/dealspot-api/internal/bus"
	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/cache"
	"github.com/dealspot/dealspot-api/internal/infra/observability"
	"github.com/dealspot/dealspot-api/internal/session"
	"github.com/dealspot/dealspot-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRemote struct {
	mu      sync.Mutex
	failAll bool
	upserts int
}

func (f *fakeRemote) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return nil, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, collection, id string, doc any) error {
	if f.failAll {
		return &domain.ErrRemoteWriteFailed{Collection: collection, Err: errors.New("upstream down")}
	}
	f.mu.Lock()
	f.upserts++
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	if f.failAll {
		return &domain.ErrRemoteWriteFailed{Collection: collection, Err: errors.New("upstream down")}
	}
	return nil
}

type env struct {
	entities *store.Store
	sessions *session.Store
	ledger   *LedgerService
}

func newEnv(t *testing.T, remote *fakeRemote) *env {
	t.Helper()
	metrics := observability.NewMetrics()
	b := bus.New(metrics)
	logger := zap.NewNop()

	var entities *store.Store
	if remote == nil {
		entities = store.New(nil, b, metrics, logger)
	} else {
		entities = store.New(remote, b, metrics, logger)
	}
	sessions := session.NewStore(entities, b, "test-secret", time.Hour, logger)
	seen := cache.New[domain.RedeemResult](time.Hour)
	t.Cleanup(seen.Close)
	return &env{
		entities: entities,
		sessions: sessions,
		ledger:   NewLedgerService(sessions, entities, seen, metrics, logger),
	}
}

func (e *env) loginAna(t *testing.T) string {
	t.Helper()
	resp, err := e.sessions.Login(context.Background(), &domain.LoginRequest{
		Email:    "ana@example.com",
		Password: "ana-secret",
	})
	require.NoError(t, err)
	_, sid, err := e.sessions.Authenticate(resp.Token)
	require.NoError(t, err)
	return sid
}

func TestRedeem_RecordsSaving(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	// 50.00 original, 42.50 discounted: the ledger gains 7.50.
	res, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-brunch-for-two"})
	require.NoError(t, err)

	assert.True(t, res.Record.Amount.Equal(decimal.RequireFromString("7.50")),
		"saving = %s", res.Record.Amount)
	assert.True(t, res.SavedAmount.Equal(decimal.RequireFromString("7.50")))
	assert.Equal(t, "cpn-brunch-for-two", res.Record.CouponID)
	assert.True(t, res.RemoteSynced)

	u, err := e.sessions.CurrentUser(sid)
	require.NoError(t, err)
	require.Len(t, u.History, 1)
	assert.True(t, u.SavedAmount.Equal(res.SavedAmount))
}

func TestRedeem_LedgerStaysConsistent(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	ids := []string{"cpn-brunch-for-two", "cpn-kayak-day", "cpn-salt-room", "cpn-brunch-for-two"}
	for _, id := range ids {
		_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: id})
		require.NoError(t, err)
	}

	u, err := e.sessions.CurrentUser(sid)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, rec := range u.History {
		sum = sum.Add(rec.Amount)
	}
	assert.True(t, u.SavedAmount.Equal(sum),
		"saved %s != history sum %s", u.SavedAmount, sum)
	assert.Len(t, u.History, len(ids))
}

func TestRedeem_Anonymous(t *testing.T) {
	e := newEnv(t, &fakeRemote{})

	_, err := e.ledger.Redeem(context.Background(), "no-session", &domain.RedeemRequest{CouponID: "cpn-brunch-for-two"})
	var notAuth *domain.ErrNotAuthenticated
	require.ErrorAs(t, err, &notAuth)
}

func TestRedeem_UnknownCoupon(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-missing"})
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestRedeem_PerUserLimit(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	// cpn-kayak-day allows one redemption per user.
	_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-kayak-day"})
	require.NoError(t, err)

	_, err = e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-kayak-day"})
	var limit *domain.ErrLimitReached
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, "user", limit.Scope)
	assert.Equal(t, 1, limit.Limit)
}

func TestRedeem_GlobalLimit(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	max := 3
	require.NoError(t, e.entities.ApplySnapshot(snapshotWithCoupon(t, domain.Coupon{
		ID:                 "cpn-full",
		CompanyID:          "biz-copper-kettle",
		Title:              "Sold Out Deal",
		OriginalPrice:      decimal.NewFromInt(20),
		DiscountedPrice:    decimal.NewFromInt(10),
		Active:             true,
		CurrentRedemptions: 3,
		MaxRedemptions:     &max,
	})))

	_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-full"})
	var limit *domain.ErrLimitReached
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, "coupon", limit.Scope)
}

func TestRedeem_InactiveCoupon(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	require.NoError(t, e.entities.ApplySnapshot(snapshotWithCoupon(t, domain.Coupon{
		ID:              "cpn-paused",
		CompanyID:       "biz-copper-kettle",
		Title:           "Paused Deal",
		OriginalPrice:   decimal.NewFromInt(20),
		DiscountedPrice: decimal.NewFromInt(10),
		Active:          false,
	})))

	_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-paused"})
	var invalid *domain.ErrValidation
	require.ErrorAs(t, err, &invalid)
}

func TestRedeem_NegativeSavingRejected(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	require.NoError(t, e.entities.ApplySnapshot(snapshotWithCoupon(t, domain.Coupon{
		ID:              "cpn-upside-down",
		CompanyID:       "biz-copper-kettle",
		Title:           "Mispriced Deal",
		OriginalPrice:   decimal.NewFromInt(10),
		DiscountedPrice: decimal.NewFromInt(20),
		Active:          true,
	})))

	_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-upside-down"})
	var invalid *domain.ErrValidation
	require.ErrorAs(t, err, &invalid)

	// Nothing was recorded.
	u, uerr := e.sessions.CurrentUser(sid)
	require.NoError(t, uerr)
	assert.Empty(t, u.History)
}

func TestRedeem_IdempotencyKeyReplay(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	req := &domain.RedeemRequest{CouponID: "cpn-brunch-for-two", IdempotencyKey: "claim-001"}
	_, err := e.ledger.Redeem(context.Background(), sid, req)
	require.NoError(t, err)

	_, err = e.ledger.Redeem(context.Background(), sid, req)
	var dup *domain.ErrDuplicate
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "claim-001", dup.Key)

	// A fresh key on the same coupon still works (per-user limit is 2).
	_, err = e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-brunch-for-two", IdempotencyKey: "claim-002"})
	require.NoError(t, err)
}

func TestRedeem_ConcurrentSameKeySingleCommit(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	const workers = 8
	start := make(chan struct{})
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{
				CouponID:       "cpn-brunch-for-two",
				IdempotencyKey: "claim-race",
			})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var committed, replayed int
	for err := range errs {
		switch {
		case err == nil:
			committed++
		default:
			var dup *domain.ErrDuplicate
			require.ErrorAs(t, err, &dup)
			replayed++
		}
	}
	assert.Equal(t, 1, committed, "one shared key must commit exactly once")
	assert.Equal(t, workers-1, replayed)

	u, err := e.sessions.CurrentUser(sid)
	require.NoError(t, err)
	require.Len(t, u.History, 1)

	c, err := e.entities.Coupon(context.Background(), "cpn-brunch-for-two")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentRedemptions)
}

func TestRedeem_ConcurrentDistinctKeysAllRecorded(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	require.NoError(t, e.entities.ApplySnapshot(snapshotWithCoupon(t, domain.Coupon{
		ID:              "cpn-open-bar",
		CompanyID:       "biz-copper-kettle",
		Title:           "Unlimited Deal",
		OriginalPrice:   decimal.NewFromInt(12),
		DiscountedPrice: decimal.NewFromInt(9),
		Active:          true,
	})))

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{
				CouponID:       "cpn-open-bar",
				IdempotencyKey: fmt.Sprintf("claim-%d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	close(start)
	wg.Wait()

	// No concurrent commit may overwrite another's record.
	u, err := e.sessions.CurrentUser(sid)
	require.NoError(t, err)
	require.Len(t, u.History, workers)
	sum := decimal.Zero
	for _, rec := range u.History {
		sum = sum.Add(rec.Amount)
	}
	assert.True(t, u.SavedAmount.Equal(sum))
	assert.True(t, sum.Equal(decimal.NewFromInt(3*workers)))
}

func TestRedeem_ZeroSavingRejected(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	require.NoError(t, e.entities.ApplySnapshot(snapshotWithCoupon(t, domain.Coupon{
		ID:              "cpn-break-even",
		CompanyID:       "biz-copper-kettle",
		Title:           "Break Even",
		OriginalPrice:   decimal.NewFromInt(20),
		DiscountedPrice: decimal.NewFromInt(20),
		Active:          true,
	})))

	_, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-break-even"})
	var invalid *domain.ErrValidation
	require.ErrorAs(t, err, &invalid)

	u, uerr := e.sessions.CurrentUser(sid)
	require.NoError(t, uerr)
	assert.Empty(t, u.History)
}

func TestRedeem_RemoteFailureStillCommits(t *testing.T) {
	e := newEnv(t, &fakeRemote{failAll: true})
	sid := e.loginAna(t)

	res, err := e.ledger.Redeem(context.Background(), sid, &domain.RedeemRequest{CouponID: "cpn-brunch-for-two"})
	require.NoError(t, err, "a failed counter push must not void the redemption")
	assert.False(t, res.RemoteSynced)

	u, uerr := e.sessions.CurrentUser(sid)
	require.NoError(t, uerr)
	require.Len(t, u.History, 1)
	assert.True(t, u.SavedAmount.Equal(decimal.RequireFromString("7.50")))
}

func TestSavings_EmptyLedger(t *testing.T) {
	e := newEnv(t, &fakeRemote{})
	sid := e.loginAna(t)

	sum, err := e.ledger.Savings(context.Background(), sid)
	require.NoError(t, err)
	assert.True(t, sum.SavedAmount.IsZero())
	assert.NotNil(t, sum.History)
	assert.Empty(t, sum.History)
}

func TestSavings_Anonymous(t *testing.T) {
	e := newEnv(t, &fakeRemote{})

	_, err := e.ledger.Savings(context.Background(), "no-session")
	var notAuth *domain.ErrNotAuthenticated
	require.ErrorAs(t, err, &notAuth)
}

// snapshotWithCoupon builds a coupons snapshot containing the seed
// coupons plus the given one, so applying it never trips the
// empty-snapshot guard or drops the fixtures tests rely on.
func snapshotWithCoupon(t *testing.T, extra domain.Coupon) domain.Snapshot {
	t.Helper()

	metrics := observability.NewMetrics()
	pristine := store.New(nil, bus.New(metrics), metrics, zap.NewNop())
	coupons, err := pristine.Coupons(context.Background())
	require.NoError(t, err)
	coupons = append(coupons, extra)

	docs := make([]json.RawMessage, 0, len(coupons))
	for _, c := range coupons {
		raw, err := json.Marshal(c)
		require.NoError(t, err)
		docs = append(docs, raw)
	}
	return domain.Snapshot{Collection: "coupons", Docs: docs}
}
