package service

import (
	"context"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var favoritesTracer = otel.Tracer("service/favorites")

// Favorite kinds accepted by Toggle.
const (
	FavoriteCoupon   = "coupon"
	FavoriteBusiness = "business"
)

// FavoritesService flips per-user favorite membership. Toggling is its
// own inverse: two toggles of the same ID restore the original set.
type FavoritesService struct {
	sessions *session.Store
	logger   *zap.Logger
}

func NewFavoritesService(sessions *session.Store, logger *zap.Logger) *FavoritesService {
	return &FavoritesService{sessions: sessions, logger: logger}
}

// ============================================================
// Toggle — POST /v1/favorites/{kind}/{id}/toggle
// ============================================================

// Toggle adds id to the user's favorite set of the given kind, or
// removes it if already present, and returns the updated sets. The ID
// is not checked against the directory: a favorite may point at an
// entity this replica has not synced yet.
func (s *FavoritesService) Toggle(ctx context.Context, sid, kind, id string) (*domain.Favorites, error) {
	_, span := favoritesTracer.Start(ctx, "FavoritesService.Toggle")
	defer span.End()
	span.SetAttributes(attribute.String("kind", kind), attribute.String("id", id))

	user, err := s.sessions.CurrentUser(sid)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "id is required"}
	}

	switch kind {
	case FavoriteCoupon:
		user.Favorites.CouponIDs = toggleID(user.Favorites.CouponIDs, id)
	case FavoriteBusiness:
		user.Favorites.BusinessIDs = toggleID(user.Favorites.BusinessIDs, id)
	default:
		return nil, &domain.ErrValidation{Field: "kind", Message: "kind must be coupon or business"}
	}

	if err := s.sessions.UpdateUser(sid, user); err != nil {
		return nil, err
	}

	s.logger.Debug("favorite toggled",
		zap.String("user_id", user.ID),
		zap.String("kind", kind),
		zap.String("id", id),
	)
	return &user.Favorites, nil
}

// ============================================================
// Favorites — GET /v1/me/favorites
// ============================================================

func (s *FavoritesService) Favorites(ctx context.Context, sid string) (*domain.Favorites, error) {
	_, span := favoritesTracer.Start(ctx, "FavoritesService.Favorites")
	defer span.End()

	user, err := s.sessions.CurrentUser(sid)
	if err != nil {
		return nil, err
	}

	f := user.Favorites
	if f.CouponIDs == nil {
		f.CouponIDs = []string{}
	}
	if f.BusinessIDs == nil {
		f.BusinessIDs = []string{}
	}
	return &f, nil
}

func toggleID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return append(append([]string(nil), ids...), id)
}
