// Package service holds the use-case layer: the savings ledger,
// favorites, directory and generated-content services. Services take
// the session and entity stores plus the outbound ports, and return
// typed domain errors the handlers map to HTTP.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/observability"
	"github.com/dealspot/dealspot-api/internal/port"
	"github.com/dealspot/dealspot-api/internal/session"
	"github.com/dealspot/dealspot-api/internal/store"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService owns the savings ledger: redemptions append an
// immutable savings record and keep the running total equal to the sum
// of the history.
type LedgerService struct {
	sessions *session.Store
	entities *store.Store
	metrics  *observability.Metrics
	logger   *zap.Logger

	// Committed results by idempotency key. The TTL cache evicts old
	// keys so the map does not grow for the process lifetime.
	seen port.Cache[domain.RedeemResult]

	mu    sync.Mutex
	users map[string]*sync.Mutex // per-user commit locks
}

func NewLedgerService(sessions *session.Store, entities *store.Store, seen port.Cache[domain.RedeemResult], metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		sessions: sessions,
		entities: entities,
		seen:     seen,
		metrics:  metrics,
		logger:   logger,
		users:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the commit lock for one user. Locks are never
// evicted; the map is bounded by the number of distinct users.
func (s *LedgerService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.users[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.users[userID] = mu
	}
	return mu
}

// ============================================================
// Redeem — POST /v1/coupons/{id}/redeem
// ============================================================

func (s *LedgerService) Redeem(ctx context.Context, sid string, req *domain.RedeemRequest) (*domain.RedeemResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Redeem")
	defer span.End()
	span.SetAttributes(attribute.String("coupon_id", req.CouponID))

	user, err := s.sessions.CurrentUser(sid)
	if err != nil {
		s.metrics.IncrRedemption("not_authenticated")
		return nil, err
	}

	// One commit at a time per user: the idempotency check, the
	// per-user limit and the ledger append below are only consistent
	// while no concurrent redemption by the same user can interleave.
	lock := s.userLock(user.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; a redemption that committed while we
	// waited must be visible to the checks below.
	user, err = s.sessions.CurrentUser(sid)
	if err != nil {
		s.metrics.IncrRedemption("not_authenticated")
		return nil, err
	}

	coupon, err := s.entities.Coupon(ctx, req.CouponID)
	if err != nil {
		s.metrics.IncrRedemption("not_found")
		return nil, err
	}

	if !coupon.Active {
		s.metrics.IncrRedemption("inactive")
		return nil, &domain.ErrValidation{Field: "coupon_id", Message: "coupon is not active"}
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now()) {
		s.metrics.IncrRedemption("expired")
		return nil, &domain.ErrValidation{Field: "coupon_id", Message: "coupon has expired"}
	}

	// Fast-fail on an obviously exhausted coupon; the store re-checks
	// the cap under its own lock when the counter moves.
	if coupon.MaxRedemptions != nil && coupon.CurrentRedemptions >= *coupon.MaxRedemptions {
		s.metrics.IncrRedemption("limit_reached")
		return nil, &domain.ErrLimitReached{CouponID: coupon.ID, Scope: "coupon", Limit: *coupon.MaxRedemptions}
	}
	if coupon.LimitPerUser != nil && user.RedemptionsOf(coupon.ID) >= *coupon.LimitPerUser {
		s.metrics.IncrRedemption("limit_reached")
		return nil, &domain.ErrLimitReached{CouponID: coupon.ID, Scope: "user", Limit: *coupon.LimitPerUser}
	}

	saving := coupon.Saving()
	if !saving.IsPositive() {
		s.metrics.IncrRedemption("invalid_saving")
		return nil, &domain.ErrValidation{Field: "discounted_price", Message: "discounted price must be below the original price"}
	}

	// Idempotency: a replayed claim neither double-counts nor
	// re-increments; the client already has the result. Checked under
	// the user lock, so two in-flight requests with the same key
	// cannot both commit.
	idemKey := ""
	if req.IdempotencyKey != "" {
		idemKey = user.ID + ":" + req.IdempotencyKey
		if _, replayed := s.seen.Get(idemKey); replayed {
			s.metrics.IncrRedemption("duplicate")
			return nil, &domain.ErrDuplicate{Key: req.IdempotencyKey}
		}
	}

	// Counter first: the store enforces the global cap atomically, so
	// nothing reaches the ledger when the last slot is already gone.
	count, err := s.entities.IncrementCouponRedemptions(ctx, coupon.ID)
	var remoteErr error
	if err != nil {
		var limit *domain.ErrLimitReached
		var write *domain.ErrRemoteWriteFailed
		switch {
		case errors.As(err, &limit):
			s.metrics.IncrRedemption("limit_reached")
			return nil, err
		case errors.As(err, &write):
			remoteErr = err // bumped locally, push failed
		default:
			s.metrics.IncrRedemption("not_found")
			return nil, err
		}
	}

	record := domain.SavingsRecord{
		Date:        time.Now().UTC(),
		Amount:      saving,
		CouponTitle: coupon.Title,
		CouponID:    coupon.ID,
	}
	user.History = append(user.History, record)
	user.SavedAmount = user.SavedAmount.Add(saving)

	if err := s.sessions.UpdateUser(sid, user); err != nil {
		// The session vanished between the re-read and the commit; the
		// counter already advanced, leaving a rare orphan bump.
		s.metrics.IncrRedemption("session_lost")
		return nil, err
	}

	result := domain.RedeemResult{
		Record:             record,
		SavedAmount:        user.SavedAmount,
		CurrentRedemptions: count,
		RemoteSynced:       remoteErr == nil,
	}

	if idemKey != "" {
		s.seen.Set(idemKey, result)
	}

	if remoteErr != nil {
		s.metrics.IncrRedemption("remote_lag")
		s.logger.Warn("redemption committed but counter push failed",
			zap.String("coupon_id", coupon.ID),
			zap.String("user_id", user.ID),
			zap.Error(remoteErr),
		)
	} else {
		s.metrics.IncrRedemption("success")
	}

	s.logger.Info("coupon redeemed",
		zap.String("coupon_id", coupon.ID),
		zap.String("user_id", user.ID),
		zap.String("saving", saving.String()),
		zap.Int("current_redemptions", count),
	)

	return &result, nil
}

// ============================================================
// Savings — GET /v1/me/savings
// ============================================================

// SavingsSummary is the ledger view for one user.
type SavingsSummary struct {
	SavedAmount decimal.Decimal        `json:"saved_amount"`
	History     []domain.SavingsRecord `json:"history"`
}

func (s *LedgerService) Savings(ctx context.Context, sid string) (*SavingsSummary, error) {
	_, span := ledgerTracer.Start(ctx, "LedgerService.Savings")
	defer span.End()

	user, err := s.sessions.CurrentUser(sid)
	if err != nil {
		return nil, err
	}

	history := user.History
	if history == nil {
		history = []domain.SavingsRecord{}
	}
	return &SavingsSummary{SavedAmount: user.SavedAmount, History: history}, nil
}
