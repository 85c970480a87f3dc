package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ledger — POST /v1/coupons/{couponId}/redeem, GET /v1/me/savings
// ============================================================

func redeemHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/coupons/{couponId}/redeem")
		defer span.End()

		couponID := chi.URLParam(r, "couponId")
		span.SetAttributes(attribute.String("coupon.id", couponID))

		// The body is optional; it carries only the idempotency key.
		var body struct {
			IdempotencyKey string `json:"idempotency_key"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		result, err := ledger.Redeem(ctx, SessionIDFromContext(ctx), &domain.RedeemRequest{
			CouponID:       couponID,
			IdempotencyKey: body.IdempotencyKey,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func savingsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/savings")
		defer span.End()

		summary, err := ledger.Savings(ctx, SessionIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// ============================================================
// Favorites — POST /v1/favorites/{kind}/{id}/toggle, GET /v1/me/favorites
// ============================================================

func toggleFavoriteHandler(favorites *service.FavoritesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/favorites/{kind}/{id}/toggle")
		defer span.End()

		kind := chi.URLParam(r, "kind")
		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("kind", kind), attribute.String("id", id))

		f, err := favorites.Toggle(ctx, SessionIDFromContext(ctx), kind, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func listFavoritesHandler(favorites *service.FavoritesService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/favorites")
		defer span.End()

		f, err := favorites.Favorites(ctx, SessionIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}
