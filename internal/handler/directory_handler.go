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
// Directory reads
// ============================================================

func listBusinessesHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/businesses")
		defer span.End()

		writeJSON(w, http.StatusOK, map[string]any{"businesses": directory.Businesses(ctx)})
	}
}

func businessesNearHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/businesses/near")
		defer span.End()

		address := r.URL.Query().Get("address")
		if address == "" {
			writeError(w, http.StatusBadRequest, "address is required")
			return
		}
		radiusKm := parseFloatQuery(r, "radius_km", 10)
		span.SetAttributes(attribute.String("address", address), attribute.Float64("radius_km", radiusKm))

		nearby, err := directory.BusinessesNear(ctx, address, radiusKm)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if nearby == nil {
			nearby = []domain.BusinessProfile{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"businesses": nearby})
	}
}

func getBusinessHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/businesses/{businessId}")
		defer span.End()

		biz, err := directory.Business(ctx, chi.URLParam(r, "businessId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, biz)
	}
}

func listCouponsHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/coupons")
		defer span.End()

		coupons, err := directory.Coupons(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// ?company_id= narrows to one business's deals.
		if companyID := r.URL.Query().Get("company_id"); companyID != "" {
			filtered := make([]domain.Coupon, 0, len(coupons))
			for _, c := range coupons {
				if c.CompanyID == companyID {
					filtered = append(filtered, c)
				}
			}
			coupons = filtered
		}

		writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
	}
}

func getCouponHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/coupons/{couponId}")
		defer span.End()

		coupon, err := directory.Coupon(ctx, chi.URLParam(r, "couponId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, coupon)
	}
}

func listBlogPostsHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/blog")
		defer span.End()
		writeJSON(w, http.StatusOK, map[string]any{"posts": directory.BlogPosts(ctx)})
	}
}

func listCollectionsHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/collections")
		defer span.End()
		writeJSON(w, http.StatusOK, map[string]any{"collections": directory.Collections(ctx)})
	}
}

func listLocationsHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/locations")
		defer span.End()
		writeJSON(w, http.StatusOK, map[string]any{"locations": directory.Locations(ctx)})
	}
}

func listCategoriesHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()
		writeJSON(w, http.StatusOK, map[string]any{"categories": directory.Categories(ctx)})
	}
}

// ============================================================
// Company-side writes
// ============================================================

func saveBusinessHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/businesses/{businessId}")
		defer span.End()

		var biz domain.BusinessProfile
		if err := json.NewDecoder(r.Body).Decode(&biz); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		biz.ID = chi.URLParam(r, "businessId")

		if err := directory.SaveBusiness(ctx, SessionIDFromContext(ctx), &biz); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, biz)
	}
}

func saveCouponHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/coupons/{couponId}")
		defer span.End()

		var coupon domain.Coupon
		if err := json.NewDecoder(r.Body).Decode(&coupon); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if id := chi.URLParam(r, "couponId"); id != "" {
			coupon.ID = id
		}

		if err := directory.SaveCoupon(ctx, SessionIDFromContext(ctx), &coupon); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, coupon)
	}
}

func deleteCouponHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/coupons/{couponId}")
		defer span.End()

		if err := directory.DeleteCoupon(ctx, SessionIDFromContext(ctx), chi.URLParam(r, "couponId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Onboarding requests
// ============================================================

func submitCompanyRequestHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/company-requests")
		defer span.End()

		var req domain.CompanyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := directory.SubmitCompanyRequest(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func submitClaimRequestHandler(directory *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/claim-requests")
		defer span.End()

		var req domain.ClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := directory.SubmitClaimRequest(ctx, SessionIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}
