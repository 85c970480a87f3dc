// Package handler wires the HTTP surface: routing, auth middleware and
// the JSON codecs around the service layer.
package handler

import (
	"net/http"
	"time"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/observability"
	"github.com/dealspot/dealspot-api/internal/port"
	"github.com/dealspot/dealspot-api/internal/service"
	"github.com/dealspot/dealspot-api/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles the dependencies the router needs.
type Services struct {
	Sessions  *session.Store
	Ledger    *service.LedgerService
	Favorites *service.FavoritesService
	Directory *service.DirectoryService
	Content   *service.ContentService
	DocStore  port.DocumentStore // may be nil when running local-only
	Metrics   *observability.Metrics
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.DocStore, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(svcs.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Auth
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", loginHandler(svcs.Sessions, logger))
			r.Group(func(r chi.Router) {
				r.Use(Auth(svcs.Sessions, logger))
				r.Post("/logout", logoutHandler(svcs.Sessions, logger))
			})
		})

		// Directory (public reads)
		r.Get("/businesses", listBusinessesHandler(svcs.Directory, logger))
		r.Get("/businesses/near", businessesNearHandler(svcs.Directory, logger))
		r.Get("/businesses/{businessId}", getBusinessHandler(svcs.Directory, logger))
		r.Get("/coupons", listCouponsHandler(svcs.Directory, logger))
		r.Get("/coupons/{couponId}", getCouponHandler(svcs.Directory, logger))
		r.Get("/blog", listBlogPostsHandler(svcs.Directory, logger))
		r.Get("/collections", listCollectionsHandler(svcs.Directory, logger))
		r.Get("/locations", listLocationsHandler(svcs.Directory, logger))
		r.Get("/categories", listCategoriesHandler(svcs.Directory, logger))

		// Onboarding (public; claim requests attach the requester when
		// a valid session rides along)
		r.Post("/company-requests", submitCompanyRequestHandler(svcs.Directory, logger))
		r.With(OptionalAuth(svcs.Sessions)).
			Post("/claim-requests", submitClaimRequestHandler(svcs.Directory, logger))

		// Sync metrics
		r.Get("/metrics/sync", syncMetricsHandler(svcs.Metrics))

		// Authenticated surface
		r.Group(func(r chi.Router) {
			r.Use(Auth(svcs.Sessions, logger))

			r.Get("/me", currentUserHandler(svcs.Sessions, logger))
			r.Get("/me/savings", savingsHandler(svcs.Ledger, logger))
			r.Get("/me/favorites", listFavoritesHandler(svcs.Favorites, logger))
			r.Post("/favorites/{kind}/{id}/toggle", toggleFavoriteHandler(svcs.Favorites, logger))

			r.Post("/coupons/{couponId}/redeem", redeemHandler(svcs.Ledger, logger))

			// Company-side writes
			r.Put("/businesses/{businessId}", saveBusinessHandler(svcs.Directory, logger))
			r.Post("/coupons", saveCouponHandler(svcs.Directory, logger))
			r.Put("/coupons/{couponId}", saveCouponHandler(svcs.Directory, logger))
			r.Delete("/coupons/{couponId}", deleteCouponHandler(svcs.Directory, logger))

			// Generated content
			r.Post("/content/description", contentDescriptionHandler(svcs.Content, logger))
			r.Post("/content/listing", contentListingHandler(svcs.Content, logger))
			r.Post("/content/listings", contentListingsHandler(svcs.Content, logger))
		})
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(docStore port.DocumentStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "dealspot-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if docStore != nil {
			start := time.Now()
			_, err := docStore.List(ctx, "businesses")
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "docstore", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func syncMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetSyncSnapshot())
	}
}
