package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dealspot/dealspot-api/internal/bus"
	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/handler"
	"github.com/dealspot/dealspot-api/internal/infra/cache"
	"github.com/dealspot/dealspot-api/internal/infra/observability"
	"github.com/dealspot/dealspot-api/internal/service"
	"github.com/dealspot/dealspot-api/internal/session"
	"github.com/dealspot/dealspot-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct{}

func (stubGenerator) GenerateDescription(_ context.Context, req *domain.ContentRequest) (string, error) {
	return "Generated copy for " + req.CompanyName + ".", nil
}

func (stubGenerator) GenerateListing(_ context.Context, req *domain.ContentRequest) (*domain.GeneratedListing, error) {
	return &domain.GeneratedListing{Title: req.CompanyName, Description: "Generated."}, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, address string) (*domain.Coordinates, error) {
	return &domain.Coordinates{Lat: 52.52, Lng: 13.405}, nil
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	metrics := observability.NewMetrics()
	b := bus.New(metrics)
	logger := zap.NewNop()

	entities := store.New(nil, b, metrics, logger)
	sessions := session.NewStore(entities, b, "test-secret", time.Hour, logger)

	descs := cache.New[string](time.Minute)
	listings := cache.New[*domain.GeneratedListing](time.Minute)
	seen := cache.New[domain.RedeemResult](time.Minute)
	t.Cleanup(descs.Close)
	t.Cleanup(listings.Close)
	t.Cleanup(seen.Close)

	return handler.NewRouter(handler.Services{
		Sessions:  sessions,
		Ledger:    service.NewLedgerService(sessions, entities, seen, metrics, logger),
		Favorites: service.NewFavoritesService(sessions, logger),
		Directory: service.NewDirectoryService(entities, sessions, stubGeocoder{}, logger),
		Content:   service.NewContentService(stubGenerator{}, descs, listings, metrics, logger),
		Metrics:   metrics,
	}, logger)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, router http.Handler, email, password string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func TestHealthz(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListCoupons_Public(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/coupons", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Coupons []domain.Coupon `json:"coupons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Coupons)
}

func TestGetCoupon_NotFound(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/coupons/cpn-missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedeem_RequiresAuth(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/v1/coupons/cpn-brunch-for-two/redeem", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRedeem_FullFlow(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "ana@example.com", "ana-secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/coupons/cpn-brunch-for-two/redeem", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result domain.RedeemResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.SavedAmount.Equal(decimal.RequireFromString("7.5")),
		"saved %s", result.SavedAmount)

	// The ledger endpoint reflects the new record.
	rec = doJSON(t, router, http.MethodGet, "/v1/me/savings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary service.SavingsSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.History, 1)
	assert.True(t, summary.SavedAmount.Equal(result.SavedAmount))
}

func TestRedeem_DuplicateIdempotencyKey(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "ana@example.com", "ana-secret")
	body := map[string]string{"idempotency_key": "claim-1"}

	rec := doJSON(t, router, http.MethodPost, "/v1/coupons/cpn-brunch-for-two/redeem", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/coupons/cpn-brunch-for-two/redeem", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestToggleFavorite_FullFlow(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "ana@example.com", "ana-secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/favorites/coupon/cpn-kayak-day/toggle", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var f domain.Favorites
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.True(t, f.HasCoupon("cpn-kayak-day"))

	rec = doJSON(t, router, http.MethodPost, "/v1/favorites/coupon/cpn-kayak-day/toggle", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.False(t, f.HasCoupon("cpn-kayak-day"))
}

func TestToggleFavorite_BadKind(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "ana@example.com", "ana-secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/favorites/blog/some-id/toggle", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveCoupon_ForbiddenForCustomer(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "ana@example.com", "ana-secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/coupons", token, domain.Coupon{
		CompanyID: "biz-copper-kettle",
		Title:     "Afternoon Tea",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteCoupon_NoRemoteIsBadGateway(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "marta@copperkettle.example", "marta-secret")

	// Owner check passes; the write fails because no remote store is
	// configured in this test wiring.
	rec := doJSON(t, router, http.MethodDelete, "/v1/coupons/cpn-brunch-for-two", token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "ana@example.com", "ana-secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContentDescription(t *testing.T) {
	router := newRouter(t)
	token := loginToken(t, router, "marta@copperkettle.example", "marta-secret")

	rec := doJSON(t, router, http.MethodPost, "/v1/content/description", token, domain.ContentRequest{
		CompanyName: "Copper Kettle",
		Category:    "Cafe",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["description"], "Copper Kettle")
}

func TestCompanyRequest_Public(t *testing.T) {
	router := newRouter(t)

	// No remote store: the submission is accepted by the service but
	// the write fails with 502.
	rec := doJSON(t, router, http.MethodPost, "/v1/company-requests", "", domain.CompanyRequest{
		BusinessName: "Harbor Books",
		ContactEmail: "owner@harborbooks.example",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSyncMetrics(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/metrics/sync", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m domain.SyncMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
}
