// Package geo provides distance math and a geocoder client. Geocoder
// results are cached per address for the session TTL so repeated map
// lookups do not hammer the upstream service.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/resilience"
	"github.com/dealspot/dealspot-api/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("geo")

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points in
// kilometers (haversine formula).
func DistanceKm(a, b domain.Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// GeocoderClient resolves addresses via the geocoding API.
type GeocoderClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	cache      port.Cache[*domain.Coordinates]
}

// NewGeocoderClient creates a geocoder client. cache may be nil to
// disable result caching.
func NewGeocoderClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, cache port.Cache[*domain.Coordinates]) *GeocoderClient {
	return &GeocoderClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		cache:      cache,
	}
}

type geocodeResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocode resolves an address to coordinates.
func (c *GeocoderClient) Geocode(ctx context.Context, address string) (*domain.Coordinates, error) {
	ctx, span := tracer.Start(ctx, "Geo.Geocode")
	defer span.End()
	span.SetAttributes(attribute.String("address", address))

	if c.cache != nil {
		if coords, ok := c.cache.Get(address); ok {
			return coords, nil
		}
	}

	var out geocodeResponse

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := fmt.Sprintf("%s/v1/geocode?address=%s", c.baseURL, url.QueryEscape(address))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("address not found")
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("geocoder returned status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&out)
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "geocoder", Err: err}
	}

	coords := &domain.Coordinates{Lat: out.Lat, Lng: out.Lng}
	if c.cache != nil {
		c.cache.Set(address, coords)
	}
	return coords, nil
}
