package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/observability"
	"github.com/dealspot/dealspot-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var contentTracer = otel.Tracer("service/content")

// ContentService fronts the generative content upstream. Generation
// failures never surface to the caller: a canned template fills in, so
// the listing flow stays usable when the upstream is down.
type ContentService struct {
	generator    port.ContentGenerator
	descriptions port.Cache[string]
	listings     port.Cache[*domain.GeneratedListing]
	metrics      *observability.Metrics
	logger       *zap.Logger
}

func NewContentService(
	generator port.ContentGenerator,
	descriptions port.Cache[string],
	listings port.Cache[*domain.GeneratedListing],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ContentService {
	return &ContentService{
		generator:    generator,
		descriptions: descriptions,
		listings:     listings,
		metrics:      metrics,
		logger:       logger,
	}
}

// ============================================================
// Description — POST /v1/content/description
// ============================================================

func (s *ContentService) Description(ctx context.Context, req *domain.ContentRequest) (string, error) {
	ctx, span := contentTracer.Start(ctx, "ContentService.Description")
	defer span.End()
	span.SetAttributes(attribute.String("company_name", req.CompanyName))

	if req.CompanyName == "" {
		return "", &domain.ErrValidation{Field: "company_name", Message: "company name is required"}
	}

	key := cacheKey("desc", req)
	if cached, ok := s.descriptions.Get(key); ok {
		s.metrics.IncrCacheHit("content")
		s.metrics.IncrContentRequest("cached")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("content")

	text, err := s.generator.GenerateDescription(ctx, req)
	if err != nil {
		s.metrics.IncrContentRequest("fallback")
		s.logger.Warn("description generation failed, using canned copy",
			zap.String("company_name", req.CompanyName),
			zap.Error(err),
		)
		return cannedDescription(req), nil
	}

	s.descriptions.Set(key, text)
	s.metrics.IncrContentRequest("generated")
	return text, nil
}

// ============================================================
// Listing — POST /v1/content/listing
// ============================================================

func (s *ContentService) Listing(ctx context.Context, req *domain.ContentRequest) (*domain.GeneratedListing, error) {
	ctx, span := contentTracer.Start(ctx, "ContentService.Listing")
	defer span.End()
	span.SetAttributes(attribute.String("company_name", req.CompanyName))

	if req.CompanyName == "" {
		return nil, &domain.ErrValidation{Field: "company_name", Message: "company name is required"}
	}

	key := cacheKey("listing", req)
	if cached, ok := s.listings.Get(key); ok {
		s.metrics.IncrCacheHit("content")
		s.metrics.IncrContentRequest("cached")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("content")

	listing, err := s.generator.GenerateListing(ctx, req)
	if err != nil {
		s.metrics.IncrContentRequest("fallback")
		s.logger.Warn("listing generation failed, using canned copy",
			zap.String("company_name", req.CompanyName),
			zap.Error(err),
		)
		return cannedListing(req), nil
	}

	s.listings.Set(key, listing)
	s.metrics.IncrContentRequest("generated")
	return listing, nil
}

// ============================================================
// Batch — POST /v1/content/listings
// ============================================================

// Listings generates copy for several businesses concurrently. Order
// of the output matches the input; each entry falls back independently.
func (s *ContentService) Listings(ctx context.Context, reqs []domain.ContentRequest) ([]*domain.GeneratedListing, error) {
	ctx, span := contentTracer.Start(ctx, "ContentService.Listings")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(reqs)))

	out := make([]*domain.GeneratedListing, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range reqs {
		i := i
		g.Go(func() error {
			listing, err := s.Listing(ctx, &reqs[i])
			if err != nil {
				return err
			}
			out[i] = listing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================
// Canned fallbacks
// ============================================================

func cannedDescription(req *domain.ContentRequest) string {
	category := req.Category
	if category == "" {
		category = "local"
	}
	return fmt.Sprintf(
		"%s is a beloved %s spot known for friendly service and great value. "+
			"Stop by to see what the neighborhood is talking about.",
		req.CompanyName, strings.ToLower(category),
	)
}

func cannedListing(req *domain.ContentRequest) *domain.GeneratedListing {
	title := req.Title
	if title == "" {
		title = "Discover " + req.CompanyName
	}
	return &domain.GeneratedListing{
		Title:       title,
		Description: cannedDescription(req),
	}
}

func cacheKey(prefix string, req *domain.ContentRequest) string {
	return prefix + "|" + req.CompanyName + "|" + req.Category + "|" + req.Title
}
