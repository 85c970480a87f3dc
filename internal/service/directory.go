package service

import (
	"context"
	"time"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/geo"
	"github.com/dealspot/dealspot-api/internal/port"
	"github.com/dealspot/dealspot-api/internal/session"
	"github.com/dealspot/dealspot-api/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var directoryTracer = otel.Tracer("service/directory")

const requestStatusPending = "pending"

// DirectoryService serves the public catalog and the company-side
// mutations. Writes require an authenticated owner (or super admin)
// and go to the remote store; the cache catches up via sync.
type DirectoryService struct {
	entities *store.Store
	sessions *session.Store
	geocoder port.Geocoder
	logger   *zap.Logger
}

func NewDirectoryService(entities *store.Store, sessions *session.Store, geocoder port.Geocoder, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{
		entities: entities,
		sessions: sessions,
		geocoder: geocoder,
		logger:   logger,
	}
}

// ============================================================
// Public reads
// ============================================================

func (s *DirectoryService) Businesses(ctx context.Context) []domain.BusinessProfile {
	_, span := directoryTracer.Start(ctx, "DirectoryService.Businesses")
	defer span.End()
	return s.entities.Businesses()
}

func (s *DirectoryService) Business(ctx context.Context, id string) (*domain.BusinessProfile, error) {
	_, span := directoryTracer.Start(ctx, "DirectoryService.Business")
	defer span.End()
	return s.entities.Business(id)
}

func (s *DirectoryService) Coupons(ctx context.Context) ([]domain.Coupon, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.Coupons")
	defer span.End()
	return s.entities.Coupons(ctx)
}

func (s *DirectoryService) Coupon(ctx context.Context, id string) (*domain.Coupon, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.Coupon")
	defer span.End()
	return s.entities.Coupon(ctx, id)
}

func (s *DirectoryService) BlogPosts(ctx context.Context) []domain.BlogPost {
	return s.entities.BlogPosts()
}

func (s *DirectoryService) Collections(ctx context.Context) []domain.Collection {
	return s.entities.Collections()
}

func (s *DirectoryService) Locations(ctx context.Context) []domain.Location {
	return s.entities.Locations()
}

func (s *DirectoryService) Categories(ctx context.Context) []domain.Category {
	return s.entities.Categories()
}

// BusinessesNear geocodes a free-form address and returns the listed
// businesses within radiusKm of it, sorted nearest first. Businesses
// without coordinates are excluded.
func (s *DirectoryService) BusinessesNear(ctx context.Context, address string, radiusKm float64) ([]domain.BusinessProfile, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.BusinessesNear")
	defer span.End()
	span.SetAttributes(attribute.String("address", address))

	center, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	type scored struct {
		biz  domain.BusinessProfile
		dist float64
	}
	var nearby []scored
	for _, b := range s.entities.Businesses() {
		if b.Location == nil {
			continue
		}
		d := geo.DistanceKm(*center, *b.Location)
		if d <= radiusKm {
			nearby = append(nearby, scored{biz: b, dist: d})
		}
	}

	// Insertion sort; nearby lists are small.
	for i := 1; i < len(nearby); i++ {
		for j := i; j > 0 && nearby[j].dist < nearby[j-1].dist; j-- {
			nearby[j], nearby[j-1] = nearby[j-1], nearby[j]
		}
	}

	out := make([]domain.BusinessProfile, 0, len(nearby))
	for _, n := range nearby {
		out = append(out, n.biz)
	}
	return out, nil
}

// ============================================================
// Company-side writes
// ============================================================

func (s *DirectoryService) SaveBusiness(ctx context.Context, sid string, b *domain.BusinessProfile) error {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.SaveBusiness")
	defer span.End()

	user, err := s.sessions.CurrentUser(sid)
	if err != nil {
		return err
	}
	if !canManageBusiness(user, b.ID) {
		return &domain.ErrForbidden{Action: "update business " + b.ID}
	}

	if b.ID == "" {
		return &domain.ErrValidation{Field: "id", Message: "id is required"}
	}
	if b.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "name is required"}
	}

	s.logger.Info("business saved",
		zap.String("business_id", b.ID),
		zap.String("user_id", user.ID),
	)
	return s.entities.SaveBusiness(ctx, b)
}

func (s *DirectoryService) SaveCoupon(ctx context.Context, sid string, c *domain.Coupon) error {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.SaveCoupon")
	defer span.End()

	user, err := s.sessions.CurrentUser(sid)
	if err != nil {
		return err
	}
	if !canManageBusiness(user, c.CompanyID) {
		return &domain.ErrForbidden{Action: "manage coupons for " + c.CompanyID}
	}

	if c.ID == "" {
		c.ID = "cpn-" + uuid.NewString()
	}
	if c.Title == "" {
		return &domain.ErrValidation{Field: "title", Message: "title is required"}
	}
	if c.DiscountedPrice.GreaterThanOrEqual(c.OriginalPrice) {
		return &domain.ErrValidation{Field: "discounted_price", Message: "discounted price must be below the original price"}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	s.logger.Info("coupon saved",
		zap.String("coupon_id", c.ID),
		zap.String("company_id", c.CompanyID),
		zap.String("user_id", user.ID),
	)
	return s.entities.SaveCoupon(ctx, c)
}

// DeleteCoupon removes a coupon listing. Deleting a business is out of
// scope; coupons of a vanished business simply stop resolving.
func (s *DirectoryService) DeleteCoupon(ctx context.Context, sid, id string) error {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.DeleteCoupon")
	defer span.End()

	user, err := s.sessions.CurrentUser(sid)
	if err != nil {
		return err
	}
	coupon, err := s.entities.Coupon(ctx, id)
	if err != nil {
		return err
	}
	if !canManageBusiness(user, coupon.CompanyID) {
		return &domain.ErrForbidden{Action: "delete coupon " + id}
	}

	s.logger.Info("coupon deleted",
		zap.String("coupon_id", id),
		zap.String("user_id", user.ID),
	)
	return s.entities.DeleteCoupon(ctx, id)
}

// ============================================================
// Onboarding requests (public)
// ============================================================

func (s *DirectoryService) SubmitCompanyRequest(ctx context.Context, req *domain.CompanyRequest) (*domain.CompanyRequest, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.SubmitCompanyRequest")
	defer span.End()

	if req.BusinessName == "" {
		return nil, &domain.ErrValidation{Field: "business_name", Message: "business name is required"}
	}
	if req.ContactEmail == "" {
		return nil, &domain.ErrValidation{Field: "contact_email", Message: "contact email is required"}
	}

	req.ID = "req-" + uuid.NewString()
	req.Status = requestStatusPending
	req.CreatedAt = time.Now().UTC()

	if err := s.entities.SubmitCompanyRequest(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("company request submitted", zap.String("request_id", req.ID))
	return req, nil
}

func (s *DirectoryService) SubmitClaimRequest(ctx context.Context, sid string, req *domain.ClaimRequest) (*domain.ClaimRequest, error) {
	ctx, span := directoryTracer.Start(ctx, "DirectoryService.SubmitClaimRequest")
	defer span.End()

	if req.BusinessID == "" {
		return nil, &domain.ErrValidation{Field: "business_id", Message: "business id is required"}
	}
	if _, err := s.entities.Business(req.BusinessID); err != nil {
		return nil, err
	}
	if req.ContactEmail == "" {
		return nil, &domain.ErrValidation{Field: "contact_email", Message: "contact email is required"}
	}

	// Claims may come from logged-in users or anonymously by email.
	if sid != "" {
		if user, err := s.sessions.CurrentUser(sid); err == nil {
			req.RequesterID = user.ID
		}
	}

	req.ID = "clm-" + uuid.NewString()
	req.Status = requestStatusPending
	req.CreatedAt = time.Now().UTC()

	if err := s.entities.SubmitClaimRequest(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("claim request submitted",
		zap.String("request_id", req.ID),
		zap.String("business_id", req.BusinessID),
	)
	return req, nil
}

// canManageBusiness reports whether the user may mutate listings that
// belong to businessID.
func canManageBusiness(u *domain.User, businessID string) bool {
	if u.Role == domain.RoleSuperAdmin {
		return true
	}
	return u.Role == domain.RoleCompany && u.CompanyID != "" && u.CompanyID == businessID
}
