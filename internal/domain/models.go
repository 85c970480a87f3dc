// Package domain defines the core business entities for the deals
// platform. These models are independent of external services and are
// the canonical data structures used throughout the backend.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Users / Session
// ============================================================

// Role identifies what a user is allowed to do.
type Role string

const (
	RoleCustomer   Role = "CUSTOMER"
	RoleCompany    Role = "COMPANY"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Favorites holds the per-user sets of liked coupon and business IDs.
type Favorites struct {
	CouponIDs   []string `json:"coupon_ids"`
	BusinessIDs []string `json:"business_ids"`
}

// HasCoupon reports membership of id in the coupon set.
func (f *Favorites) HasCoupon(id string) bool {
	for _, c := range f.CouponIDs {
		if c == id {
			return true
		}
	}
	return false
}

// HasBusiness reports membership of id in the business set.
func (f *Favorites) HasBusiness(id string) bool {
	for _, b := range f.BusinessIDs {
		if b == id {
			return true
		}
	}
	return false
}

// SavingsRecord is one redemption's contribution to a user's savings.
// Records are immutable and append-only: created exactly once per
// successful redemption, never mutated or removed.
type SavingsRecord struct {
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	CouponTitle string          `json:"coupon_title"`
	CouponID    string          `json:"coupon_id"`
}

// User is a platform account. SavedAmount must equal the sum of
// Amount across History at all times; both are mutated only through
// the savings ledger, the favorites service, or profile edits.
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Name         string          `json:"name"`
	Role         Role            `json:"role"`
	CompanyID    string          `json:"company_id,omitempty"`
	AvatarURL    string          `json:"avatar_url,omitempty"`
	SavedAmount  decimal.Decimal `json:"saved_amount"`
	History      []SavingsRecord `json:"history"`
	Favorites    Favorites       `json:"favorites"`
	PasswordHash string          `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RedemptionsOf counts how many times this user has already redeemed
// the given coupon, derived from the ledger history.
func (u *User) RedemptionsOf(couponID string) int {
	n := 0
	for _, r := range u.History {
		if r.CouponID == couponID {
			n++
		}
	}
	return n
}

// ============================================================
// Coupons
// ============================================================

// Coupon is a redeemable deal owned by the company that created it.
// CurrentRedemptions <= MaxRedemptions when the latter is set.
type Coupon struct {
	ID                 string          `json:"id"`
	CompanyID          string          `json:"company_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Category           string          `json:"category,omitempty"`
	ImageURL           string          `json:"image_url,omitempty"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	DiscountedPrice    decimal.Decimal `json:"discounted_price"`
	Active             bool            `json:"active"`
	CurrentRedemptions int             `json:"current_redemptions"`
	MaxRedemptions     *int            `json:"max_redemptions,omitempty"`
	LimitPerUser       *int            `json:"limit_per_user,omitempty"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Saving is the per-redemption discount value. It is not floored at
// zero; the ledger rejects negative values before recording.
func (c *Coupon) Saving() decimal.Decimal {
	return c.OriginalPrice.Sub(c.DiscountedPrice)
}

// ============================================================
// Directory
// ============================================================

// BusinessProfile is a directory entity, referenced by Coupon via
// CompanyID. Deleting a business does not cascade to its coupons.
type BusinessProfile struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	OwnerID     string       `json:"owner_id,omitempty"`
	Category    string       `json:"category,omitempty"`
	Description string       `json:"description,omitempty"`
	Address     string       `json:"address,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Website     string       `json:"website,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Location    *Coordinates `json:"location,omitempty"`
	Claimed     bool         `json:"claimed"`
	CreatedAt   time.Time    `json:"created_at"`
}

// BlogPost is an editorial article shown on the content pages.
type BlogPost struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Body        string    `json:"body,omitempty"`
	AuthorID    string    `json:"author_id,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Collection is a curated group of coupons (e.g. "Date Night Deals").
type Collection struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Slug      string   `json:"slug"`
	CouponIDs []string `json:"coupon_ids"`
}

// Location is a city/area the directory is organized by.
type Location struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Slug   string       `json:"slug"`
	Center *Coordinates `json:"center,omitempty"`
}

// Category is a business/coupon category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Icon string `json:"icon,omitempty"`
}

// ============================================================
// Onboarding requests
// ============================================================

// CompanyRequest is a submission asking to list a new business.
type CompanyRequest struct {
	ID           string    `json:"id"`
	BusinessName string    `json:"business_name"`
	ContactEmail string    `json:"contact_email"`
	ContactName  string    `json:"contact_name,omitempty"`
	Category     string    `json:"category,omitempty"`
	Message      string    `json:"message,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClaimRequest is a submission asking to claim an existing listing.
type ClaimRequest struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id"`
	RequesterID  string    `json:"requester_id,omitempty"`
	ContactEmail string    `json:"contact_email"`
	Evidence     string    `json:"evidence,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// ============================================================
// Sync
// ============================================================

// Snapshot is a full-collection payload delivered by the remote
// document store subscription. Docs are the raw documents; the sync
// adapter decodes them per collection.
type Snapshot struct {
	Collection string
	Docs       []json.RawMessage
}

// ============================================================
// Redemption API
// ============================================================

// RedeemRequest is the payload to redeem a coupon. IdempotencyKey is
// client-generated per physical claim; replaying it is rejected.
type RedeemRequest struct {
	CouponID       string `json:"coupon_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// RedeemResult reports a committed redemption. RemoteSynced is false
// when the ledger entry committed locally but the upstream counter
// write failed; callers may retry or wait for the next snapshot.
type RedeemResult struct {
	Record             SavingsRecord   `json:"record"`
	SavedAmount        decimal.Decimal `json:"saved_amount"`
	CurrentRedemptions int             `json:"current_redemptions"`
	RemoteSynced       bool            `json:"remote_synced"`
}

// ============================================================
// Generative content
// ============================================================

// ContentRequest is the structured prompt for the content service.
type ContentRequest struct {
	CompanyName string `json:"company_name"`
	Category    string `json:"category"`
	Title       string `json:"title,omitempty"`
}

// GeneratedListing is the structured output for a full listing.
type GeneratedListing struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ============================================================
// Geo
// ============================================================

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ============================================================
// Auth API
// ============================================================

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body for 200 from POST /v1/auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
	User      *User  `json:"user"`
}

// ============================================================
// Health & Metrics API
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// SyncMetrics is returned by GET /v1/metrics/sync.
type SyncMetrics struct {
	SnapshotsApplied int64   `json:"snapshotsApplied"`
	SnapshotsSkipped int64   `json:"snapshotsSkipped"`
	RemoteErrors     int64   `json:"remoteErrors"`
	EventsPublished  int64   `json:"eventsPublished"`
	EventsDropped    int64   `json:"eventsDropped"`
	Redemptions      int64   `json:"redemptions"`
	RedemptionErrors int64   `json:"redemptionErrors"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	Period           string  `json:"period"`
}
