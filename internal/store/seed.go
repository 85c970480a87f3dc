package store

import (
	"time"

	"github.com/dealspot/dealspot-api/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Static seed data. The cache starts from these entities so the app is
// browsable before the first remote snapshot arrives; a live
// subscription overwrites the synced collections wholesale.

func intPtr(i int) *int { return &i }

func seedTime(day int) time.Time {
	return time.Date(2025, time.March, day, 9, 0, 0, 0, time.UTC)
}

func mustHash(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic("seed: bcrypt hash failed: " + err.Error())
	}
	return string(h)
}

func seedBusinesses() []domain.BusinessProfile {
	return []domain.BusinessProfile{
		{
			ID:          "biz-copper-kettle",
			Name:        "The Copper Kettle",
			OwnerID:     "user-marta",
			Category:    "restaurants",
			Description: "Farm-to-table brunch spot in the old mill district.",
			Address:     "14 Millrace Lane, Springfield",
			Phone:       "+1 555 010 2233",
			Website:     "https://copperkettle.example",
			Location:    &domain.Coordinates{Lat: 39.7990, Lng: -89.6440},
			Claimed:     true,
			CreatedAt:   seedTime(1),
		},
		{
			ID:          "biz-pine-peak",
			Name:        "Pine & Peak Outfitters",
			Category:    "outdoors",
			Description: "Gear rental and guided hikes.",
			Address:     "2 Summit Road, Springfield",
			Location:    &domain.Coordinates{Lat: 39.8121, Lng: -89.6298},
			Claimed:     false,
			CreatedAt:   seedTime(2),
		},
		{
			ID:          "biz-luna-spa",
			Name:        "Luna Day Spa",
			Category:    "wellness",
			Description: "Massages, facials and a salt room.",
			Address:     "88 Harbor Ave, Springfield",
			Location:    &domain.Coordinates{Lat: 39.7903, Lng: -89.6502},
			Claimed:     true,
			CreatedAt:   seedTime(3),
		},
	}
}

func seedCoupons() []domain.Coupon {
	return []domain.Coupon{
		{
			ID:              "cpn-brunch-for-two",
			CompanyID:       "biz-copper-kettle",
			Title:           "Brunch for Two",
			Description:     "Two mains and two coffees.",
			Category:        "restaurants",
			OriginalPrice:   decimal.NewFromFloat(50),
			DiscountedPrice: decimal.NewFromFloat(42.50),
			Active:          true,
			MaxRedemptions:  intPtr(200),
			LimitPerUser:    intPtr(2),
			CreatedAt:       seedTime(4),
		},
		{
			ID:              "cpn-kayak-day",
			CompanyID:       "biz-pine-peak",
			Title:           "Full-Day Kayak Rental",
			Description:     "Single kayak, paddle and vest included.",
			Category:        "outdoors",
			OriginalPrice:   decimal.NewFromFloat(80),
			DiscountedPrice: decimal.NewFromFloat(60),
			Active:          true,
			LimitPerUser:    intPtr(1),
			CreatedAt:       seedTime(5),
		},
		{
			ID:              "cpn-salt-room",
			CompanyID:       "biz-luna-spa",
			Title:           "Salt Room Session",
			Description:     "45 minutes in the halotherapy room.",
			Category:        "wellness",
			OriginalPrice:   decimal.NewFromFloat(35),
			DiscountedPrice: decimal.NewFromFloat(24.50),
			Active:          true,
			MaxRedemptions:  intPtr(50),
			CreatedAt:       seedTime(6),
		},
	}
}

func seedUsers() []domain.User {
	return []domain.User{
		{
			ID:           "user-ana",
			Email:        "ana@example.com",
			Name:         "Ana Duarte",
			Role:         domain.RoleCustomer,
			SavedAmount:  decimal.Zero,
			History:      []domain.SavingsRecord{},
			PasswordHash: mustHash("ana-secret"),
			CreatedAt:    seedTime(1),
		},
		{
			ID:           "user-marta",
			Email:        "marta@copperkettle.example",
			Name:         "Marta Klein",
			Role:         domain.RoleCompany,
			CompanyID:    "biz-copper-kettle",
			SavedAmount:  decimal.Zero,
			History:      []domain.SavingsRecord{},
			PasswordHash: mustHash("marta-secret"),
			CreatedAt:    seedTime(1),
		},
		{
			ID:           "user-root",
			Email:        "admin@dealspot.example",
			Name:         "Platform Admin",
			Role:         domain.RoleSuperAdmin,
			SavedAmount:  decimal.Zero,
			History:      []domain.SavingsRecord{},
			PasswordHash: mustHash("root-secret"),
			CreatedAt:    seedTime(1),
		},
	}
}

func seedBlogPosts() []domain.BlogPost {
	return []domain.BlogPost{
		{
			ID:          "post-best-brunch",
			Title:       "The Five Best Brunch Deals This Spring",
			Slug:        "best-brunch-deals-spring",
			Excerpt:     "Our editors ate their way through the mill district.",
			PublishedAt: seedTime(10),
		},
		{
			ID:          "post-claim-guide",
			Title:       "How to Claim Your Business Listing",
			Slug:        "claim-your-listing",
			Excerpt:     "A walkthrough for owners.",
			PublishedAt: seedTime(12),
		},
	}
}

func seedCollections() []domain.Collection {
	return []domain.Collection{
		{
			ID:        "col-date-night",
			Title:     "Date Night Deals",
			Slug:      "date-night",
			CouponIDs: []string{"cpn-brunch-for-two", "cpn-salt-room"},
		},
		{
			ID:        "col-weekend-out",
			Title:     "Weekend Outdoors",
			Slug:      "weekend-outdoors",
			CouponIDs: []string{"cpn-kayak-day"},
		},
	}
}

func seedLocations() []domain.Location {
	return []domain.Location{
		{ID: "loc-springfield", Name: "Springfield", Slug: "springfield", Center: &domain.Coordinates{Lat: 39.7990, Lng: -89.6440}},
		{ID: "loc-shelbyville", Name: "Shelbyville", Slug: "shelbyville", Center: &domain.Coordinates{Lat: 39.4061, Lng: -88.7903}},
	}
}

func seedCategories() []domain.Category {
	return []domain.Category{
		{ID: "cat-restaurants", Name: "Restaurants", Slug: "restaurants", Icon: "utensils"},
		{ID: "cat-outdoors", Name: "Outdoors", Slug: "outdoors", Icon: "mountain"},
		{ID: "cat-wellness", Name: "Wellness", Slug: "wellness", Icon: "spa"},
	}
}
