// Package store holds the in-memory entity cache and the remote sync
// adapter. The cache is a replica: once a remote subscription is
// active, the remote document store is the source of truth for the
// synced collections and every non-empty snapshot is reconciled into
// the cache. Mutations go to the remote store only and come back via
// the snapshot round-trip; callers must not assume the cache is
// already updated when a mutation call returns.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/dealspot/dealspot-api/internal/bus"
	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/docstore"
	"github.com/dealspot/dealspot-api/internal/infra/observability"
	"github.com/dealspot/dealspot-api/internal/port"

	"go.uber.org/zap"
)

var errNoRemote = errors.New("remote document store not configured")

// Store is the process-wide entity cache. Constructed once per process
// and injected into the services that need it.
type Store struct {
	mu sync.RWMutex

	businesses map[string]domain.BusinessProfile
	coupons    map[string]domain.Coupon
	users      map[string]domain.User

	// Seed-only collections; not remotely synced.
	blogPosts   []domain.BlogPost
	collections []domain.Collection
	locations   []domain.Location
	categories  []domain.Category

	remote  port.DocumentStore
	bus     *bus.Bus
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New creates the store and eagerly loads the static seed data.
// remote may be nil, in which case mutations fail with a typed
// remote-write error.
func New(remote port.DocumentStore, b *bus.Bus, metrics *observability.Metrics, logger *zap.Logger) *Store {
	s := &Store{
		businesses: make(map[string]domain.BusinessProfile),
		coupons:    make(map[string]domain.Coupon),
		users:      make(map[string]domain.User),
		remote:     remote,
		bus:        b,
		metrics:    metrics,
		logger:     logger,
	}

	for _, biz := range seedBusinesses() {
		s.businesses[biz.ID] = biz
	}
	for _, c := range seedCoupons() {
		s.coupons[c.ID] = c
	}
	for _, u := range seedUsers() {
		s.users[u.ID] = u
	}
	s.blogPosts = seedBlogPosts()
	s.collections = seedCollections()
	s.locations = seedLocations()
	s.categories = seedCategories()

	return s
}

// ============================================================
// Accessors
// ============================================================

// Businesses returns the cached business profiles, ordered by creation
// time then ID.
func (s *Store) Businesses() []domain.BusinessProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BusinessProfile, 0, len(s.businesses))
	for _, b := range s.businesses {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Business returns one cached business profile.
func (s *Store) Business(id string) (*domain.BusinessProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.businesses[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "business", ID: id}
	}
	return &b, nil
}

// Coupons returns the cached coupons. The signature keeps the
// potentially-latent contract: the read resolves synchronously today,
// but callers must pass a context and handle an error.
func (s *Store) Coupons(ctx context.Context) ([]domain.Coupon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Coupon returns one cached coupon.
func (s *Store) Coupon(ctx context.Context, id string) (*domain.Coupon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coupons[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "coupon", ID: id}
	}
	return &c, nil
}

// User returns one cached user.
func (s *Store) User(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return &u, nil
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: email}
}

// BlogPosts returns the seeded editorial posts.
func (s *Store) BlogPosts() []domain.BlogPost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.BlogPost(nil), s.blogPosts...)
}

// Collections returns the curated coupon collections.
func (s *Store) Collections() []domain.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Collection(nil), s.collections...)
}

// Locations returns the directory locations.
func (s *Store) Locations() []domain.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Location(nil), s.locations...)
}

// Categories returns the directory categories.
func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}

// ============================================================
// Mutations (remote-first)
// ============================================================

// SaveBusiness upserts a business into the remote store. The cache is
// updated by the subscription round-trip, not here.
func (s *Store) SaveBusiness(ctx context.Context, b *domain.BusinessProfile) error {
	if s.remote == nil {
		return &domain.ErrRemoteWriteFailed{Collection: docstore.CollectionBusinesses, Err: errNoRemote}
	}
	return s.remote.Upsert(ctx, docstore.CollectionBusinesses, b.ID, b)
}

// SaveCoupon upserts a coupon into the remote store.
func (s *Store) SaveCoupon(ctx context.Context, c *domain.Coupon) error {
	if s.remote == nil {
		return &domain.ErrRemoteWriteFailed{Collection: docstore.CollectionCoupons, Err: errNoRemote}
	}
	return s.remote.Upsert(ctx, docstore.CollectionCoupons, c.ID, c)
}

// DeleteCoupon removes a coupon from the remote store.
func (s *Store) DeleteCoupon(ctx context.Context, id string) error {
	if s.remote == nil {
		return &domain.ErrRemoteWriteFailed{Collection: docstore.CollectionCoupons, Err: errNoRemote}
	}
	return s.remote.Delete(ctx, docstore.CollectionCoupons, id)
}

// SubmitCompanyRequest writes a listing request to the remote store.
func (s *Store) SubmitCompanyRequest(ctx context.Context, req *domain.CompanyRequest) error {
	if s.remote == nil {
		return &domain.ErrRemoteWriteFailed{Collection: docstore.CollectionCompanyRequests, Err: errNoRemote}
	}
	return s.remote.Upsert(ctx, docstore.CollectionCompanyRequests, req.ID, req)
}

// SubmitClaimRequest writes a claim request to the remote store.
func (s *Store) SubmitClaimRequest(ctx context.Context, req *domain.ClaimRequest) error {
	if s.remote == nil {
		return &domain.ErrRemoteWriteFailed{Collection: docstore.CollectionClaimRequests, Err: errNoRemote}
	}
	return s.remote.Upsert(ctx, docstore.CollectionClaimRequests, req.ID, req)
}

// ============================================================
// Cache-side mutations (ledger / session support)
// ============================================================

// PatchUser replaces the cached copy of the user if present and
// publishes a user change event. Unknown users are ignored: the
// session store also serves users that never entered the cache.
func (s *Store) PatchUser(u *domain.User) {
	s.mu.Lock()
	_, ok := s.users[u.ID]
	if ok {
		s.users[u.ID] = *u
	}
	s.mu.Unlock()

	if ok {
		s.bus.Publish(bus.Event{Kind: bus.KindUser, Op: bus.OpUpdated, ID: u.ID})
	}
}

// IncrementCouponRedemptions bumps the coupon's redemption counter in
// the cache, publishes the change, and pushes the new counter value
// upstream. The global cap is checked under the store lock, so
// concurrent callers cannot push the counter past MaxRedemptions.
// The local bump and the remote write are deliberately not
// transactional: a failed remote write leaves the cache ahead until
// the next snapshot, mirrored by the returned error.
func (s *Store) IncrementCouponRedemptions(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	c, ok := s.coupons[id]
	if !ok {
		s.mu.Unlock()
		return 0, &domain.ErrNotFound{Resource: "coupon", ID: id}
	}
	if c.MaxRedemptions != nil && c.CurrentRedemptions >= *c.MaxRedemptions {
		count := c.CurrentRedemptions
		s.mu.Unlock()
		return count, &domain.ErrLimitReached{CouponID: id, Scope: "coupon", Limit: *c.MaxRedemptions}
	}
	c.CurrentRedemptions++
	s.coupons[id] = c
	count := c.CurrentRedemptions
	s.mu.Unlock()

	s.bus.Publish(bus.Event{Kind: bus.KindCoupon, Op: bus.OpUpdated, ID: id})

	if s.remote == nil {
		return count, &domain.ErrRemoteWriteFailed{Collection: docstore.CollectionCoupons, Err: errNoRemote}
	}
	patch := map[string]any{"id": id, "current_redemptions": count}
	if err := s.remote.Upsert(ctx, docstore.CollectionCoupons, id, patch); err != nil {
		var write *domain.ErrRemoteWriteFailed
		if errors.As(err, &write) {
			return count, err
		}
		return count, &domain.ErrRemoteWriteFailed{Collection: docstore.CollectionCoupons, Err: err}
	}
	return count, nil
}

// ============================================================
// Snapshot reconciliation
// ============================================================

// ApplySnapshot reconciles a remote snapshot into the cache. After a
// non-empty snapshot is applied, the cached collection equals the
// snapshot exactly. An empty snapshot never clears a non-empty cache:
// that guard avoids seed-data flicker before the first remote write,
// at the cost of making a truly-emptied remote collection unobservable
// (hence the warning and the counter).
func (s *Store) ApplySnapshot(snap domain.Snapshot) error {
	switch snap.Collection {
	case docstore.CollectionBusinesses:
		docs, err := decodeDocs[domain.BusinessProfile](snap.Docs)
		if err != nil {
			return err
		}
		s.reconcileBusinesses(docs)
	case docstore.CollectionCoupons:
		docs, err := decodeDocs[domain.Coupon](snap.Docs)
		if err != nil {
			return err
		}
		s.reconcileCoupons(docs)
	default:
		s.logger.Warn("snapshot for unsynced collection ignored",
			zap.String("collection", snap.Collection),
		)
	}
	return nil
}

func (s *Store) reconcileBusinesses(incoming []domain.BusinessProfile) {
	s.mu.Lock()
	if len(incoming) == 0 && len(s.businesses) > 0 {
		s.mu.Unlock()
		s.skipEmptySnapshot(docstore.CollectionBusinesses)
		return
	}

	next := make(map[string]domain.BusinessProfile, len(incoming))
	for _, b := range incoming {
		next[b.ID] = b
	}

	var events []bus.Event
	for id, b := range next {
		prev, existed := s.businesses[id]
		switch {
		case !existed:
			events = append(events, bus.Event{Kind: bus.KindBusiness, Op: bus.OpCreated, ID: id})
		case changed(prev, b):
			events = append(events, bus.Event{Kind: bus.KindBusiness, Op: bus.OpUpdated, ID: id})
		}
	}
	for id := range s.businesses {
		if _, kept := next[id]; !kept {
			events = append(events, bus.Event{Kind: bus.KindBusiness, Op: bus.OpDeleted, ID: id})
		}
	}
	s.businesses = next
	s.mu.Unlock()

	s.finishSnapshot(docstore.CollectionBusinesses, events)
}

func (s *Store) reconcileCoupons(incoming []domain.Coupon) {
	s.mu.Lock()
	if len(incoming) == 0 && len(s.coupons) > 0 {
		s.mu.Unlock()
		s.skipEmptySnapshot(docstore.CollectionCoupons)
		return
	}

	next := make(map[string]domain.Coupon, len(incoming))
	for _, c := range incoming {
		next[c.ID] = c
	}

	var events []bus.Event
	for id, c := range next {
		prev, existed := s.coupons[id]
		switch {
		case !existed:
			events = append(events, bus.Event{Kind: bus.KindCoupon, Op: bus.OpCreated, ID: id})
		case changed(prev, c):
			events = append(events, bus.Event{Kind: bus.KindCoupon, Op: bus.OpUpdated, ID: id})
		}
	}
	for id := range s.coupons {
		if _, kept := next[id]; !kept {
			events = append(events, bus.Event{Kind: bus.KindCoupon, Op: bus.OpDeleted, ID: id})
		}
	}
	s.coupons = next
	s.mu.Unlock()

	s.finishSnapshot(docstore.CollectionCoupons, events)
}

func (s *Store) skipEmptySnapshot(collection string) {
	s.metrics.IncrSnapshotSkipped(collection)
	s.logger.Warn("empty remote snapshot skipped; local cache retained",
		zap.String("collection", collection),
	)
}

func (s *Store) finishSnapshot(collection string, events []bus.Event) {
	s.metrics.IncrSnapshotApplied(collection)
	for _, ev := range events {
		s.bus.Publish(ev)
	}
}

// changed compares two entities via their JSON form. Decimal fields
// make direct struct comparison unreliable across unmarshal paths.
func changed[T any](a, b T) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return true
	}
	return string(ja) != string(jb)
}

func decodeDocs[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, raw := range docs {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
