// Package port defines the interfaces (ports) for external
// dependencies. Following hexagonal architecture, these ports decouple
// the domain/service layer from concrete implementations.
package port

import (
	"context"
	"encoding/json"

	"github.com/dealspot/dealspot-api/internal/domain"
)

// DocumentStore is the write/read interface to the remote document
// store. Writes are merge-upserts keyed by entity ID; reads return the
// raw collection documents.
type DocumentStore interface {
	List(ctx context.Context, collection string) ([]json.RawMessage, error)
	Upsert(ctx context.Context, collection, id string, doc any) error
	Delete(ctx context.Context, collection, id string) error
}

// SnapshotSource delivers full-collection snapshots. The channel is
// closed when ctx is cancelled. The cache is a replica of whatever the
// source last delivered, not the source of truth.
type SnapshotSource interface {
	Snapshots(ctx context.Context, collection string) <-chan domain.Snapshot
}

// ContentGenerator invokes the generative content service.
type ContentGenerator interface {
	GenerateDescription(ctx context.Context, req *domain.ContentRequest) (string, error)
	GenerateListing(ctx context.Context, req *domain.ContentRequest) (*domain.GeneratedListing, error)
}

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*domain.Coordinates, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
