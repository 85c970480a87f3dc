package store

import (
	"context"
	"sync/atomic"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/docstore"
	"github.com/dealspot/dealspot-api/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// syncedCollections are the remote collections reconciled into the
// cache. The request collections are write-only from this service and
// are not subscribed.
var syncedCollections = []string{
	docstore.CollectionBusinesses,
	docstore.CollectionCoupons,
}

// Syncer subscribes the store to the remote snapshot source. One
// Syncer per Store; Start is safe to call more than once but only the
// first call wins.
type Syncer struct {
	store   *Store
	source  port.SnapshotSource
	logger  *zap.Logger
	started atomic.Bool
}

func NewSyncer(store *Store, source port.SnapshotSource, logger *zap.Logger) *Syncer {
	return &Syncer{store: store, source: source, logger: logger}
}

// Start launches one consumer goroutine per synced collection and
// returns immediately. The goroutines stop when ctx is cancelled; the
// returned function blocks until all of them have drained.
func (s *Syncer) Start(ctx context.Context) (wait func() error) {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Warn("sync already started; ignoring duplicate start")
		return func() error { return nil }
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, collection := range syncedCollections {
		collection := collection
		g.Go(func() error {
			return s.consume(ctx, collection)
		})
	}

	s.logger.Info("remote sync started", zap.Strings("collections", syncedCollections))
	return g.Wait
}

func (s *Syncer) consume(ctx context.Context, collection string) error {
	snapshots := s.source.Snapshots(ctx, collection)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			s.apply(snap)
		}
	}
}

func (s *Syncer) apply(snap domain.Snapshot) {
	if err := s.store.ApplySnapshot(snap); err != nil {
		s.logger.Error("snapshot apply failed",
			zap.String("collection", snap.Collection),
			zap.Error(err),
		)
	}
}
