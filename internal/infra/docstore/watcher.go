package docstore

import (
	"context"
	"time"

	"github.com/dealspot/dealspot-api/internal/domain"

	"go.uber.org/zap"
)

// Watcher turns the document store's list API into a subscription that
// delivers full-collection snapshots at a fixed interval. The store
// exposes no delta feed, so every delivery is the whole collection;
// the sync adapter is responsible for reconciling.
type Watcher struct {
	client   *Client
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a snapshot watcher over the given client.
func NewWatcher(client *Client, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		client:   client,
		interval: interval,
		logger:   logger,
	}
}

// Snapshots starts a polling loop for the collection and returns the
// delivery channel. The channel is closed when ctx is cancelled. A
// failed poll is logged and skipped; the previous snapshot stands
// until the next successful one.
func (w *Watcher) Snapshots(ctx context.Context, collection string) <-chan domain.Snapshot {
	out := make(chan domain.Snapshot, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Deliver an initial snapshot immediately so the cache does
		// not wait a full interval after startup.
		w.poll(ctx, collection, out)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll(ctx, collection, out)
			}
		}
	}()

	return out
}

func (w *Watcher) poll(ctx context.Context, collection string, out chan<- domain.Snapshot) {
	docs, err := w.client.List(ctx, collection)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("docstore: snapshot poll failed",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return
	}

	select {
	case out <- domain.Snapshot{Collection: collection, Docs: docs}:
	case <-ctx.Done():
	}
}
