// Package bus implements the process-wide change notification bus.
// Events carry a typed payload (entity kind + ID + operation) so
// subscribers can react precisely instead of re-fetching everything.
// Delivery is best-effort within the process: an event is published
// after the local mutation committed, with no cross-process guarantee.
package bus

import (
	"sync"
	"time"
)

// Kind identifies what kind of entity an event is about.
type Kind string

const (
	KindCoupon   Kind = "coupon"
	KindBusiness Kind = "business"
	KindUser     Kind = "user"
	KindSession  Kind = "session"
	KindConfig   Kind = "config"
)

// Op identifies what happened to the entity.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Event is published after a committed mutation.
type Event struct {
	Kind Kind
	Op   Op
	ID   string
	At   time.Time
}

// Metrics is the subset of observability the bus reports to.
type Metrics interface {
	IncrEventPublished(kind string)
	IncrEventDropped(kind string)
}

// Bus is a process-wide pub-sub channel. Publish never blocks: a
// subscriber whose buffer is full misses the event (and the drop is
// counted), which is acceptable because subscribers re-read state
// rather than relying on every individual event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	metrics Metrics
}

// New creates an empty bus. metrics may be nil.
func New(metrics Metrics) *Bus {
	return &Bus{
		subs:    make(map[int]chan Event),
		metrics: metrics,
	}
}

// Subscribe registers a new subscriber with the given channel buffer.
// The returned cancel func unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
			if b.metrics != nil {
				b.metrics.IncrEventPublished(string(ev.Kind))
			}
		default:
			if b.metrics != nil {
				b.metrics.IncrEventDropped(string(ev.Kind))
			}
		}
	}
}

// Shutdown unsubscribes everyone and closes their channels. Publish
// after Shutdown is a no-op.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount reports how many subscribers are registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
