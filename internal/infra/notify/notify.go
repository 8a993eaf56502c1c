// Package notify provides an in-process publish/subscribe channel for
// "reconciliation ready" notifications. In production, this could be
// backed by Redis pub/sub; the port keeps subscribers decoupled.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/concilia-app/concilia-api/internal/domain"
)

// Broker fans events out to per-tenant subscribers. Delivery is
// best-effort: a subscriber with a full buffer misses the event rather
// than blocking the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string][]chan domain.Event
	logger *zap.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		subs:   make(map[string][]chan domain.Event),
		logger: logger,
	}
}

// Publish delivers an event to every subscriber of the tenant channel.
func (b *Broker) Publish(tenantID string, event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[tenantID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("notify: dropping event, subscriber buffer full",
				zap.String("tenant_id", tenantID),
				zap.String("type", event.Type),
			)
		}
	}
}

// Subscribe registers a buffered channel for a tenant and returns it with
// an unsubscribe func.
func (b *Broker) Subscribe(tenantID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	b.mu.Lock()
	b.subs[tenantID] = append(b.subs[tenantID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[tenantID]
		for i, c := range chans {
			if c == ch {
				b.subs[tenantID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}
