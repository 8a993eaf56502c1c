package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/cache"
	"github.com/concilia-app/concilia-api/internal/infra/observability"
	"github.com/concilia-app/concilia-api/internal/matching"
	"github.com/concilia-app/concilia-api/internal/service"

	"go.uber.org/zap"
)

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockPublisher) Publish(_ string, event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) published() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Event(nil), m.events...)
}

func testWorker(store *mockStore) (*service.PrecomputeWorker, *cache.InMemory[domain.ReconciliationResponse], *mockPublisher) {
	resultCache := cache.New[domain.ReconciliationResponse](10 * time.Minute)
	metrics := observability.NewMetrics()
	svc := service.NewReconciliation(
		&mockLedgerAPI{},
		&mockBankStore{},
		store,
		cache.New[*matching.Directory](5*time.Minute),
		resultCache,
		matching.DefaultWeights(),
		matching.DefaultThresholds(),
		metrics,
		zap.NewNop(),
	)
	publisher := &mockPublisher{}
	worker := service.NewPrecomputeWorker(svc, resultCache, publisher, 2, 30, 10*time.Minute, metrics, zap.NewNop())
	return worker, resultCache, publisher
}

func TestPrecompute_CachesAndPublishes(t *testing.T) {
	worker, resultCache, publisher := testWorker(&mockStore{integration: activeIntegration()})

	if err := worker.Run(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	events := publisher.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].Type != domain.EventReconciliationReady {
		t.Errorf("event.Type = %q", events[0].Type)
	}
	if !strings.HasPrefix(events[0].CacheKey, "recon:tenant-1:") {
		t.Errorf("event.CacheKey = %q, want recon:tenant-1: prefix", events[0].CacheKey)
	}
	if _, ok := resultCache.Get(events[0].CacheKey); !ok {
		t.Error("the precomputed result should be in the cache")
	}
}

func TestPrecompute_ErrorDoesNotPublish(t *testing.T) {
	worker, resultCache, publisher := testWorker(&mockStore{}) // no integration

	if err := worker.Run(context.Background(), "tenant-1"); err == nil {
		t.Fatal("expected an error for a tenant without an integration")
	}
	if len(publisher.published()) != 0 {
		t.Error("no event should be published on failure")
	}
	if n := resultCache.DeletePrefix("recon:"); n != 0 {
		t.Errorf("cache held %d entries after a failed run", n)
	}
}

func TestPrecompute_TriggerRunsInBackground(t *testing.T) {
	worker, _, publisher := testWorker(&mockStore{integration: activeIntegration()})

	worker.Trigger("tenant-1")

	deadline := time.After(2 * time.Second)
	for len(publisher.published()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the background run to publish")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
