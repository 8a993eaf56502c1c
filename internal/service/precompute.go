package service

import (
	"context"
	"time"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/observability"
	"github.com/concilia-app/concilia-api/internal/infra/resilience"
	"github.com/concilia-app/concilia-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PrecomputeWorker runs the matching pipeline in the background after
// Pluggy signals fresh data, landing the result in the cache so the next
// Query is a hit. Failures are logged and counted, never surfaced to the
// webhook caller.
type PrecomputeWorker struct {
	svc         *Reconciliation
	resultCache port.Cache[domain.ReconciliationResponse]
	publisher   port.Publisher
	bulkhead    *resilience.Bulkhead
	windowDays  int
	resultTTL   time.Duration
	timeout     time.Duration
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewPrecomputeWorker creates the worker. maxConcurrency caps how many
// tenants can precompute at once; excess triggers wait on the bulkhead.
func NewPrecomputeWorker(
	svc *Reconciliation,
	resultCache port.Cache[domain.ReconciliationResponse],
	publisher port.Publisher,
	maxConcurrency int,
	windowDays int,
	resultTTL time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PrecomputeWorker {
	return &PrecomputeWorker{
		svc:         svc,
		resultCache: resultCache,
		publisher:   publisher,
		bulkhead:    resilience.NewBulkhead(maxConcurrency),
		windowDays:  windowDays,
		resultTTL:   resultTTL,
		timeout:     2 * time.Minute,
		metrics:     metrics,
		logger:      logger,
	}
}

// Trigger starts a background precompute for the tenant and returns
// immediately. The webhook handler calls this fire-and-forget.
func (w *PrecomputeWorker) Trigger(tenantID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.Run(ctx, tenantID); err != nil {
			w.logger.Error("precompute run failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
		}
	}()
}

// Run executes one precompute pass over the trailing window and caches
// the result. Subscribers on the tenant channel get a ready event.
func (w *PrecomputeWorker) Run(ctx context.Context, tenantID string) error {
	ctx, span := tracer.Start(ctx, "PrecomputeWorker.Run")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if err := w.bulkhead.Acquire(ctx); err != nil {
		w.metrics.IncrPrecomputeRun("rejected")
		return err
	}
	defer w.bulkhead.Release()

	start := time.Now()

	now := time.Now().UTC()
	params := domain.QueryParams{
		TenantID: tenantID,
		DateFrom: now.AddDate(0, 0, -w.windowDays),
		DateTo:   now,
	}

	resp, err := w.svc.runPipeline(ctx, params)
	if err != nil {
		w.metrics.IncrPrecomputeRun("error")
		return err
	}

	key := resultCacheKey(params)
	w.resultCache.SetTTL(key, *resp, w.resultTTL)

	w.publisher.Publish(tenantID, domain.Event{
		Type:       domain.EventReconciliationReady,
		TenantID:   tenantID,
		CacheKey:   key,
		ComputedAt: resp.ComputedAt,
	})

	w.metrics.IncrPrecomputeRun("success")
	w.metrics.RecordRequestDuration("precompute", time.Since(start))
	w.logger.Info("precompute run complete",
		zap.String("tenant_id", tenantID),
		zap.String("cache_key", key),
		zap.Int("transactions", resp.Summary.Total),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
