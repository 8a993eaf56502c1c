package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/observability"
	"github.com/concilia-app/concilia-api/internal/matching"
	"github.com/concilia-app/concilia-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/reconciliation")

// Reconciliation orchestrates the matching pipeline: it gathers bank
// transactions, ledger entries, the customer directory, manual mappings
// and persisted records, then hands everything to matching.Run. The same
// gathering path serves the synchronous query and the precompute worker.
type Reconciliation struct {
	ledger      port.LedgerAPI
	bank        port.BankStore
	store       port.ReconciliationStore
	dirCache    port.Cache[*matching.Directory]
	resultCache port.Cache[domain.ReconciliationResponse]
	weights     matching.Weights
	thresholds  matching.Thresholds
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewReconciliation creates the reconciliation service with all
// dependencies injected.
func NewReconciliation(
	ledger port.LedgerAPI,
	bank port.BankStore,
	store port.ReconciliationStore,
	dirCache port.Cache[*matching.Directory],
	resultCache port.Cache[domain.ReconciliationResponse],
	weights matching.Weights,
	thresholds matching.Thresholds,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Reconciliation {
	return &Reconciliation{
		ledger:      ledger,
		bank:        bank,
		store:       store,
		dirCache:    dirCache,
		resultCache: resultCache,
		weights:     weights,
		thresholds:  thresholds,
		metrics:     metrics,
		logger:      logger,
	}
}

// resultCacheKey builds the per-window result cache key. The tenant
// prefix "recon:{tenant}:" is what Confirm/Unconfirm/Link invalidate.
func resultCacheKey(p domain.QueryParams) string {
	return fmt.Sprintf("recon:%s:%s:%s:%s",
		p.TenantID,
		p.DateFrom.Format("2006-01-02"),
		p.DateTo.Format("2006-01-02"),
		p.EntryType,
	)
}

func tenantCachePrefix(tenantID string) string {
	return fmt.Sprintf("recon:%s:", tenantID)
}

// Query returns the reconciliation view for a tenant's date window. A
// precomputed (or previously computed) result is served from cache;
// otherwise the full pipeline runs synchronously.
func (s *Reconciliation) Query(ctx context.Context, params domain.QueryParams) (*domain.ReconciliationResponse, error) {
	ctx, span := tracer.Start(ctx, "Reconciliation.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", params.TenantID),
		attribute.String("entry.type", params.EntryType),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("query", time.Since(start))
	}()

	key := resultCacheKey(params)
	if cached, ok := s.resultCache.Get(key); ok {
		s.metrics.IncrCacheHit("results")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}
	s.metrics.IncrCacheMiss("results")

	resp, err := s.runPipeline(ctx, params)
	if err != nil {
		return nil, err
	}

	s.resultCache.Set(key, *resp)
	return resp, nil
}

// runPipeline fetches everything one run needs and executes matching.Run.
// The integration check comes first so an unconfigured tenant fails fast
// with a distinct error instead of a confusing AdvBox auth failure.
func (s *Reconciliation) runPipeline(ctx context.Context, params domain.QueryParams) (*domain.ReconciliationResponse, error) {
	ctx, span := tracer.Start(ctx, "Reconciliation.runPipeline")
	defer span.End()

	integration, err := s.store.GetTenantIntegration(ctx, params.TenantID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, &domain.ErrIntegrationNotConfigured{TenantID: params.TenantID}
		}
		s.metrics.IncrExternalError("supabase")
		return nil, fmt.Errorf("tenant integration fetch: %w", err)
	}
	if !integration.Configured() {
		s.logger.Warn("tenant integration present but unusable",
			zap.String("tenant_id", params.TenantID),
			zap.Bool("active", integration.Active),
		)
		return nil, &domain.ErrIntegrationNotConfigured{TenantID: params.TenantID}
	}

	var (
		transactions []domain.BankTransaction
		entries      []domain.LedgerEntry
		directory    *matching.Directory
		mappings     []domain.CustomerMapping
		records      []domain.ReconciliationRecord
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.bank.ListBankTransactions(gCtx, params.TenantID, params.DateFrom, params.DateTo)
		if err != nil {
			s.metrics.IncrExternalError("supabase")
			return fmt.Errorf("bank transactions fetch: %w", err)
		}
		transactions = t
		return nil
	})

	g.Go(func() error {
		e, err := s.ledger.ListLedgerEntries(gCtx, params)
		if err != nil {
			s.metrics.IncrExternalError("advbox")
			return fmt.Errorf("ledger entries fetch: %w", err)
		}
		entries = e
		return nil
	})

	g.Go(func() error {
		d, err := s.getDirectory(gCtx, params.TenantID)
		if err != nil {
			return fmt.Errorf("customer directory fetch: %w", err)
		}
		directory = d
		return nil
	})

	g.Go(func() error {
		m, err := s.store.ListMappings(gCtx, params.TenantID)
		if err != nil {
			s.metrics.IncrExternalError("supabase")
			return fmt.Errorf("customer mappings fetch: %w", err)
		}
		mappings = m
		return nil
	})

	g.Go(func() error {
		r, err := s.store.ListRecords(gCtx, params.TenantID)
		if err != nil {
			s.metrics.IncrExternalError("supabase")
			return fmt.Errorf("reconciliation records fetch: %w", err)
		}
		records = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := matching.Run(matching.Input{
		Transactions: transactions,
		Entries:      entries,
		Directory:    directory,
		Mappings:     mappings,
		Records:      records,
		Weights:      s.weights,
		Thresholds:   s.thresholds,
	})

	for _, item := range resp.Items {
		s.metrics.IncrMatch(item.Tier)
	}

	s.logger.Info("reconciliation run complete",
		zap.String("tenant_id", params.TenantID),
		zap.Int("transactions", resp.Summary.Total),
		zap.Int("auto", resp.Summary.Auto),
		zap.Int("partial", resp.Summary.Partial),
		zap.Int("none", resp.Summary.None),
		zap.Int("reconciled", resp.Summary.Reconciled),
	)

	return &resp, nil
}

// getDirectory returns the tenant's customer directory, building it from
// the full AdvBox registry on a cache miss. The registry fetch can be
// hundreds of paginated requests, so the built index is what gets cached.
func (s *Reconciliation) getDirectory(ctx context.Context, tenantID string) (*matching.Directory, error) {
	cacheKey := fmt.Sprintf("customers:%s", tenantID)
	if cached, ok := s.dirCache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("directory")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("directory")

	customers, err := s.ledger.ListCustomers(ctx, tenantID)
	if err != nil {
		s.metrics.IncrExternalError("advbox")
		return nil, err
	}

	directory := matching.NewDirectory(customers)
	s.dirCache.Set(cacheKey, directory)

	s.logger.Debug("customer directory built",
		zap.String("tenant_id", tenantID),
		zap.Int("customers", directory.Len()),
	)
	return directory, nil
}

// Confirm persists a manual or automatic match decision. The record is
// write-once per transaction; a second confirm returns
// ErrAlreadyReconciled untouched so the handler can answer 409.
func (s *Reconciliation) Confirm(ctx context.Context, req domain.ConfirmRequest) (*domain.ReconciliationRecord, error) {
	ctx, span := tracer.Start(ctx, "Reconciliation.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", req.TransactionID))

	if req.TenantID == "" {
		return nil, &domain.ErrValidation{Field: "tenant_id", Message: "required"}
	}
	if req.TransactionID == "" {
		return nil, &domain.ErrValidation{Field: "transaction_id", Message: "required"}
	}
	if req.LedgerEntryID == "" {
		return nil, &domain.ErrValidation{Field: "ledger_entry_id", Message: "required"}
	}

	record, err := s.store.CreateRecord(ctx, &domain.ReconciliationRecord{
		TenantID:          req.TenantID,
		TransactionID:     req.TransactionID,
		LedgerEntryID:     req.LedgerEntryID,
		CustomerID:        req.CustomerID,
		Score:             req.Score,
		PaidAt:            time.Now().UTC(),
		TransactionMemo:   req.TransactionMemo,
		LedgerDescription: req.LedgerDescription,
	})
	if err != nil {
		return nil, err
	}

	purged := s.resultCache.DeletePrefix(tenantCachePrefix(req.TenantID))
	s.logger.Info("reconciliation confirmed",
		zap.String("tenant_id", req.TenantID),
		zap.String("transaction_id", req.TransactionID),
		zap.String("record_id", record.ID),
		zap.Int("cache_entries_purged", purged),
	)

	return record, nil
}

// Unconfirm deletes the persisted record, reverting the transaction to
// unmatched on the next run.
func (s *Reconciliation) Unconfirm(ctx context.Context, tenantID, transactionID string) error {
	ctx, span := tracer.Start(ctx, "Reconciliation.Unconfirm")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	if err := s.store.DeleteRecordByTransaction(ctx, tenantID, transactionID); err != nil {
		return err
	}

	s.resultCache.DeletePrefix(tenantCachePrefix(tenantID))
	s.logger.Info("reconciliation reverted",
		zap.String("tenant_id", tenantID),
		zap.String("transaction_id", transactionID),
	)
	return nil
}

// Link records a manual payer-document to customer mapping. The mapping
// feeds the identity factor on every later run for that document.
func (s *Reconciliation) Link(ctx context.Context, req domain.LinkRequest) (*domain.CustomerMapping, error) {
	ctx, span := tracer.Start(ctx, "Reconciliation.Link")
	defer span.End()

	doc := matching.NormalizeDocument(req.PayerDocument)
	if len(doc) < matching.MinDocumentLen {
		return nil, &domain.ErrValidation{Field: "payer_document", Message: "must contain at least 11 digits"}
	}
	if req.TenantID == "" {
		return nil, &domain.ErrValidation{Field: "tenant_id", Message: "required"}
	}
	if req.CustomerID == "" {
		return nil, &domain.ErrValidation{Field: "customer_id", Message: "required"}
	}

	mapping, err := s.store.UpsertMapping(ctx, &domain.CustomerMapping{
		TenantID:         req.TenantID,
		PayerDocument:    doc,
		CustomerID:       req.CustomerID,
		CustomerName:     req.CustomerName,
		CustomerDocument: matching.NormalizeDocument(req.CustomerDocument),
	})
	if err != nil {
		return nil, err
	}

	s.resultCache.DeletePrefix(tenantCachePrefix(req.TenantID))
	s.logger.Info("customer mapping linked",
		zap.String("tenant_id", req.TenantID),
		zap.String("payer_document", doc),
		zap.String("customer_id", req.CustomerID),
	)
	return mapping, nil
}
