// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/concilia-app/concilia-api/internal/domain"
)

// LedgerAPI retrieves customer and ledger data from the accounting system
// (AdvBox). Both listings paginate server-side; implementations degrade to
// the pages fetched so far when a page fails mid-scan.
type LedgerAPI interface {
	ListCustomers(ctx context.Context, tenantID string) ([]domain.Customer, error)
	ListLedgerEntries(ctx context.Context, params domain.QueryParams) ([]domain.LedgerEntry, error)
}

// BankStore reads the locally persisted Open Finance transaction snapshot.
type BankStore interface {
	ListBankTransactions(ctx context.Context, tenantID string, from, to time.Time) ([]domain.BankTransaction, error)
}

// ReconciliationStore persists confirmed matches, manual customer
// mappings, and tenant integration settings.
type ReconciliationStore interface {
	// Records. CreateRecord is insert-if-absent keyed by transaction id and
	// returns domain.ErrAlreadyReconciled on a duplicate.
	GetRecordByTransaction(ctx context.Context, tenantID, transactionID string) (*domain.ReconciliationRecord, error)
	ListRecords(ctx context.Context, tenantID string) ([]domain.ReconciliationRecord, error)
	CreateRecord(ctx context.Context, rec *domain.ReconciliationRecord) (*domain.ReconciliationRecord, error)
	DeleteRecordByTransaction(ctx context.Context, tenantID, transactionID string) error

	// Manual customer mappings, keyed by normalized payer document.
	ListMappings(ctx context.Context, tenantID string) ([]domain.CustomerMapping, error)
	UpsertMapping(ctx context.Context, m *domain.CustomerMapping) (*domain.CustomerMapping, error)

	// Tenant integration settings.
	GetTenantIntegration(ctx context.Context, tenantID string) (*domain.TenantIntegration, error)
}

// Cache provides generic caching with a default TTL, a per-entry TTL
// override, and prefix invalidation.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	SetTTL(key string, value T, ttl time.Duration)
	Delete(key string)
	DeletePrefix(prefix string) int
}

// Publisher delivers "reconciliation ready" notifications to a tenant
// channel.
type Publisher interface {
	Publish(tenantID string, event domain.Event)
}
