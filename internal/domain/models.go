package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Bank transactions (Pluggy snapshot)
// ============================================================

// PaymentMetadata is the structured payer block Pluggy attaches to some
// Open Finance transactions. Every field is optional.
type PaymentMetadata struct {
	PayerDocument string `json:"payer_document,omitempty"`
	PayerName     string `json:"payer_name,omitempty"`
	Email         string `json:"email,omitempty"`
	PixKey        string `json:"pix_key,omitempty"`
}

// BankTransaction is a synced Open Finance transaction. Immutable once
// synced except for the reconciliation pointer.
type BankTransaction struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	AccountID        string           `json:"account_id"`
	Amount           float64          `json:"amount"`
	Date             time.Time        `json:"date"`
	Description      string           `json:"description"`
	Direction        string           `json:"direction"` // credit | debit
	PaymentMetadata  *PaymentMetadata `json:"payment_metadata,omitempty"`
	ReconciliationID string           `json:"reconciliation_id,omitempty"`
}

// PayerInfo is the identity derived from a transaction's metadata and
// description. Recomputed on every run, never persisted.
type PayerInfo struct {
	Document            string `json:"document,omitempty"`
	Name                string `json:"name,omitempty"`
	Email               string `json:"email,omitempty"`
	PaymentKey          string `json:"payment_key,omitempty"`
	NameFromDescription string `json:"name_from_description,omitempty"`
}

// BestName returns the preferred payer name: the explicit metadata name
// when present, otherwise the lower-trust description-derived name.
func (p PayerInfo) BestName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.NameFromDescription
}

// ============================================================
// AdvBox ledger
// ============================================================

// LedgerEntry is a billing record in AdvBox. PaymentDate == nil means the
// entry is still unpaid, which makes it a matching candidate.
type LedgerEntry struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"` // income | expense
	DueDate          time.Time  `json:"due_date"`
	PaymentDate      *time.Time `json:"payment_date,omitempty"`
	Amount           float64    `json:"amount"`
	Description      string     `json:"description"`
	CustomerName     string     `json:"customer_name"`
	CustomerDocument string     `json:"customer_document"`
	Category         string     `json:"category,omitempty"`
	ReferenceNumber  string     `json:"reference_number,omitempty"`
}

// Unpaid reports whether the entry has no payment date yet.
func (e LedgerEntry) Unpaid() bool { return e.PaymentDate == nil }

// Customer is one row of the AdvBox customer registry. Document is kept
// normalized (digits only).
type Customer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
}

// CustomerMapping is an analyst-created link from a payer document to an
// AdvBox customer, used as an identity fallback on every later run.
type CustomerMapping struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	PayerDocument    string    `json:"payer_document"` // normalized
	CustomerID       string    `json:"customer_id"`
	CustomerName     string    `json:"customer_name"`
	CustomerDocument string    `json:"customer_document"`
	CreatedAt        time.Time `json:"created_at"`
}

// ============================================================
// Matching results
// ============================================================

// Confidence tiers.
const (
	TierAuto       = "auto"
	TierPartial    = "partial"
	TierNone       = "none"
	TierReconciled = "reconciled"
)

// MatchReason is one scored factor of a MatchResult. Unmatched factors are
// included too so the review UI can show the full breakdown.
type MatchReason struct {
	Field   string `json:"field"` // identity | name | contact | amount
	Weight  int    `json:"weight"`
	Matched bool   `json:"matched"`
	Details string `json:"details"`
}

// MatchResult pairs one candidate ledger entry with its score and the
// per-factor reasons.
type MatchResult struct {
	Entry   LedgerEntry   `json:"entry"`
	Score   int           `json:"score"`
	Reasons []MatchReason `json:"reasons"`
	Tier    string        `json:"tier"`
}

// ReconciliationItem is one transaction's pipeline output.
type ReconciliationItem struct {
	Transaction    BankTransaction       `json:"transaction"`
	Payer          PayerInfo             `json:"payer"`
	Tier           string                `json:"tier"`
	BestMatch      *MatchResult          `json:"best_match,omitempty"`
	LinkedCustomer *CustomerMapping      `json:"linked_customer,omitempty"`
	Customer       *Customer             `json:"customer,omitempty"`
	Record         *ReconciliationRecord `json:"record,omitempty"`
}

// ReconciliationSummary aggregates one run.
type ReconciliationSummary struct {
	Total      int             `json:"total"`
	Reconciled int             `json:"reconciled"`
	Auto       int             `json:"auto"`
	Partial    int             `json:"partial"`
	None       int             `json:"none"`
	AutoAmount decimal.Decimal `json:"auto_amount"`
}

// ReconciliationResponse is the Query result (and the precomputed cache
// payload).
type ReconciliationResponse struct {
	Items      []ReconciliationItem  `json:"items"`
	Summary    ReconciliationSummary `json:"summary"`
	ComputedAt time.Time             `json:"computed_at"`
}

// ============================================================
// Persisted reconciliation record
// ============================================================

// ReconciliationRecord permanently links one bank transaction to one
// ledger entry. Write-once per transaction; deletion reverts the link.
type ReconciliationRecord struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenant_id"`
	TransactionID     string    `json:"transaction_id"`
	LedgerEntryID     string    `json:"ledger_entry_id"`
	CustomerID        string    `json:"customer_id,omitempty"`
	Score             int       `json:"score"`
	PaidAt            time.Time `json:"paid_at"`
	TransactionMemo   string    `json:"transaction_memo,omitempty"`
	LedgerDescription string    `json:"ledger_description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// TenantIntegration holds a tenant's AdvBox connection settings. A tenant
// without one cannot run reconciliation.
type TenantIntegration struct {
	TenantID    string `json:"tenant_id"`
	AdvboxToken string `json:"advbox_token"`
	Active      bool   `json:"active"`
}

// Configured reports whether the integration can be used for API calls.
func (t *TenantIntegration) Configured() bool {
	return t != nil && t.Active && t.AdvboxToken != ""
}

// ============================================================
// Requests
// ============================================================

// QueryParams selects the ledger-entry window for one pipeline run.
type QueryParams struct {
	TenantID  string    `json:"tenant_id"`
	DateFrom  time.Time `json:"date_from"`
	DateTo    time.Time `json:"date_to"`
	EntryType string    `json:"entry_type"` // income | expense | "" (both)
}

// ConfirmRequest creates a ReconciliationRecord.
type ConfirmRequest struct {
	TenantID          string  `json:"tenant_id"`
	TransactionID     string  `json:"transaction_id"`
	LedgerEntryID     string  `json:"ledger_entry_id"`
	Score             int     `json:"score"`
	CustomerID        string  `json:"customer_id,omitempty"`
	Amount            float64 `json:"amount,omitempty"`
	TransactionMemo   string  `json:"transaction_memo,omitempty"`
	LedgerDescription string  `json:"ledger_description,omitempty"`
}

// LinkRequest creates or replaces a manual CustomerMapping.
type LinkRequest struct {
	TenantID         string `json:"tenant_id"`
	PayerDocument    string `json:"payer_document"`
	CustomerID       string `json:"customer_id"`
	CustomerName     string `json:"customer_name"`
	CustomerDocument string `json:"customer_document"`
}
