package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Reconciliation records (part of port.ReconciliationStore)
// ============================================================

// reconciliationRow maps the reconciliation_records table.
type reconciliationRow struct {
	ID                string `json:"id"`
	TenantID          string `json:"tenant_id"`
	TransactionID     string `json:"transaction_id"`
	LedgerEntryID     string `json:"ledger_entry_id"`
	CustomerID        string `json:"customer_id"`
	Score             int    `json:"score"`
	PaidAt            string `json:"paid_at"`
	TransactionMemo   string `json:"transaction_memo"`
	LedgerDescription string `json:"ledger_description"`
	CreatedAt         string `json:"created_at"`
}

func (r reconciliationRow) toDomain() domain.ReconciliationRecord {
	paidAt, _ := time.Parse(time.RFC3339, r.PaidAt)
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.ReconciliationRecord{
		ID:                r.ID,
		TenantID:          r.TenantID,
		TransactionID:     r.TransactionID,
		LedgerEntryID:     r.LedgerEntryID,
		CustomerID:        r.CustomerID,
		Score:             r.Score,
		PaidAt:            paidAt,
		TransactionMemo:   r.TransactionMemo,
		LedgerDescription: r.LedgerDescription,
		CreatedAt:         createdAt,
	}
}

// GetRecordByTransaction looks up the persisted record for one transaction.
func (c *Client) GetRecordByTransaction(ctx context.Context, tenantID, transactionID string) (*domain.ReconciliationRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRecordByTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	var record *domain.ReconciliationRecord

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"reconciliation_records?tenant_id=eq.%s&transaction_id=eq.%s&limit=1",
				url.QueryEscape(tenantID), url.QueryEscape(transactionID),
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "reconciliation_record", ID: transactionID}
			}

			var rows []reconciliationRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode reconciliation record: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "reconciliation_record", ID: transactionID}
			}

			rec := rows[0].toDomain()
			record = &rec
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/reconciliation_records", Err: err}
	}

	return record, nil
}

// ListRecords fetches all persisted records for a tenant.
func (c *Client) ListRecords(ctx context.Context, tenantID string) ([]domain.ReconciliationRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRecords")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var records []domain.ReconciliationRecord

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"reconciliation_records?tenant_id=eq.%s&order=created_at.desc",
				url.QueryEscape(tenantID),
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				records = []domain.ReconciliationRecord{}
				return nil
			}

			var rows []reconciliationRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode reconciliation records: %w", err)
			}

			records = make([]domain.ReconciliationRecord, 0, len(rows))
			for _, r := range rows {
				records = append(records, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/reconciliation_records", Err: err}
	}

	return records, nil
}

// CreateRecord persists a confirmed match. Insert-if-absent on
// (tenant_id, transaction_id): when a record already exists the insert is
// ignored and ErrAlreadyReconciled carries the existing record's id.
func (c *Client) CreateRecord(ctx context.Context, rec *domain.ReconciliationRecord) (*domain.ReconciliationRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRecord")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", rec.TransactionID))

	now := time.Now().UTC()
	data := map[string]any{
		"id":                 uuid.New().String(),
		"tenant_id":          rec.TenantID,
		"transaction_id":     rec.TransactionID,
		"ledger_entry_id":    rec.LedgerEntryID,
		"customer_id":        rec.CustomerID,
		"score":              rec.Score,
		"paid_at":            rec.PaidAt.Format(time.RFC3339),
		"transaction_memo":   rec.TransactionMemo,
		"ledger_description": rec.LedgerDescription,
		"created_at":         now.Format(time.RFC3339),
	}

	var created *domain.ReconciliationRecord

	_, err := c.cb.Execute(func() (any, error) {
		path := "reconciliation_records?on_conflict=tenant_id,transaction_id"
		body, err := c.doPost(ctx, path, data, "return=representation,resolution=ignore-duplicates")
		if err != nil {
			return nil, err
		}

		// Empty array means the conflict target already had a row.
		if string(body) == "[]" {
			existing, err := c.GetRecordByTransaction(ctx, rec.TenantID, rec.TransactionID)
			if err != nil {
				return nil, &domain.ErrAlreadyReconciled{TransactionID: rec.TransactionID}
			}
			return nil, &domain.ErrAlreadyReconciled{
				TransactionID: rec.TransactionID,
				RecordID:      existing.ID,
			}
		}

		var rows []reconciliationRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode created record: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("supabase returned no record after insert")
		}

		r := rows[0].toDomain()
		created = &r
		return nil, nil
	})

	if err != nil {
		var already *domain.ErrAlreadyReconciled
		if errors.As(err, &already) {
			return nil, already
		}
		return nil, &domain.ErrExternalService{Service: "supabase/reconciliation_records", Err: err}
	}

	return created, nil
}

// DeleteRecordByTransaction removes the record, reverting the transaction
// to unmatched.
func (c *Client) DeleteRecordByTransaction(ctx context.Context, tenantID, transactionID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteRecordByTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	_, err := c.cb.Execute(func() (any, error) {
		path := fmt.Sprintf(
			"reconciliation_records?tenant_id=eq.%s&transaction_id=eq.%s",
			url.QueryEscape(tenantID), url.QueryEscape(transactionID),
		)
		return nil, c.doDelete(ctx, path)
	})

	if err != nil {
		if errors.Is(err, errNoRows) {
			return &domain.ErrNotFound{Resource: "reconciliation_record", ID: transactionID}
		}
		return &domain.ErrExternalService{Service: "supabase/reconciliation_records", Err: err}
	}

	return nil
}
