package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Bank transactions (implements port.BankStore)
// ============================================================

// bankTransactionRow maps the bank_transactions table, synced from Pluggy.
type bankTransactionRow struct {
	ID               string                  `json:"id"`
	TenantID         string                  `json:"tenant_id"`
	AccountID        string                  `json:"account_id"`
	Amount           float64                 `json:"amount"`
	Date             string                  `json:"date"`
	Description      string                  `json:"description"`
	Direction        string                  `json:"direction"`
	PaymentMetadata  *domain.PaymentMetadata `json:"payment_metadata"`
	ReconciliationID *string                 `json:"reconciliation_id"`
}

// ListBankTransactions fetches a tenant's synced transactions inside the
// date window, newest first.
func (c *Client) ListBankTransactions(ctx context.Context, tenantID string, from, to time.Time) ([]domain.BankTransaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBankTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var transactions []domain.BankTransaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"bank_transactions?tenant_id=eq.%s&date=gte.%s&date=lte.%s&order=date.desc",
				url.QueryEscape(tenantID),
				from.Format("2006-01-02"),
				to.Format("2006-01-02"),
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				transactions = []domain.BankTransaction{}
				return nil
			}

			var rows []bankTransactionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode bank transactions: %w", err)
			}

			transactions = make([]domain.BankTransaction, 0, len(rows))
			for _, r := range rows {
				t, _ := time.Parse(time.RFC3339, r.Date)
				if t.IsZero() {
					t, _ = time.Parse("2006-01-02", r.Date)
				}
				tx := domain.BankTransaction{
					ID:              r.ID,
					TenantID:        r.TenantID,
					AccountID:       r.AccountID,
					Amount:          r.Amount,
					Date:            t,
					Description:     r.Description,
					Direction:       r.Direction,
					PaymentMetadata: r.PaymentMetadata,
				}
				if r.ReconciliationID != nil {
					tx.ReconciliationID = *r.ReconciliationID
				}
				transactions = append(transactions, tx)
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/bank_transactions", Err: err}
	}

	span.SetAttributes(attribute.Int("transaction.count", len(transactions)))
	return transactions, nil
}
