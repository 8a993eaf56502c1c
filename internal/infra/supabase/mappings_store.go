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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Manual customer mappings (part of port.ReconciliationStore)
// ============================================================

// mappingRow maps the customer_mappings table.
type mappingRow struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenant_id"`
	PayerDocument    string `json:"payer_document"`
	CustomerID       string `json:"customer_id"`
	CustomerName     string `json:"customer_name"`
	CustomerDocument string `json:"customer_document"`
	CreatedAt        string `json:"created_at"`
}

func (r mappingRow) toDomain() domain.CustomerMapping {
	createdAt, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.CustomerMapping{
		ID:               r.ID,
		TenantID:         r.TenantID,
		PayerDocument:    r.PayerDocument,
		CustomerID:       r.CustomerID,
		CustomerName:     r.CustomerName,
		CustomerDocument: r.CustomerDocument,
		CreatedAt:        createdAt,
	}
}

// ListMappings fetches all manual mappings for a tenant.
func (c *Client) ListMappings(ctx context.Context, tenantID string) ([]domain.CustomerMapping, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListMappings")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var mappings []domain.CustomerMapping

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"customer_mappings?tenant_id=eq.%s",
				url.QueryEscape(tenantID),
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				mappings = []domain.CustomerMapping{}
				return nil
			}

			var rows []mappingRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode customer mappings: %w", err)
			}

			mappings = make([]domain.CustomerMapping, 0, len(rows))
			for _, r := range rows {
				mappings = append(mappings, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customer_mappings", Err: err}
	}

	return mappings, nil
}

// UpsertMapping creates or replaces the mapping for a payer document. The
// conflict target is (tenant_id, payer_document) so a new Link for the
// same document supersedes the old one.
func (c *Client) UpsertMapping(ctx context.Context, m *domain.CustomerMapping) (*domain.CustomerMapping, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertMapping")
	defer span.End()
	span.SetAttributes(attribute.String("payer.document", m.PayerDocument))

	data := map[string]any{
		"id":                uuid.New().String(),
		"tenant_id":         m.TenantID,
		"payer_document":    m.PayerDocument,
		"customer_id":       m.CustomerID,
		"customer_name":     m.CustomerName,
		"customer_document": m.CustomerDocument,
		"created_at":        time.Now().UTC().Format(time.RFC3339),
	}

	var saved *domain.CustomerMapping

	_, err := c.cb.Execute(func() (any, error) {
		path := "customer_mappings?on_conflict=tenant_id,payer_document"
		body, err := c.doPost(ctx, path, data, "return=representation,resolution=merge-duplicates")
		if err != nil {
			return nil, err
		}

		var rows []mappingRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode upserted mapping: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("supabase returned no mapping after upsert")
		}

		row := rows[0].toDomain()
		saved = &row
		return nil, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customer_mappings", Err: err}
	}

	return saved, nil
}
