package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Tenant integrations (part of port.ReconciliationStore)
// ============================================================

// integrationRow maps the tenant_integrations table.
type integrationRow struct {
	TenantID    string `json:"tenant_id"`
	AdvboxToken string `json:"advbox_token"`
	Active      bool   `json:"active"`
}

// GetTenantIntegration fetches a tenant's AdvBox connection settings.
// Returns ErrNotFound when the tenant never set one up.
func (c *Client) GetTenantIntegration(ctx context.Context, tenantID string) (*domain.TenantIntegration, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTenantIntegration")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	var integration *domain.TenantIntegration

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"tenant_integrations?tenant_id=eq.%s&limit=1",
				url.QueryEscape(tenantID),
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "tenant_integration", ID: tenantID}
			}

			var rows []integrationRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode tenant integration: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "tenant_integration", ID: tenantID}
			}

			integration = &domain.TenantIntegration{
				TenantID:    rows[0].TenantID,
				AdvboxToken: rows[0].AdvboxToken,
				Active:      rows[0].Active,
			}
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/tenant_integrations", Err: err}
	}

	return integration, nil
}

// ListActiveIntegrations returns every tenant with an active AdvBox
// connection. The scheduled precompute warm-up iterates this list.
func (c *Client) ListActiveIntegrations(ctx context.Context) ([]domain.TenantIntegration, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListActiveIntegrations")
	defer span.End()

	var integrations []domain.TenantIntegration

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, "tenant_integrations?active=eq.true")
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				integrations = []domain.TenantIntegration{}
				return nil
			}

			var rows []integrationRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode tenant integrations: %w", err)
			}

			integrations = make([]domain.TenantIntegration, 0, len(rows))
			for _, r := range rows {
				integrations = append(integrations, domain.TenantIntegration{
					TenantID:    r.TenantID,
					AdvboxToken: r.AdvboxToken,
					Active:      r.Active,
				})
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/tenant_integrations", Err: err}
	}

	return integrations, nil
}
