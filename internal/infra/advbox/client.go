// Package advbox implements the AdvBox accounting API client. Customer
// and ledger-entry listings paginate offset/limit; a failed page degrades
// the listing to the pages fetched so far instead of failing the run.
package advbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("advbox")

// TokenFunc resolves the AdvBox API token for a tenant.
type TokenFunc func(ctx context.Context, tenantID string) (string, error)

// Client calls the AdvBox API on behalf of tenants.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	token      TokenFunc
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a new AdvBox Client.
func NewClient(httpClient *http.Client, baseURL string, pageSize int, token TokenFunc, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		pageSize:   pageSize,
		token:      token,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

type customerPage struct {
	Data  []customerDTO `json:"data"`
	Total int           `json:"total"`
}

type customerDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Document string `json:"cpf_cnpj"`
}

type entryPage struct {
	Data  []entryDTO `json:"data"`
	Total int        `json:"total"`
}

type entryDTO struct {
	ID               int64   `json:"id"`
	Type             string  `json:"type"`
	DueDate          string  `json:"due_date"`
	PaymentDate      *string `json:"payment_date"`
	Amount           float64 `json:"amount"`
	Description      string  `json:"description"`
	CustomerName     string  `json:"customer_name"`
	CustomerDocument string  `json:"customer_cpf_cnpj"`
	Category         string  `json:"category"`
	ReferenceNumber  string  `json:"reference_number"`
}

// ListCustomers pages through the full customer registry for a tenant.
// A page failure mid-scan returns the customers collected so far.
func (c *Client) ListCustomers(ctx context.Context, tenantID string) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "AdvboxClient.ListCustomers")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	token, err := c.token(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var customers []domain.Customer
	offset := 0
	for {
		page, err := c.fetchCustomerPage(ctx, token, offset)
		if err != nil {
			if offset > 0 {
				c.logger.Warn("advbox customer page failed, using partial registry",
					zap.String("tenant_id", tenantID),
					zap.Int("offset", offset),
					zap.Int("fetched", len(customers)),
					zap.Error(err),
				)
				span.SetAttributes(attribute.Bool("partial", true))
				return customers, nil
			}
			return nil, &domain.ErrExternalService{Service: "advbox", Err: err}
		}

		for _, dto := range page.Data {
			customers = append(customers, domain.Customer{
				ID:       strconv.FormatInt(dto.ID, 10),
				Name:     dto.Name,
				Document: dto.Document,
			})
		}

		offset += c.pageSize
		if len(page.Data) < c.pageSize || (page.Total > 0 && offset >= page.Total) {
			break
		}
	}

	span.SetAttributes(attribute.Int("customer.count", len(customers)))
	return customers, nil
}

// ListLedgerEntries pages through ledger entries filtered by due-date
// window and entry type. A page failure mid-scan returns the entries
// collected so far.
func (c *Client) ListLedgerEntries(ctx context.Context, params domain.QueryParams) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "AdvboxClient.ListLedgerEntries")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", params.TenantID),
		attribute.String("entry.type", params.EntryType),
	)

	token, err := c.token(ctx, params.TenantID)
	if err != nil {
		return nil, err
	}

	var entries []domain.LedgerEntry
	offset := 0
	for {
		page, err := c.fetchEntryPage(ctx, token, params, offset)
		if err != nil {
			if offset > 0 {
				c.logger.Warn("advbox ledger page failed, using partial listing",
					zap.String("tenant_id", params.TenantID),
					zap.Int("offset", offset),
					zap.Int("fetched", len(entries)),
					zap.Error(err),
				)
				span.SetAttributes(attribute.Bool("partial", true))
				return entries, nil
			}
			return nil, &domain.ErrExternalService{Service: "advbox", Err: err}
		}

		for _, dto := range page.Data {
			entry, err := dto.toDomain()
			if err != nil {
				c.logger.Warn("skipping malformed ledger entry",
					zap.Int64("entry_id", dto.ID),
					zap.Error(err),
				)
				continue
			}
			entries = append(entries, entry)
		}

		offset += c.pageSize
		if len(page.Data) < c.pageSize || (page.Total > 0 && offset >= page.Total) {
			break
		}
	}

	span.SetAttributes(attribute.Int("entry.count", len(entries)))
	return entries, nil
}

func (c *Client) fetchCustomerPage(ctx context.Context, token string, offset int) (*customerPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))

	var page customerPage
	if err := c.getJSON(ctx, token, "/v1/customers?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) fetchEntryPage(ctx context.Context, token string, params domain.QueryParams, offset int) (*entryPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("due_date_from", params.DateFrom.Format("2006-01-02"))
	q.Set("due_date_to", params.DateTo.Format("2006-01-02"))
	if params.EntryType != "" {
		q.Set("type", params.EntryType)
	}

	var page entryPage
	if err := c.getJSON(ctx, token, "/v1/financial_entries?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// getJSON performs one GET with retry, circuit breaker, and auth header.
func (c *Client) getJSON(ctx context.Context, token, path string, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return &domain.ErrUnauthorized{Message: "advbox rejected the tenant token"}
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("advbox API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(out)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return nil, nil
	})
	return err
}

func (d entryDTO) toDomain() (domain.LedgerEntry, error) {
	dueDate, err := time.Parse("2006-01-02", d.DueDate)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("parse due_date %q: %w", d.DueDate, err)
	}

	entry := domain.LedgerEntry{
		ID:               strconv.FormatInt(d.ID, 10),
		Type:             d.Type,
		DueDate:          dueDate,
		Amount:           d.Amount,
		Description:      d.Description,
		CustomerName:     d.CustomerName,
		CustomerDocument: d.CustomerDocument,
		Category:         d.Category,
		ReferenceNumber:  d.ReferenceNumber,
	}
	if d.PaymentDate != nil && *d.PaymentDate != "" {
		paidAt, err := time.Parse("2006-01-02", *d.PaymentDate)
		if err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("parse payment_date %q: %w", *d.PaymentDate, err)
		}
		entry.PaymentDate = &paidAt
	}
	return entry, nil
}
