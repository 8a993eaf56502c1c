package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/concilia-app/concilia-api/internal/config"
	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/handler"
	"github.com/concilia-app/concilia-api/internal/infra/advbox"
	"github.com/concilia-app/concilia-api/internal/infra/cache"
	"github.com/concilia-app/concilia-api/internal/infra/notify"
	"github.com/concilia-app/concilia-api/internal/infra/observability"
	"github.com/concilia-app/concilia-api/internal/infra/resilience"
	"github.com/concilia-app/concilia-api/internal/infra/supabase"
	"github.com/concilia-app/concilia-api/internal/matching"
	"github.com/concilia-app/concilia-api/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// testEnv wires the full stack against mock Supabase and AdvBox servers.
type testEnv struct {
	router         http.Handler
	broker         *notify.Broker
	advboxRequests *int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	today := time.Now().UTC().Format("2006-01-02")

	// --- Mock Supabase (PostgREST) ---
	supabaseServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/rest/v1/tenant_integrations"):
			fmt.Fprint(w, `[{"tenant_id":"tenant-1","advbox_token":"advbox-tok","active":true}]`)

		case strings.HasPrefix(r.URL.Path, "/rest/v1/bank_transactions"):
			fmt.Fprintf(w, `[{
				"id": "tx-1",
				"tenant_id": "tenant-1",
				"account_id": "acc-1",
				"amount": 500,
				"date": %q,
				"description": "PIX RECEBIDO MARIA DA SILVA",
				"direction": "credit",
				"payment_metadata": {"payer_document": "123.456.789-00", "payer_name": "Maria da Silva"}
			}]`, today)

		case strings.HasPrefix(r.URL.Path, "/rest/v1/reconciliation_records"):
			if r.Method == http.MethodPost {
				fmt.Fprintf(w, `[{
					"id": "rec-1",
					"tenant_id": "tenant-1",
					"transaction_id": "tx-1",
					"ledger_entry_id": "1001",
					"score": 85,
					"paid_at": %q,
					"created_at": %q
				}]`, time.Now().Format(time.RFC3339), time.Now().Format(time.RFC3339))
				return
			}
			fmt.Fprint(w, `[]`)

		case strings.HasPrefix(r.URL.Path, "/rest/v1/customer_mappings"):
			fmt.Fprint(w, `[]`)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(supabaseServer.Close)

	// --- Mock AdvBox ---
	var advboxRequests int64
	advboxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&advboxRequests, 1)
		if r.Header.Get("Authorization") != "Bearer advbox-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/customers"):
			fmt.Fprint(w, `{"data":[{"id":1,"name":"Maria da Silva","cpf_cnpj":"123.456.789-00"}],"total":1}`)
		case strings.HasPrefix(r.URL.Path, "/v1/financial_entries"):
			fmt.Fprintf(w, `{"data":[{
				"id": 1001,
				"type": "income",
				"due_date": %q,
				"amount": 500,
				"description": "Honorários janeiro",
				"customer_name": "Maria da Silva",
				"customer_cpf_cnpj": "123.456.789-00"
			}],"total":1}`, today)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(advboxServer.Close)

	// --- Build the stack ---
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cb := resilience.NewCircuitBreaker("integration-test")
	resCfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	store := supabase.NewClient(httpClient, supabaseServer.URL, "anon-key", "service-key", cb, resCfg, logger)

	ledger := advbox.NewClient(httpClient, advboxServer.URL, 100, func(ctx context.Context, tenantID string) (string, error) {
		integration, err := store.GetTenantIntegration(ctx, tenantID)
		if err != nil {
			return "", err
		}
		return integration.AdvboxToken, nil
	}, cb, resCfg, logger)

	resultCache := cache.New[domain.ReconciliationResponse](time.Minute)
	svc := service.NewReconciliation(
		ledger,
		store,
		store,
		cache.New[*matching.Directory](time.Minute),
		resultCache,
		matching.DefaultWeights(),
		matching.DefaultThresholds(),
		metrics,
		logger,
	)

	broker := notify.NewBroker(logger)
	worker := service.NewPrecomputeWorker(svc, resultCache, broker, 2, 30, time.Minute, metrics, logger)

	cfg := &config.Config{JWTSecret: "integration-secret"}
	router := handler.NewRouter(svc, worker, store, cfg, metrics, logger)

	return &testEnv{router: router, broker: broker, advboxRequests: &advboxRequests}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, handler.JWTClaims{
		Sub:      "user-1",
		TenantID: "tenant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("integration-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestIntegration_QueryFlow(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/tenant-1/reconciliation", nil)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}

	var resp domain.ReconciliationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Summary.Total != 1 {
		t.Fatalf("summary.Total = %d, want 1", resp.Summary.Total)
	}
	if resp.Summary.Auto != 1 {
		t.Errorf("summary.Auto = %d, want 1", resp.Summary.Auto)
	}
	item := resp.Items[0]
	if item.Tier != domain.TierAuto {
		t.Errorf("tier = %q, want auto", item.Tier)
	}
	if item.BestMatch == nil || item.BestMatch.Entry.ID != "1001" {
		t.Fatal("the transaction should match ledger entry 1001")
	}
	if len(item.BestMatch.Reasons) != 4 {
		t.Errorf("got %d reasons, want the full factor breakdown", len(item.BestMatch.Reasons))
	}
}

func TestIntegration_ConfirmFlow(t *testing.T) {
	env := newTestEnv(t)

	body := bytes.NewBufferString(`{"transaction_id":"tx-1","ledger_entry_id":"1001","score":85}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/reconciliation/confirm", body)
	req.Header.Set("Authorization", "Bearer "+env.token(t))
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var record domain.ReconciliationRecord
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if record.ID != "rec-1" {
		t.Errorf("record.ID = %q", record.ID)
	}
}

func TestIntegration_WebhookPrecomputesAndCaches(t *testing.T) {
	env := newTestEnv(t)

	events, cancel := env.broker.Subscribe("tenant-1")
	defer cancel()

	body := bytes.NewBufferString(`{"event":"transactions/created","data":{"itemId":"item-1","clientUserId":"tenant-1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/pluggy", body)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	select {
	case event := <-events:
		if event.Type != domain.EventReconciliationReady {
			t.Fatalf("event.Type = %q", event.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the precompute event")
	}

	// The follow-up query must be served from the precomputed cache
	// without touching AdvBox again.
	before := atomic.LoadInt64(env.advboxRequests)

	req = httptest.NewRequest(http.MethodGet, "/v1/tenants/tenant-1/reconciliation", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if after := atomic.LoadInt64(env.advboxRequests); after != before {
		t.Errorf("AdvBox was called %d more times, want a cache hit", after-before)
	}
}
