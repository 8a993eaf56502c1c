package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/concilia-app/concilia-api/internal/config"
	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/infra/observability"
	"github.com/concilia-app/concilia-api/internal/port"
	"github.com/concilia-app/concilia-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	svc *service.Reconciliation,
	worker *service.PrecomputeWorker,
	store port.ReconciliationStore,
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Reconciliação
		// GET /v1/tenants/{tenantId}/reconciliation
		// =============================================
		r.Get("/tenants/{tenantId}/reconciliation", queryReconciliationHandler(svc, logger))

		// =============================================
		// 2. Webhooks Pluggy
		// POST /v1/webhooks/pluggy
		// =============================================
		r.Post("/webhooks/pluggy", pluggyWebhookHandler(worker, cfg.WebhookSecret, logger))

		// =============================================
		// 3. Decisões manuais (protegidas por JWT)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware([]byte(cfg.JWTSecret), logger))
			r.Post("/reconciliation/confirm", confirmHandler(svc, logger))
			r.Delete("/reconciliation/{transactionId}", unconfirmHandler(svc, logger))
			r.Post("/customers/link", linkHandler(svc, logger))
		})
	})

	return r
}

// ============================================================
// 1. Reconciliação — GET /v1/tenants/{tenantId}/reconciliation
// ============================================================

func queryReconciliationHandler(svc *service.Reconciliation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tenants/{tenantId}/reconciliation")
		defer span.End()

		tenantID := chi.URLParam(r, "tenantId")
		if tenantID == "" {
			writeError(w, http.StatusBadRequest, "tenant_id is required")
			return
		}
		span.SetAttributes(attribute.String("tenant.id", tenantID))

		params, err := parseQueryParams(tenantID, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := svc.Query(ctx, params)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// parseQueryParams reads the date window and entry-type filter. The window
// defaults to the trailing 30 days.
func parseQueryParams(tenantID string, r *http.Request) (domain.QueryParams, error) {
	params := domain.QueryParams{TenantID: tenantID}

	now := time.Now().UTC()
	params.DateTo = now
	params.DateFrom = now.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return params, &domain.ErrValidation{Field: "from", Message: "expected YYYY-MM-DD"}
		}
		params.DateFrom = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return params, &domain.ErrValidation{Field: "to", Message: "expected YYYY-MM-DD"}
		}
		params.DateTo = t
	}
	if params.DateTo.Before(params.DateFrom) {
		return params, &domain.ErrValidation{Field: "to", Message: "must not precede from"}
	}

	switch v := r.URL.Query().Get("type"); v {
	case "", "income", "expense":
		params.EntryType = v
	default:
		return params, &domain.ErrValidation{Field: "type", Message: "must be income or expense"}
	}

	return params, nil
}

// ============================================================
// 3. Decisões manuais
// ============================================================

func confirmHandler(svc *service.Reconciliation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reconciliation/confirm")
		defer span.End()

		var req domain.ConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// The token decides which tenant the caller acts for.
		req.TenantID = TenantIDFromContext(ctx)
		span.SetAttributes(attribute.String("transaction.id", req.TransactionID))

		record, err := svc.Confirm(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, record)
	}
}

func unconfirmHandler(svc *service.Reconciliation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/reconciliation/{transactionId}")
		defer span.End()

		transactionID := chi.URLParam(r, "transactionId")
		if transactionID == "" {
			writeError(w, http.StatusBadRequest, "transaction_id is required")
			return
		}
		span.SetAttributes(attribute.String("transaction.id", transactionID))

		if err := svc.Unconfirm(ctx, TenantIDFromContext(ctx), transactionID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func linkHandler(svc *service.Reconciliation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/customers/link")
		defer span.End()

		var req domain.LinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.TenantID = TenantIDFromContext(ctx)

		mapping, err := svc.Link(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, mapping)
	}
}

// ============================================================
// Health
// ============================================================

func healthzHandler(store port.ReconciliationStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "concilia-api", Status: "healthy", LatencyMs: 0, UptimePercent: 99.99, LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			_, err := store.GetTenantIntegration(ctx, "health-check")
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			// A not-found answer still proves the store responds.
			var notFound *domain.ErrNotFound
			if err != nil && !errors.As(err, &notFound) {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency,
				UptimePercent: 99.9, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
