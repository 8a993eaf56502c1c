package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/concilia-app/concilia-api/internal/domain"
	"github.com/concilia-app/concilia-api/internal/service"

	"go.uber.org/zap"
)

// pluggyWebhookHandler receives Pluggy sync notifications and triggers a
// background precompute for the affected tenant. Deliveries are always
// acknowledged with 202 unless the body is unreadable or the signature
// fails, so Pluggy does not retry work we already accepted.
func pluggyWebhookHandler(worker *service.PrecomputeWorker, secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/webhooks/pluggy")
		defer span.End()

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}

		if secret != "" {
			sig := r.Header.Get("X-Webhook-Signature")
			if !validSignature(secret, body, sig) {
				logger.Warn("webhook: signature mismatch",
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
		}

		event, err := domain.ParseWebhookEvent(body)
		if err != nil {
			logger.Warn("webhook: malformed delivery", zap.Error(err))
			writeError(w, http.StatusBadRequest, "malformed event")
			return
		}
		if event == nil {
			// Unknown event kind: acknowledge and drop.
			w.WriteHeader(http.StatusAccepted)
			return
		}

		switch event.Kind {
		case domain.WebhookItemUpdated, domain.WebhookTransactionsCreated, domain.WebhookTransactionsUpdated:
			tenantID := event.TenantID()
			if tenantID == "" {
				logger.Warn("webhook: event without tenant", zap.String("kind", event.Kind))
				break
			}
			logger.Info("webhook: triggering precompute",
				zap.String("kind", event.Kind),
				zap.String("tenant_id", tenantID),
			)
			worker.Trigger(tenantID)
		case domain.WebhookConnectorStatus:
			logger.Info("webhook: connector status",
				zap.Int("connector_id", event.Connector.ConnectorID),
				zap.String("status", event.Connector.Status),
			)
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

// validSignature checks the hex-encoded HMAC-SHA256 of the raw body.
func validSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
