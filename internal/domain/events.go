package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Pluggy webhook events
// ============================================================

// Webhook event kinds Pluggy delivers. Anything else is acknowledged and
// dropped.
const (
	WebhookItemUpdated         = "item/updated"
	WebhookTransactionsCreated = "transactions/created"
	WebhookTransactionsUpdated = "transactions/updated"
	WebhookConnectorStatus     = "connector/status_updated"
)

// WebhookEvent is the decoded, tagged form of a Pluggy webhook delivery.
// Exactly one of the variant pointers is non-nil, matching Kind.
type WebhookEvent struct {
	Kind        string
	Item        *ItemUpdatedEvent
	Transaction *TransactionsEvent
	Connector   *ConnectorStatusEvent
}

// ItemUpdatedEvent signals that a connected bank item finished syncing.
type ItemUpdatedEvent struct {
	ItemID    string    `json:"itemId"`
	TenantID  string    `json:"clientUserId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TransactionsEvent signals new or changed transactions for an item.
type TransactionsEvent struct {
	ItemID         string   `json:"itemId"`
	TenantID       string   `json:"clientUserId"`
	AccountID      string   `json:"accountId"`
	TransactionIDs []string `json:"transactionIds"`
}

// ConnectorStatusEvent signals a connector health change. Logged only.
type ConnectorStatusEvent struct {
	ConnectorID int    `json:"connectorId"`
	Status      string `json:"status"`
}

// ParseWebhookEvent decodes a raw webhook body into its tagged variant.
// Unknown event kinds return (nil, nil): the caller acknowledges and drops
// them without treating the delivery as an error.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if envelope.Event == "" {
		return nil, &ErrValidation{Field: "event", Message: "required"}
	}

	payload := envelope.Data
	if len(payload) == 0 {
		// Some Pluggy deliveries put the fields at the top level.
		payload = body
	}

	ev := &WebhookEvent{Kind: envelope.Event}
	switch envelope.Event {
	case WebhookItemUpdated:
		var v ItemUpdatedEvent
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Event, err)
		}
		ev.Item = &v
	case WebhookTransactionsCreated, WebhookTransactionsUpdated:
		var v TransactionsEvent
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Event, err)
		}
		ev.Transaction = &v
	case WebhookConnectorStatus:
		var v ConnectorStatusEvent
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", envelope.Event, err)
		}
		ev.Connector = &v
	default:
		return nil, nil
	}
	return ev, nil
}

// TenantID returns the tenant the event belongs to, or "" for events that
// carry none (connector status).
func (e *WebhookEvent) TenantID() string {
	switch e.Kind {
	case WebhookItemUpdated:
		return e.Item.TenantID
	case WebhookTransactionsCreated, WebhookTransactionsUpdated:
		return e.Transaction.TenantID
	}
	return ""
}

// ============================================================
// Published events
// ============================================================

// EventReconciliationReady is published after a precompute run lands its
// result in the cache.
const EventReconciliationReady = "reconciliation.ready"

// Event is a notification published to subscribers of a tenant channel.
type Event struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id"`
	CacheKey   string    `json:"cache_key,omitempty"`
	ComputedAt time.Time `json:"computed_at,omitempty"`
}
