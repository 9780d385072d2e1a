package domain

import "encoding/json"

// ============================================================
// Wise webhooks
// ============================================================

// SupportedSchemaVersion is the only webhook schema this service understands.
const SupportedSchemaVersion = "2.0.0"

// EventType is the Wise webhook event_type discriminator.
type EventType string

// EventBalanceCredit is sent when money lands on a balance.
const EventBalanceCredit EventType = "balances#credit"

// WebhookEnvelope is the outer shape shared by every Wise webhook.
// Data stays raw until the event handler decodes its own payload.
type WebhookEnvelope struct {
	SchemaVersion  string          `json:"schema_version"`
	EventType      EventType       `json:"event_type"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	SentAt         string          `json:"sent_at,omitempty"`
	Data           json.RawMessage `json:"data"`
}

// BalanceCreditData is the data block of a balances#credit event.
// Pointers distinguish absent fields from zero values.
type BalanceCreditData struct {
	Resource struct {
		Type      string `json:"type"`
		ID        *int64 `json:"id"`
		ProfileID *int64 `json:"profile_id"`
	} `json:"resource"`
	TransactionType string  `json:"transaction_type"`
	Currency        *string `json:"currency"`
	OccurredAt      string  `json:"occurred_at,omitempty"`
}

// ConfigurationProbeAccountID is the account id Wise sends on the credit event
// it fires when a webhook subscription is first configured.
const ConfigurationProbeAccountID int64 = 0
