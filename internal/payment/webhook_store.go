package payment

import (
	"context"
	"database/sql"
	"encoding/json"
)

const ProviderMercadoPago = "mercadopago"

// Webhook is one recorded notification delivery.
type Webhook struct {
	ID             int64
	Provider       string
	EventID        string
	EventType      string
	ExternalID     string
	Payload        json.RawMessage
	SignatureValid bool
}

// WebhookStore keeps an audit trail of every notification received.
type WebhookStore interface {
	// SavePaymentWebhook records a delivery. Redeliveries of the same event
	// update the existing row; processed reports whether an earlier delivery
	// of that event already completed.
	SavePaymentWebhook(ctx context.Context, w *Webhook) (processed bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type webhookStore struct {
	db *sql.DB
}

func NewWebhookStore(db *sql.DB) WebhookStore {
	return &webhookStore{db: db}
}

func (s *webhookStore) SavePaymentWebhook(ctx context.Context, w *Webhook) (bool, error) {
	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		external_id,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET
		deliveries = payment_webhooks.deliveries + 1,
		signature_valid = EXCLUDED.signature_valid,
		payload = EXCLUDED.payload
	RETURNING id, processed_at IS NOT NULL;
	`

	var processed bool
	err := s.db.QueryRowContext(
		ctx,
		q,
		w.Provider,
		w.EventID,
		w.EventType,
		w.ExternalID,
		w.SignatureValid,
		rawJSON(w.Payload),
	).Scan(&w.ID, &processed)
	if err != nil {
		return false, err
	}
	return processed, nil
}

func (s *webhookStore) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	const q = `
	UPDATE payment_webhooks
	SET processed_at = now(), process_error = NULL
	WHERE id = $1;
	`

	_, err := s.db.ExecContext(ctx, q, webhookID)
	return err
}

func (s *webhookStore) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := s.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
