package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"clarte-be/internal/httpx"
	"clarte-be/internal/logger"
	"clarte-be/internal/metrics"
	"clarte-be/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxPayloadBytes = 1 << 20

const topicPayment = "payment"

// Notification is the body Mercado Pago posts. Older deliveries send the id
// as a number, newer ones as a string.
type Notification struct {
	ID     flexibleID `json:"id"`
	Type   string     `json:"type"`
	Action string     `json:"action"`
	Data   struct {
		ID flexibleID `json:"id"`
	} `json:"data"`
}

type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type Handler struct {
	svc     payment.Service
	store   payment.WebhookStore
	secret  string
	metrics *metrics.Registry
}

func NewHandler(svc payment.Service, store payment.WebhookStore, secret string) *Handler {
	return &Handler{svc: svc, store: store, secret: secret}
}

// WithMetrics counts deliveries by outcome under "webhook.*".
func (h *Handler) WithMetrics(r *metrics.Registry) *Handler {
	h.metrics = r
	return h
}

// ServeHTTP acknowledges notifications that can never succeed with 200 so
// the provider stops retrying, and answers 5xx only for failures worth a
// redelivery.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.Layer(ctx, "webhook", "MercadoPago")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	defer r.Body.Close()

	query := r.URL.Query()
	topic := firstNonEmpty(query.Get("topic"), query.Get("type"))
	dataID := firstNonEmpty(query.Get("data.id"), query.Get("id"))

	var n Notification
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &n); err != nil && dataID == "" {
			log.Warn("invalid webhook payload", zap.Error(err))
			httpx.WriteError(w, http.StatusBadRequest, "invalid json payload")
			return
		}
	}
	if n.Type != "" {
		topic = n.Type
	}
	if dataID == "" {
		dataID = string(n.Data.ID)
	}

	if topic != topicPayment {
		h.metrics.Inc("webhook.ignored")
		log.Debug("ignoring notification", zap.String("topic", topic))
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if dataID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing data id")
		return
	}

	log = log.With(zap.String("provider_payment_id", dataID))
	h.metrics.Inc("webhook.received")

	sigErr := payment.VerifySignature(h.secret, dataID, r.Header.Get("x-signature"), r.Header.Get("x-request-id"))

	record := &payment.Webhook{
		Provider:       payment.ProviderMercadoPago,
		EventID:        eventID(n, r),
		EventType:      firstNonEmpty(n.Action, topic),
		ExternalID:     dataID,
		SignatureValid: sigErr == nil,
	}
	if json.Valid(body) {
		record.Payload = body
	}

	processed, err := h.store.SavePaymentWebhook(ctx, record)
	if err != nil {
		log.Error("failed to record webhook", zap.Error(err))
	}

	if sigErr != nil {
		h.metrics.Inc("webhook.rejected")
		log.Warn("rejected webhook with invalid signature")
		h.markFailed(ctx, log, record.ID, sigErr.Error())
		httpx.WriteError(w, http.StatusForbidden, "invalid signature")
		return
	}

	if processed {
		h.metrics.Inc("webhook.duplicate")
		log.Info("duplicate webhook ignored", zap.String("event_id", record.EventID))
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	res, err := h.svc.ReconcileWebhook(ctx, dataID)
	switch {
	case err == nil:
		h.metrics.Inc("webhook.processed")
	case errors.Is(err, payment.ErrMissingReference), errors.Is(err, payment.ErrPaymentNotFound):
		log.Warn("webhook does not match a local payment", zap.Error(err))
		h.markFailed(ctx, log, record.ID, err.Error())
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	case errors.Is(err, payment.ErrPaymentGateway):
		h.markFailed(ctx, log, record.ID, err.Error())
		httpx.WriteError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	default:
		h.markFailed(ctx, log, record.ID, err.Error())
		httpx.WriteError(w, http.StatusInternalServerError, "failed to process notification")
		return
	}

	if record.ID != 0 {
		if err := h.store.MarkWebhookProcessed(ctx, record.ID); err != nil {
			log.Error("failed to mark webhook processed", zap.Error(err))
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"action": res.Action,
	})
}

func (h *Handler) markFailed(ctx context.Context, log *zap.Logger, id int64, reason string) {
	h.metrics.Inc("webhook.failed")
	if id == 0 {
		return
	}
	if err := h.store.MarkWebhookFailed(ctx, id, reason); err != nil {
		log.Error("failed to mark webhook failed", zap.Error(err))
	}
}

// eventID identifies a delivery for deduplication. Notifications without
// an id fall back to the request id header.
func eventID(n Notification, r *http.Request) string {
	if id := strings.TrimSpace(string(n.ID)); id != "" {
		return id
	}
	if id := r.Header.Get("x-request-id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
