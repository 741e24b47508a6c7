package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clarte-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	mercadoPagoBaseURL = "https://api.mercadopago.com"
	maxTitleLength     = 250
	defaultIDType      = "RFC"
	// Generic RFC accepted by Mercado Pago Mexico when the buyer gives none.
	defaultIDNumber = "XAXX010101000"
)

type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	CreatePayment(ctx context.Context, req ChargeRequest, idempotencyKey string) (*ProviderPayment, error)
	GetPayment(ctx context.Context, providerPaymentID string) (*ProviderPayment, error)
}

type GatewayConfig struct {
	AccessToken string
	BaseURL     string
	Currency    string
	FrontendURL string
	BackendURL  string
	Timeout     time.Duration
}

type mercadoPagoGateway struct {
	cfg        GatewayConfig
	httpClient *http.Client
}

func NewMercadoPagoGateway(cfg GatewayConfig) Gateway {
	if cfg.AccessToken == "" {
		logger.L().Warn("Mercado Pago access token is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = mercadoPagoBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "MXN"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &mercadoPagoGateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type mpItem struct {
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id"`
}

type mpPayer struct {
	Name           string            `json:"name,omitempty"`
	Surname        string            `json:"surname,omitempty"`
	Email          string            `json:"email,omitempty"`
	Identification *mpIdentification `json:"identification,omitempty"`
}

type mpIdentification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type mpPreferenceRequest struct {
	Items             []mpItem   `json:"items"`
	Payer             mpPayer    `json:"payer"`
	BackURLs          mpBackURLs `json:"back_urls"`
	AutoReturn        string     `json:"auto_return"`
	ExternalReference string     `json:"external_reference"`
	NotificationURL   string     `json:"notification_url"`
}

type mpPaymentRequest struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	Token             string      `json:"token"`
	Installments      int         `json:"installments"`
	PaymentMethodID   string      `json:"payment_method_id"`
	IssuerID          string      `json:"issuer_id,omitempty"`
	Payer             mpPayer     `json:"payer"`
	ExternalReference string      `json:"external_reference"`
	Description       string      `json:"description,omitempty"`
}

type mpPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	PaymentMethodID   string      `json:"payment_method_id"`
	ExternalReference string      `json:"external_reference"`
}

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ----------------- CreatePreference -----------------

func (g *mercadoPagoGateway) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	log := logger.Layer(ctx, "gateway", "CreatePreference",
		zap.String("external_reference", req.ExternalReference),
		zap.Int("items", len(req.Items)),
	)

	items := make([]mpItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, mpItem{
			Title:      truncate(it.Title, maxTitleLength),
			Quantity:   it.Quantity,
			UnitPrice:  amount(it.UnitPrice),
			CurrencyID: g.cfg.Currency,
		})
	}

	body := mpPreferenceRequest{
		Items: items,
		Payer: mpPayer{
			Name:    req.Payer.Name,
			Surname: req.Payer.Surname,
			Email:   req.Payer.Email,
		},
		BackURLs: mpBackURLs{
			Success: g.cfg.FrontendURL + "/pago/exito",
			Failure: g.cfg.FrontendURL + "/pago/fallo",
			Pending: g.cfg.FrontendURL + "/pago/pendiente",
		},
		AutoReturn:        "approved",
		ExternalReference: req.ExternalReference,
		NotificationURL:   g.cfg.BackendURL + "/api/v1/payments/webhook",
	}

	raw, err := g.do(ctx, "create preference", http.MethodPost, "/checkout/preferences", body, nil)
	if err != nil {
		log.Error("Mercado Pago preference failed", zap.Error(err))
		return nil, err
	}

	var res struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		log.Error("Failed decoding preference response", zap.Error(err))
		return nil, &GatewayError{Op: "create preference", Err: err}
	}

	log.Info("Mercado Pago preference created", zap.String("preference_id", res.ID))

	return &Preference{
		ID:               res.ID,
		InitPoint:        res.InitPoint,
		SandboxInitPoint: res.SandboxInitPoint,
		Raw:              raw,
	}, nil
}

// ----------------- CreatePayment -----------------

func (g *mercadoPagoGateway) CreatePayment(ctx context.Context, req ChargeRequest, idempotencyKey string) (*ProviderPayment, error) {
	log := logger.Layer(ctx, "gateway", "CreatePayment",
		zap.String("external_reference", req.ExternalReference),
		zap.String("idempotency_key", idempotencyKey),
		zap.String("payment_method", req.PaymentMethodID),
	)

	idType := strings.TrimSpace(req.Payer.IDType)
	idNumber := strings.TrimSpace(req.Payer.IDNumber)
	if idType == "" || idNumber == "" {
		idType, idNumber = defaultIDType, defaultIDNumber
	}

	body := mpPaymentRequest{
		TransactionAmount: amount(req.Amount),
		Token:             req.Token,
		Installments:      req.Installments,
		PaymentMethodID:   req.PaymentMethodID,
		IssuerID:          req.IssuerID,
		Payer: mpPayer{
			Email:          req.Payer.Email,
			Identification: &mpIdentification{Type: idType, Number: idNumber},
		},
		ExternalReference: req.ExternalReference,
		Description:       req.Description,
	}

	raw, err := g.do(ctx, "create payment", http.MethodPost, "/v1/payments", body, map[string]string{
		"X-Idempotency-Key": idempotencyKey,
	})
	if err != nil {
		log.Error("Mercado Pago charge failed", zap.Error(err))
		return nil, err
	}

	pp, err := decodePayment(raw)
	if err != nil {
		log.Error("Failed decoding payment response", zap.Error(err))
		return nil, &GatewayError{Op: "create payment", Err: err}
	}

	log.Info("Mercado Pago charge processed",
		zap.String("provider_payment_id", pp.ID),
		zap.String("status", pp.Status),
		zap.String("status_detail", pp.StatusDetail),
	)
	return pp, nil
}

// ----------------- GetPayment -----------------

func (g *mercadoPagoGateway) GetPayment(ctx context.Context, providerPaymentID string) (*ProviderPayment, error) {
	log := logger.Layer(ctx, "gateway", "GetPayment", zap.String("provider_payment_id", providerPaymentID))

	raw, err := g.do(ctx, "get payment", http.MethodGet, "/v1/payments/"+url.PathEscape(providerPaymentID), nil, nil)
	if err != nil {
		log.Error("Mercado Pago payment lookup failed", zap.Error(err))
		return nil, err
	}

	pp, err := decodePayment(raw)
	if err != nil {
		log.Error("Failed decoding payment", zap.Error(err))
		return nil, &GatewayError{Op: "get payment", Err: err}
	}
	return pp, nil
}

func decodePayment(raw []byte) (*ProviderPayment, error) {
	var res mpPayment
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &ProviderPayment{
		ID:                res.ID.String(),
		Status:            res.Status,
		StatusDetail:      res.StatusDetail,
		MethodID:          res.PaymentMethodID,
		ExternalReference: res.ExternalReference,
		Raw:               json.RawMessage(raw),
	}, nil
}

// do sends one authenticated request and returns the body of a 2xx response.
func (g *mercadoPagoGateway) do(ctx context.Context, op, method, path string, body any, headers map[string]string) ([]byte, error) {
	if g.cfg.AccessToken == "" {
		return nil, &GatewayError{Op: op, Err: ErrAccessTokenMissing}
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	return bodyBytes, nil
}
