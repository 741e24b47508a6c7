package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestGateway(token string) *mercadoPagoGateway {
	return NewMercadoPagoGateway(GatewayConfig{
		AccessToken: token,
		Currency:    "MXN",
		FrontendURL: "https://shop.example.com",
		BackendURL:  "https://api.example.com",
	}).(*mercadoPagoGateway)
}

func TestMercadoPagoGateway_CreatePreference(t *testing.T) {
	gw := newTestGateway("APP_USR-test")
	req := PreferenceRequest{
		Items: []Item{
			{Title: strings.Repeat("a", 300), Quantity: 2, UnitPrice: decimal.RequireFromString("199.9")},
		},
		Payer:             Payer{Name: "Ana", Surname: "López", Email: "ana@example.com"},
		ExternalReference: "42",
	}

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "https://api.mercadopago.com/checkout/preferences", r.URL.String())
			assert.Equal(t, "Bearer APP_USR-test", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "42", body["external_reference"])
			assert.Equal(t, "approved", body["auto_return"])
			assert.Equal(t, "https://api.example.com/api/v1/payments/webhook", body["notification_url"])

			back := body["back_urls"].(map[string]any)
			assert.Equal(t, "https://shop.example.com/pago/exito", back["success"])

			item := body["items"].([]any)[0].(map[string]any)
			assert.Len(t, item["title"], 250)
			assert.Equal(t, 199.9, item["unit_price"])
			assert.Equal(t, "MXN", item["currency_id"])

			return jsonResponse(http.StatusCreated, `{"id":"pref-1","init_point":"https://mp.example/init"}`)
		})

		pref, err := gw.CreatePreference(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "pref-1", pref.ID)
		assert.Equal(t, "https://mp.example/init", pref.InitPoint)
		assert.NotEmpty(t, pref.Raw)
	})

	t.Run("APIError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusBadRequest, `{"message":"invalid items"}`)
		})

		_, err := gw.CreatePreference(context.Background(), req)
		assert.ErrorIs(t, err, ErrPaymentGateway)

		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
		assert.Contains(t, gwErr.Body, "invalid items")
	})

	t.Run("NetworkError", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripperWithError(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset")
		})

		_, err := gw.CreatePreference(context.Background(), req)
		assert.ErrorIs(t, err, ErrPaymentGateway)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusOK, `{invalid`)
		})

		_, err := gw.CreatePreference(context.Background(), req)
		assert.ErrorIs(t, err, ErrPaymentGateway)
	})
}

func TestMercadoPagoGateway_CreatePayment(t *testing.T) {
	gw := newTestGateway("APP_USR-test")
	req := ChargeRequest{
		Amount:            decimal.RequireFromString("450"),
		Token:             "card-token",
		Installments:      1,
		PaymentMethodID:   "visa",
		Payer:             Payer{Email: "ana@example.com"},
		ExternalReference: "42",
		Description:       "Pedido #LP-20250301-0001",
	}

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, "https://api.mercadopago.com/v1/payments", r.URL.String())
			assert.Equal(t, "payment-42-1", r.Header.Get("X-Idempotency-Key"))

			raw, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(raw), `"transaction_amount":450.00`)

			var body map[string]any
			require.NoError(t, json.Unmarshal(raw, &body))
			ident := body["payer"].(map[string]any)["identification"].(map[string]any)
			assert.Equal(t, "RFC", ident["type"])
			assert.Equal(t, "XAXX010101000", ident["number"])
			_, hasIssuer := body["issuer_id"]
			assert.False(t, hasIssuer)

			return jsonResponse(http.StatusCreated, `{
				"id": 1234567890,
				"status": "approved",
				"status_detail": "accredited",
				"payment_method_id": "visa",
				"external_reference": "42"
			}`)
		})

		pp, err := gw.CreatePayment(context.Background(), req, "payment-42-1")
		require.NoError(t, err)
		assert.Equal(t, "1234567890", pp.ID)
		assert.Equal(t, "approved", pp.Status)
		assert.Equal(t, "accredited", pp.StatusDetail)
		assert.Equal(t, "visa", pp.MethodID)
		assert.Equal(t, "42", pp.ExternalReference)
	})

	t.Run("KeepsBuyerIdentification", func(t *testing.T) {
		withID := req
		withID.Payer.IDType = "CURP"
		withID.Payer.IDNumber = "LOAA900101MDFRRN09"

		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			raw, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(raw), `"type":"CURP"`)
			return jsonResponse(http.StatusOK, `{"id": 1, "status": "in_process"}`)
		})

		pp, err := gw.CreatePayment(context.Background(), withID, "payment-42-2")
		require.NoError(t, err)
		assert.Equal(t, "in_process", pp.Status)
	})

	t.Run("Declined", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusBadRequest, `{"message":"invalid card token"}`)
		})

		_, err := gw.CreatePayment(context.Background(), req, "payment-42-1")
		assert.ErrorIs(t, err, ErrPaymentGateway)
	})
}

func TestMercadoPagoGateway_GetPayment(t *testing.T) {
	gw := newTestGateway("APP_USR-test")

	t.Run("Success", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "https://api.mercadopago.com/v1/payments/987", r.URL.String())
			assert.Empty(t, r.Header.Get("Content-Type"))
			return jsonResponse(http.StatusOK, `{"id": 987, "status": "rejected", "status_detail": "cc_rejected_other_reason", "external_reference": "7"}`)
		})

		pp, err := gw.GetPayment(context.Background(), "987")
		require.NoError(t, err)
		assert.Equal(t, "987", pp.ID)
		assert.Equal(t, "7", pp.ExternalReference)
		assert.Equal(t, StatusRejected, MapProviderStatus(pp.Status))
	})

	t.Run("NotFound", func(t *testing.T) {
		gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
			return jsonResponse(http.StatusNotFound, `{"message":"Payment not found"}`)
		})

		_, err := gw.GetPayment(context.Background(), "987")
		assert.ErrorIs(t, err, ErrPaymentGateway)
	})
}

func TestMercadoPagoGateway_MissingToken(t *testing.T) {
	gw := newTestGateway("")
	gw.httpClient.Transport = MockRoundTripper(func(r *http.Request) *http.Response {
		t.Fatal("no request expected without a token")
		return nil
	})

	_, err := gw.GetPayment(context.Background(), "1")
	assert.ErrorIs(t, err, ErrAccessTokenMissing)
	assert.ErrorIs(t, err, ErrPaymentGateway)
}
