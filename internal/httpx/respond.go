package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"clarte-be/internal/coupon"
	"clarte-be/internal/inventory"
	"clarte-be/internal/logger"
	"clarte-be/internal/order"
	"clarte-be/internal/payment"
	"clarte-be/internal/validation"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Shortages []order.Shortage  `json:"shortages,omitempty"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, errorBody{Error: message})
}

// RequestError is a malformed request body or parameter.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string { return e.Msg }

// DecodeJSON reads a JSON body of at most 1 MiB into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &RequestError{Msg: "invalid json body"}
	}
	return nil
}

// Error writes err with the status its category maps to. Unknown errors
// are logged and reported as a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr   *RequestError
		verr     *validation.Error
		shortage *order.StockShortageError
	)

	switch {
	case errors.As(err, &reqErr):
		WriteError(w, http.StatusBadRequest, reqErr.Msg)
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, coupon.ErrInvalidCoupon), errors.Is(err, coupon.ErrCouponNotFound):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &shortage):
		WriteJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Shortages: shortage.Shortages})
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, payment.ErrPaymentNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, payment.ErrPaymentGateway):
		logger.FromCtx(r.Context()).Warn("payment gateway error", zap.Error(err))
		WriteError(w, http.StatusBadGateway, "payment provider error, please try again")
	case order.IsBusinessError(err), errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, payment.ErrPaymentInProgress):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		logger.FromCtx(r.Context()).Error("unhandled error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
