package payment

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentGateway     = errors.New("payment gateway error")
	ErrMissingReference   = errors.New("payment notification has no external reference")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrAccessTokenMissing = errors.New("mercado pago access token is not configured")
)

// GatewayError describes a failed call to the provider. It matches
// ErrPaymentGateway.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mercado pago %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("mercado pago %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *GatewayError) Is(target error) bool { return target == ErrPaymentGateway }

func (e *GatewayError) Unwrap() error { return e.Err }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// ErrPaymentSettled is returned when an order's payment can no longer be
// reopened for a new attempt.
var ErrPaymentSettled = errors.New("payment already settled")

// ErrPaymentInProgress is returned while the order's pending payment already
// has a charge at the provider awaiting its outcome.
var ErrPaymentInProgress = errors.New("payment already in progress")
