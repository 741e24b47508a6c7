package payment

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

var providerStatuses = map[string]Status{
	"approved":   StatusApproved,
	"rejected":   StatusRejected,
	"cancelled":  StatusCancelled,
	"refunded":   StatusRefunded,
	"in_process": StatusPending,
	"pending":    StatusPending,
}

// MapProviderStatus translates a Mercado Pago status. Anything unknown is
// treated as pending.
func MapProviderStatus(s string) Status {
	if st, ok := providerStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusPending
}

// Reopenable reports whether a new attempt may reuse a payment row in this state.
func (s Status) Reopenable() bool {
	return s == StatusPending || s == StatusRejected || s == StatusCancelled
}

type Payment struct {
	ID                int64
	OrderID           int64
	PreferenceID      string
	ProviderPaymentID string
	Status            Status
	StatusDetail      string
	Amount            decimal.Decimal
	Method            string
	Attempts          int
	RawResponse       json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IdempotencyKey is sent with every charge so a retried request for the
// same attempt is never charged twice.
func (p *Payment) IdempotencyKey() string {
	return "payment-" + itoa(p.ID) + "-" + itoa(int64(p.Attempts))
}

// ExternalReference is echoed back by the provider and identifies this row.
func (p *Payment) ExternalReference() string {
	return itoa(p.ID)
}

// apply copies the informational fields of a provider payment.
func (p *Payment) apply(pp *ProviderPayment) {
	if pp.ID != "" {
		p.ProviderPaymentID = pp.ID
	}
	p.StatusDetail = pp.StatusDetail
	p.Method = pp.MethodID
	if len(pp.Raw) > 0 {
		p.RawResponse = pp.Raw
	}
}

type Payer struct {
	Name    string
	Surname string
	Email   string
	// Identification is required by Mercado Pago Mexico for card charges.
	IDType   string
	IDNumber string
}

type Item struct {
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

type PreferenceRequest struct {
	Items             []Item
	Payer             Payer
	ExternalReference string
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
	Raw              json.RawMessage
}

type ChargeRequest struct {
	Amount            decimal.Decimal
	Token             string
	Installments      int
	PaymentMethodID   string
	IssuerID          string
	Payer             Payer
	ExternalReference string
	Description       string
}

// ProviderPayment is the subset of a Mercado Pago payment the service reads.
type ProviderPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	MethodID          string
	ExternalReference string
	Raw               json.RawMessage
}

type Action string

const (
	ActionUpdated Action = "updated"
	ActionIgnored Action = "ignored"
)

type ReconcileResult struct {
	Action    Action `json:"action"`
	PaymentID int64  `json:"payment_id"`
	Previous  Status `json:"previous_status,omitempty"`
	Current   Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

type PreferenceResult struct {
	PreferenceID string `json:"preference_id"`
	InitPoint    string `json:"init_point"`
	PaymentID    int64  `json:"payment_id"`
}

type ChargeResult struct {
	PaymentID      int64  `json:"payment_id"`
	ProviderStatus string `json:"status"`
	StatusDetail   string `json:"status_detail"`
	State          Status `json:"payment_status"`
}
