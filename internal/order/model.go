package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingAddress struct {
	Recipient  string `json:"recipient" validate:"required,max=150"`
	Street     string `json:"street" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=10"`
}

type Order struct {
	ID        int64
	Reference string
	// UserID is nil for guest checkouts.
	UserID        *int64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Status        Status
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CouponCode    string
	Shipping      ShippingAddress
	Notes         string
	Lines         []Line
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
}

// Line prices are captured when the order is created and never change.
type Line struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

func NewLine(productID int64, name, sku string, qty int, unitPrice decimal.Decimal) Line {
	return Line{
		ProductID:   productID,
		ProductName: name,
		SKU:         sku,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		Subtotal:    unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// ApplyTotals recomputes subtotal from the lines and caps the discount at it.
func (o *Order) ApplyTotals(discount decimal.Decimal) {
	subtotal := decimal.Zero
	for _, l := range o.Lines {
		subtotal = subtotal.Add(l.Subtotal)
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	o.Subtotal = subtotal
	o.Discount = discount
	o.Total = subtotal.Sub(discount)
}

// TransitionTo moves the order along the status machine.
func (o *Order) TransitionTo(next Status, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{From: o.Status, To: next}
	}

	o.Status = next
	o.UpdatedAt = now
	switch next {
	case StatusPaid:
		o.PaidAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	return nil
}

func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// IsGuest reports whether the order was placed without an account.
func (o *Order) IsGuest() bool {
	return o.UserID == nil
}
