package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPercentage  Kind = "percentage"
	KindFixedAmount Kind = "fixed_amount"
)

var hundred = decimal.NewFromInt(100)

type Coupon struct {
	ID          int64
	Code        string
	Name        string
	Kind        Kind
	Value       decimal.Decimal
	MinPurchase decimal.Decimal
	MaxUses     *int
	TimesUsed   int
	Active      bool
	StartsAt    *time.Time
	EndsAt      *time.Time
	CreatedAt   time.Time
}

// Redemption ties a coupon to the order it was applied to. Amount is fixed
// when the order is created; ConfirmedAt is set once payment is approved.
type Redemption struct {
	ID          int64
	CouponID    int64
	OrderID     int64
	Code        string
	Amount      decimal.Decimal
	ConfirmedAt *time.Time
	CreatedAt   time.Time
}

// Validation is a coupon that passed every check, with its discount.
type Validation struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ComputeDiscount never returns more than subtotal.
func (c *Coupon) ComputeDiscount(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch c.Kind {
	case KindPercentage:
		// Round is half away from zero, i.e. half-up for positive amounts.
		d = subtotal.Mul(c.Value).Div(hundred).Round(2)
	case KindFixedAmount:
		d = decimal.Min(c.Value, subtotal)
	default:
		return decimal.Zero
	}

	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}

// Check runs the eligibility rules in order and stops at the first failure.
func (c *Coupon) Check(subtotal decimal.Decimal, now time.Time) error {
	switch {
	case !c.Active:
		return c.invalid("coupon is not active")
	case c.StartsAt != nil && now.Before(*c.StartsAt):
		return c.invalid("coupon is not valid yet")
	case c.EndsAt != nil && now.After(*c.EndsAt):
		return c.invalid("coupon has expired")
	case c.MaxUses != nil && c.TimesUsed >= *c.MaxUses:
		return c.invalid("coupon usage limit reached")
	case subtotal.LessThan(c.MinPurchase):
		return c.invalid("minimum purchase of $" + c.MinPurchase.StringFixed(2) + " required")
	}
	return nil
}

func (c *Coupon) invalid(reason string) error {
	return &InvalidCouponError{Code: c.Code, Reason: reason}
}
