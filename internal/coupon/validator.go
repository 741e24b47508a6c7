package coupon

import (
	"context"
	"time"

	"clarte-be/internal/db"
	"clarte-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Validator interface {
	Validate(ctx context.Context, q db.Querier, code string, subtotal decimal.Decimal, now time.Time) (*Validation, error)
	Redeem(ctx context.Context, q db.Querier, v *Validation, orderID int64) (*Redemption, error)
	Confirm(ctx context.Context, q db.Querier, orderID int64) error
}

type validator struct {
	repo Repository
}

func NewValidator(repo Repository) Validator {
	return &validator{repo: repo}
}

// Validate never touches the usage counter.
func (v *validator) Validate(ctx context.Context, q db.Querier, code string, subtotal decimal.Decimal, now time.Time) (*Validation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCouponNotFound
	}

	c, err := v.repo.GetByCode(ctx, q, code)
	if err != nil {
		return nil, err
	}
	if err := c.Check(subtotal, now); err != nil {
		return nil, err
	}

	return &Validation{Coupon: c, Discount: c.ComputeDiscount(subtotal)}, nil
}

func (v *validator) Redeem(ctx context.Context, q db.Querier, val *Validation, orderID int64) (*Redemption, error) {
	red := &Redemption{
		CouponID: val.Coupon.ID,
		OrderID:  orderID,
		Code:     val.Coupon.Code,
		Amount:   val.Discount,
	}
	if err := v.repo.CreateRedemption(ctx, q, red); err != nil {
		return nil, err
	}
	return red, nil
}

// Confirm counts the order's redemption against the coupon. Running it
// again for the same order is a no-op.
func (v *validator) Confirm(ctx context.Context, q db.Querier, orderID int64) error {
	log := logger.Layer(ctx, "coupon", "Confirm", zap.Int64("order_id", orderID))

	red, err := v.repo.ConfirmRedemption(ctx, q, orderID)
	if err != nil {
		return err
	}
	if red == nil {
		return nil
	}

	counted, err := v.repo.IncrementUsage(ctx, q, red.CouponID)
	if err != nil {
		return err
	}
	if !counted {
		log.Warn("coupon usage cap reached before confirmation, counter left at cap",
			zap.String("code", red.Code),
		)
		return nil
	}

	log.Info("coupon redemption confirmed", zap.String("code", red.Code))
	return nil
}
