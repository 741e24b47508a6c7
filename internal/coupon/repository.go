package coupon

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clarte-be/internal/db"
)

type Repository interface {
	GetByCode(ctx context.Context, q db.Querier, code string) (*Coupon, error)
	CreateRedemption(ctx context.Context, q db.Querier, r *Redemption) error
	// ConfirmRedemption stamps the order's redemption and returns it, or
	// nil when there is none or it was already confirmed.
	ConfirmRedemption(ctx context.Context, q db.Querier, orderID int64) (*Redemption, error)
	IncrementUsage(ctx context.Context, q db.Querier, couponID int64) (bool, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) GetByCode(ctx context.Context, q db.Querier, code string) (*Coupon, error) {
	var (
		c       Coupon
		maxUses sql.NullInt64
		starts  sql.NullTime
		ends    sql.NullTime
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, code, name, kind, value, min_purchase, max_uses, times_used,
		       active, starts_at, ends_at, created_at
		FROM coupons
		WHERE code = $1
	`, code).Scan(
		&c.ID, &c.Code, &c.Name, &c.Kind, &c.Value, &c.MinPurchase, &maxUses,
		&c.TimesUsed, &c.Active, &starts, &ends, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	if maxUses.Valid {
		n := int(maxUses.Int64)
		c.MaxUses = &n
	}
	if starts.Valid {
		c.StartsAt = &starts.Time
	}
	if ends.Valid {
		c.EndsAt = &ends.Time
	}
	return &c, nil
}

func (r *repository) CreateRedemption(ctx context.Context, q db.Querier, red *Redemption) error {
	return q.QueryRowContext(ctx, `
		INSERT INTO coupon_redemptions (coupon_id, order_id, code, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, red.CouponID, red.OrderID, red.Code, red.Amount).Scan(&red.ID, &red.CreatedAt)
}

func (r *repository) ConfirmRedemption(ctx context.Context, q db.Querier, orderID int64) (*Redemption, error) {
	var (
		red       Redemption
		confirmed time.Time
	)
	err := q.QueryRowContext(ctx, `
		UPDATE coupon_redemptions
		SET confirmed_at = NOW()
		WHERE order_id = $1 AND confirmed_at IS NULL
		RETURNING id, coupon_id, order_id, code, amount, confirmed_at, created_at
	`, orderID).Scan(
		&red.ID, &red.CouponID, &red.OrderID, &red.Code, &red.Amount, &confirmed, &red.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	red.ConfirmedAt = &confirmed
	return &red, nil
}

// IncrementUsage bumps times_used unless the cap is already reached.
func (r *repository) IncrementUsage(ctx context.Context, q db.Querier, couponID int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE coupons
		SET times_used = times_used + 1
		WHERE id = $1 AND (max_uses IS NULL OR times_used < max_uses)
	`, couponID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
