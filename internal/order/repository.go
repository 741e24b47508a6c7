package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clarte-be/internal/db"
)

type Repository interface {
	NextReference(ctx context.Context, q db.Querier, prefix string, day time.Time) (string, error)
	Insert(ctx context.Context, q db.Querier, o *Order) error
	GetByID(ctx context.Context, q db.Querier, id int64) (*Order, error)
	GetByReference(ctx context.Context, q db.Querier, reference string) (*Order, error)
	LockByID(ctx context.Context, q db.Querier, id int64) (*Order, error)
	LockByReference(ctx context.Context, q db.Querier, reference string) (*Order, error)
	UpdateStatus(ctx context.Context, q db.Querier, o *Order) error
	ListByUser(ctx context.Context, q db.Querier, userID int64, limit int) ([]*Order, error)
	ListStalePending(ctx context.Context, q db.Querier, before time.Time) ([]int64, error)
	HasApprovedPayment(ctx context.Context, q db.Querier, orderID int64) (bool, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const orderColumns = `
	id, reference, user_id, customer_name, customer_email, customer_phone,
	status, subtotal, discount, total, coupon_code,
	ship_recipient, ship_street, ship_city, ship_state, ship_postal_code,
	notes, created_at, updated_at, paid_at, cancelled_at`

// approvedPayment matches orders whose money was already captured, even when
// the stock commit failed and left them pending.
const approvedPayment = `EXISTS (
	SELECT 1 FROM payments p WHERE p.order_id = orders.id AND p.status = 'approved'
)`

// NextReference bumps the per-day counter row inside the caller's
// transaction, so two creations on the same day never share a number.
func (r *repository) NextReference(ctx context.Context, q db.Querier, prefix string, day time.Time) (string, error) {
	var seq int
	err := q.QueryRowContext(ctx, `
		INSERT INTO order_sequences (day, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value
	`, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next order sequence: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), seq), nil
}

func (r *repository) Insert(ctx context.Context, q db.Querier, o *Order) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (
			reference, user_id, customer_name, customer_email, customer_phone,
			status, subtotal, discount, total, coupon_code,
			ship_recipient, ship_street, ship_city, ship_state, ship_postal_code, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`,
		o.Reference, o.UserID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.Status, o.Subtotal, o.Discount, o.Total, nullString(o.CouponCode),
		o.Shipping.Recipient, o.Shipping.Street, o.Shipping.City, o.Shipping.State, o.Shipping.PostalCode,
		o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		err := q.QueryRowContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, sku, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, o.ID, l.ProductID, l.ProductName, l.SKU, l.Quantity, l.UnitPrice, l.Subtotal).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	return r.fetch(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *repository) GetByReference(ctx context.Context, q db.Querier, reference string) (*Order, error) {
	return r.fetch(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE reference = $1`, reference)
}

func (r *repository) LockByID(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	return r.fetch(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) LockByReference(ctx context.Context, q db.Querier, reference string) (*Order, error) {
	return r.fetch(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE reference = $1 FOR UPDATE`, reference)
}

func (r *repository) fetch(ctx context.Context, q db.Querier, query string, arg any) (*Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	lines, err := r.lines(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

func (r *repository) lines(ctx context.Context, q db.Querier, orderID int64) ([]Line, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, sku, quantity, unit_price, subtotal
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.SKU,
			&l.Quantity, &l.UnitPrice, &l.Subtotal,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, q db.Querier, o *Order) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = $2, paid_at = $3, cancelled_at = $4
		WHERE id = $5
	`, o.Status, o.UpdatedAt, o.PaidAt, o.CancelledAt, o.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, q db.Querier, userID int64, limit int) ([]*Order, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range out {
		if o.Lines, err = r.lines(ctx, q, o.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repository) ListStalePending(ctx context.Context, q db.Querier, before time.Time) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id
		FROM orders
		WHERE status = $1 AND created_at < $2 AND NOT `+approvedPayment+`
		ORDER BY created_at
	`, StatusPending, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) HasApprovedPayment(ctx context.Context, q db.Querier, orderID int64) (bool, error) {
	var found bool
	err := q.QueryRowContext(ctx, `SELECT `+approvedPayment+` FROM orders WHERE id = $1`, orderID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	return found, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o         Order
		userID    sql.NullInt64
		coupon    sql.NullString
		paidAt    sql.NullTime
		cancelled sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.Reference, &userID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.Status, &o.Subtotal, &o.Discount, &o.Total, &coupon,
		&o.Shipping.Recipient, &o.Shipping.Street, &o.Shipping.City, &o.Shipping.State, &o.Shipping.PostalCode,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt, &paidAt, &cancelled,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		o.UserID = &userID.Int64
	}
	o.CouponCode = coupon.String
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if cancelled.Valid {
		o.CancelledAt = &cancelled.Time
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
