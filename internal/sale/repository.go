package sale

import (
	"context"
	"database/sql"
	"errors"

	"clarte-be/internal/db"
)

var ErrSaleNotFound = errors.New("sale not found")

type Repository interface {
	GetByOrderID(ctx context.Context, q db.Querier, orderID int64) (*Sale, error)
	// Insert returns false when a sale for the order already exists.
	Insert(ctx context.Context, q db.Querier, s *Sale) (bool, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) GetByOrderID(ctx context.Context, q db.Querier, orderID int64) (*Sale, error) {
	var (
		s      Sale
		userID sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, order_id, order_reference, user_id, customer_name, customer_email,
		       subtotal, discount, total, items_snapshot, sold_at
		FROM sales
		WHERE order_id = $1
	`, orderID).Scan(
		&s.ID, &s.OrderID, &s.OrderReference, &userID, &s.CustomerName, &s.CustomerEmail,
		&s.Subtotal, &s.Discount, &s.Total, &s.Snapshot, &s.SoldAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		s.UserID = &userID.Int64
	}
	return &s, nil
}

func (r *repository) Insert(ctx context.Context, q db.Querier, s *Sale) (bool, error) {
	err := q.QueryRowContext(ctx, `
		INSERT INTO sales (
			order_id, order_reference, user_id, customer_name, customer_email,
			subtotal, discount, total, items_snapshot, sold_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id
	`,
		s.OrderID, s.OrderReference, s.UserID, s.CustomerName, s.CustomerEmail,
		s.Subtotal, s.Discount, s.Total, []byte(s.Snapshot), s.SoldAt,
	).Scan(&s.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for i := range s.Lines {
		l := &s.Lines[i]
		l.SaleID = s.ID
		err := q.QueryRowContext(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, product_name, sku, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, s.ID, l.ProductID, l.ProductName, l.SKU, l.Quantity, l.UnitPrice, l.Subtotal).Scan(&l.ID)
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
