package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clarte-be/internal/db"
	"clarte-be/internal/logger"

	"go.uber.org/zap"
)

// Ledger owns every mutation of products.stock. Callers pass the Querier
// so the change joins their transaction.
type Ledger interface {
	CheckStock(ctx context.Context, q db.Querier, productID int64, qty int) (bool, error)
	Decrement(ctx context.Context, q db.Querier, productID int64, qty int) error
	Increment(ctx context.Context, q db.Querier, productID int64, qty int) error
}

type ledger struct{}

func NewLedger() Ledger {
	return &ledger{}
}

func (l *ledger) CheckStock(ctx context.Context, q db.Querier, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}

	var ok bool
	err := q.QueryRowContext(ctx, `
		SELECT stock >= $1
		FROM products
		WHERE id = $2 AND active = TRUE
	`, qty, productID).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Decrement subtracts qty in one conditional statement. The affected row
// count decides the outcome; the follow-up read only feeds the error.
func (l *ledger) Decrement(ctx context.Context, q db.Querier, productID int64, qty int) error {
	log := logger.Layer(ctx, "inventory", "Decrement",
		zap.Int64("product_id", productID),
		zap.Int("qty", qty),
	)

	if qty <= 0 {
		return ErrInvalidQuantity
	}

	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
	`, qty, productID)
	if err != nil {
		log.Error("stock decrement failed", zap.Error(err))
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		log.Debug("stock decremented")
		return nil
	}

	var (
		name      string
		available int
	)
	err = q.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, productID).
		Scan(&name, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}
	if err != nil {
		return err
	}

	log.Warn("insufficient stock", zap.Int("available", available))
	return &InsufficientStockError{
		ProductID: productID,
		Name:      name,
		Requested: qty,
		Available: available,
	}
}

func (l *ledger) Increment(ctx context.Context, q db.Querier, productID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	res, err := q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2
	`, qty, productID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}

	logger.Layer(ctx, "inventory", "Increment").Info("stock restored",
		zap.Int64("product_id", productID),
		zap.Int("qty", qty),
	)
	return nil
}
