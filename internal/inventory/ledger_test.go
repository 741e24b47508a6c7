package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_CheckStock(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	l := NewLedger()
	ctx := context.Background()

	t.Run("Enough", func(t *testing.T) {
		mock.ExpectQuery(`SELECT stock >= \$1 FROM products WHERE id = \$2 AND active = TRUE`).
			WithArgs(2, int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(true))

		ok, err := l.CheckStock(ctx, conn, 10, 2)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("NotEnough", func(t *testing.T) {
		mock.ExpectQuery(`SELECT stock >= \$1`).
			WithArgs(5, int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(false))

		ok, err := l.CheckStock(ctx, conn, 10, 5)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InactiveOrMissing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT stock >= \$1`).
			WithArgs(1, int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

		ok, err := l.CheckStock(ctx, conn, 99, 1)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		_, err := l.CheckStock(ctx, conn, 10, 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Decrement(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	t.Run("Success", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec(`UPDATE products SET stock = stock - \$1, updated_at = NOW\(\) WHERE id = \$2 AND stock >= \$1`).
			WithArgs(2, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, l.Decrement(ctx, conn, 7, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Insufficient", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec(`UPDATE products SET stock = stock - \$1`).
			WithArgs(3, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT name, stock FROM products WHERE id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "stock"}).AddRow("Sérum Vitamina C", 1))

		err = l.Decrement(ctx, conn, 7, 3)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		var stockErr *InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, int64(7), stockErr.ProductID)
		assert.Equal(t, 3, stockErr.Requested)
		assert.Equal(t, 1, stockErr.Available)
		assert.Contains(t, stockErr.Error(), "Sérum Vitamina C")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec(`UPDATE products`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT name, stock FROM products`).
			WillReturnRows(sqlmock.NewRows([]string{"name", "stock"}))

		err = l.Decrement(ctx, conn, 404, 1)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec(`UPDATE products`).WillReturnError(errors.New("db error"))

		err = l.Decrement(ctx, conn, 7, 1)
		assert.EqualError(t, err, "db error")
	})

	t.Run("InvalidQuantity", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		assert.ErrorIs(t, l.Decrement(ctx, conn, 7, -1), ErrInvalidQuantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedger_Increment(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	t.Run("Success", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec(`UPDATE products SET stock = stock \+ \$1, updated_at = NOW\(\) WHERE id = \$2`).
			WithArgs(4, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, l.Increment(ctx, conn, 3, 4))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec(`UPDATE products SET stock = stock \+ \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, l.Increment(ctx, conn, 3, 4), ErrProductNotFound)
	})
}
