package fulfillment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"clarte-be/internal/db"
	"clarte-be/internal/inventory"
	"clarte-be/internal/notification"
	"clarte-be/internal/order"
	"clarte-be/internal/sale"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrders embeds order.Service so only CommitPayment needs a body.
type MockOrders struct {
	order.Service
	mock.Mock
}

func (m *MockOrders) CommitPayment(ctx context.Context, tx db.Querier, orderID int64) (*order.CommitResult, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.CommitResult), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordFromOrder(ctx context.Context, q db.Querier, o *order.Order) (*sale.Sale, error) {
	args := m.Called(ctx, q, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PaymentConfirmed(ctx context.Context, c notification.Confirmation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func paidOrder() *order.Order {
	now := time.Now()
	o := &order.Order{
		ID:            1,
		Reference:     "LP-20250301-0001",
		Status:        order.StatusPaid,
		CustomerEmail: "ana@example.com",
		PaidAt:        &now,
		Lines:         []order.Line{order.NewLine(10, "Crema", "SKU-1", 2, decimal.NewFromInt(250))},
	}
	o.ApplyTotals(decimal.Zero)
	return o
}

type fixture struct {
	conn     *sql.DB
	sql      sqlmock.Sqlmock
	orders   *MockOrders
	sales    *MockRecorder
	notifier *MockNotifier
	p        *Pipeline
}

func newFixture(t *testing.T) *fixture {
	conn, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := &fixture{conn: conn, sql: sqlMock, orders: new(MockOrders), sales: new(MockRecorder), notifier: new(MockNotifier)}
	f.p = NewPipeline(f.orders, f.sales, f.notifier)
	return f
}

func (f *fixture) expectSavepoint(name string, release bool) {
	f.sql.ExpectExec("SAVEPOINT " + name).WillReturnResult(sqlmock.NewResult(0, 0))
	if release {
		f.sql.ExpectExec("RELEASE SAVEPOINT " + name).WillReturnResult(sqlmock.NewResult(0, 0))
		return
	}
	f.sql.ExpectExec("ROLLBACK TO SAVEPOINT " + name).WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestPipeline_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		o := paidOrder()

		f.expectSavepoint("stock_commit", true)
		f.expectSavepoint("sale_snapshot", true)
		f.orders.On("CommitPayment", ctx, f.conn, int64(1)).Return(&order.CommitResult{Order: o}, nil)
		f.sales.On("RecordFromOrder", ctx, f.conn, o).Return(&sale.Sale{ID: 1}, nil)
		f.notifier.On("PaymentConfirmed", ctx, mock.MatchedBy(func(c notification.Confirmation) bool {
			return c.Reference == o.Reference && c.CustomerEmail == "ana@example.com"
		})).Return(nil).Once()

		after, err := f.p.Process(ctx, f.conn, 1)
		require.NoError(t, err)
		require.NotNil(t, after)

		f.notifier.AssertNotCalled(t, "PaymentConfirmed", mock.Anything, mock.Anything)
		after(ctx)
		f.notifier.AssertExpectations(t)
		assert.NoError(t, f.sql.ExpectationsWereMet())
	})

	t.Run("StockFailureRollsBackSavepoint", func(t *testing.T) {
		f := newFixture(t)

		f.expectSavepoint("stock_commit", false)
		f.orders.On("CommitPayment", ctx, f.conn, int64(1)).
			Return(nil, &inventory.InsufficientStockError{ProductID: 10, Requested: 2, Available: 1})

		after, err := f.p.Process(ctx, f.conn, 1)
		assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
		assert.Nil(t, after)
		f.sales.AssertNotCalled(t, "RecordFromOrder", mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, f.sql.ExpectationsWereMet())
	})

	t.Run("AlreadyProcessedEnsuresSaleWithoutNotifying", func(t *testing.T) {
		f := newFixture(t)
		o := paidOrder()

		f.expectSavepoint("stock_commit", true)
		f.expectSavepoint("sale_snapshot", true)
		f.orders.On("CommitPayment", ctx, f.conn, int64(1)).
			Return(&order.CommitResult{Order: o, AlreadyProcessed: true}, nil)
		f.sales.On("RecordFromOrder", ctx, f.conn, o).Return(&sale.Sale{ID: 1}, nil)

		after, err := f.p.Process(ctx, f.conn, 1)
		require.NoError(t, err)
		assert.Nil(t, after)
	})

	t.Run("SaleFailureIsIsolated", func(t *testing.T) {
		f := newFixture(t)
		o := paidOrder()

		f.expectSavepoint("stock_commit", true)
		f.expectSavepoint("sale_snapshot", false)
		f.orders.On("CommitPayment", ctx, f.conn, int64(1)).Return(&order.CommitResult{Order: o}, nil)
		f.sales.On("RecordFromOrder", ctx, f.conn, o).Return(nil, errors.New("sales table locked"))
		f.notifier.On("PaymentConfirmed", ctx, mock.Anything).Return(nil)

		after, err := f.p.Process(ctx, f.conn, 1)
		require.NoError(t, err)
		require.NotNil(t, after)
		after(ctx)
		assert.NoError(t, f.sql.ExpectationsWereMet())
	})

	t.Run("NotificationFailureIsSwallowed", func(t *testing.T) {
		f := newFixture(t)
		o := paidOrder()

		f.expectSavepoint("stock_commit", true)
		f.expectSavepoint("sale_snapshot", true)
		f.orders.On("CommitPayment", ctx, f.conn, int64(1)).Return(&order.CommitResult{Order: o}, nil)
		f.sales.On("RecordFromOrder", ctx, f.conn, o).Return(&sale.Sale{ID: 1}, nil)
		f.notifier.On("PaymentConfirmed", ctx, mock.Anything).Return(notification.ErrQueueFull)

		after, err := f.p.Process(ctx, f.conn, 1)
		require.NoError(t, err)
		assert.NotPanics(t, func() { after(ctx) })
	})
}
