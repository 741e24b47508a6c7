package order

import (
	"context"
	"time"

	"clarte-be/internal/coupon"
	"clarte-be/internal/db"
	"clarte-be/internal/inventory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) NextReference(ctx context.Context, q db.Querier, prefix string, day time.Time) (string, error) {
	args := m.Called(ctx, q, prefix, day)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) Insert(ctx context.Context, q db.Querier, o *Order) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetByReference(ctx context.Context, q db.Querier, reference string) (*Order, error) {
	args := m.Called(ctx, q, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) LockByID(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) LockByReference(ctx context.Context, q db.Querier, reference string) (*Order, error) {
	args := m.Called(ctx, q, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, q db.Querier, o *Order) error {
	args := m.Called(ctx, q, o)
	return args.Error(0)
}

func (m *MockRepository) ListByUser(ctx context.Context, q db.Querier, userID int64, limit int) ([]*Order, error) {
	args := m.Called(ctx, q, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Order), args.Error(1)
}

func (m *MockRepository) ListStalePending(ctx context.Context, q db.Querier, before time.Time) ([]int64, error) {
	args := m.Called(ctx, q, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRepository) HasApprovedPayment(ctx context.Context, q db.Querier, orderID int64) (bool, error) {
	args := m.Called(ctx, q, orderID)
	return args.Bool(0), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FindActive(ctx context.Context, q db.Querier, ids []int64) (map[int64]*inventory.Product, error) {
	args := m.Called(ctx, q, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]*inventory.Product), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CheckStock(ctx context.Context, q db.Querier, productID int64, qty int) (bool, error) {
	args := m.Called(ctx, q, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) Decrement(ctx context.Context, q db.Querier, productID int64, qty int) error {
	args := m.Called(ctx, q, productID, qty)
	return args.Error(0)
}

func (m *MockLedger) Increment(ctx context.Context, q db.Querier, productID int64, qty int) error {
	args := m.Called(ctx, q, productID, qty)
	return args.Error(0)
}

type MockCoupons struct {
	mock.Mock
}

func (m *MockCoupons) Validate(ctx context.Context, q db.Querier, code string, subtotal decimal.Decimal, now time.Time) (*coupon.Validation, error) {
	args := m.Called(ctx, q, code, subtotal, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Validation), args.Error(1)
}

func (m *MockCoupons) Redeem(ctx context.Context, q db.Querier, v *coupon.Validation, orderID int64) (*coupon.Redemption, error) {
	args := m.Called(ctx, q, v, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Redemption), args.Error(1)
}

func (m *MockCoupons) Confirm(ctx context.Context, q db.Querier, orderID int64) error {
	args := m.Called(ctx, q, orderID)
	return args.Error(0)
}
