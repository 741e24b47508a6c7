package payment

import (
	"context"
	"encoding/json"

	"clarte-be/internal/db"
	"clarte-be/internal/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Open(ctx context.Context, q db.Querier, orderID int64, amount decimal.Decimal) (*Payment, OpenKind, error) {
	args := m.Called(ctx, q, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Get(1).(OpenKind), args.Error(2)
	}
	return args.Get(0).(*Payment), args.Get(1).(OpenKind), args.Error(2)
}

func (m *MockRepository) Delete(ctx context.Context, q db.Querier, id int64) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

func (m *MockRepository) Reset(ctx context.Context, q db.Querier, id int64, detail string) error {
	args := m.Called(ctx, q, id, detail)
	return args.Error(0)
}

func (m *MockRepository) SetPreference(ctx context.Context, q db.Querier, id int64, preferenceID string, raw json.RawMessage) error {
	args := m.Called(ctx, q, id, preferenceID, raw)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, q db.Querier, id int64) (*Payment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) LockByID(ctx context.Context, q db.Querier, id int64) (*Payment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, q db.Querier, p *Payment) error {
	args := m.Called(ctx, q, p)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Preference), args.Error(1)
}

func (m *MockGateway) CreatePayment(ctx context.Context, req ChargeRequest, idempotencyKey string) (*ProviderPayment, error) {
	args := m.Called(ctx, req, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProviderPayment), args.Error(1)
}

func (m *MockGateway) GetPayment(ctx context.Context, providerPaymentID string) (*ProviderPayment, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProviderPayment), args.Error(1)
}

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) GetForBuyer(ctx context.Context, reference string, userID *int64, email string) (*order.Order, error) {
	args := m.Called(ctx, reference, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Process(ctx context.Context, tx db.Querier, orderID int64) (func(context.Context), error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context)), args.Error(1)
}
