package httpx

import (
	"context"
	"time"

	"clarte-be/internal/db"
	"clarte-be/internal/order"
	"clarte-be/internal/payment"

	"github.com/stretchr/testify/mock"
)

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) Create(ctx context.Context, in order.CreateInput) (*order.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) Get(ctx context.Context, reference string) (*order.Order, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetByID(ctx context.Context, q db.Querier, id int64) (*order.Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetForBuyer(ctx context.Context, reference string, userID *int64, email string) (*order.Order, error) {
	args := m.Called(ctx, reference, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) ListForUser(ctx context.Context, userID int64) ([]order.Summary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Summary), args.Error(1)
}

func (m *MockOrders) Cancel(ctx context.Context, reference string, userID int64) (*order.Order, error) {
	args := m.Called(ctx, reference, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) UpdateStatus(ctx context.Context, reference string, next order.Status) (*order.Order, error) {
	args := m.Called(ctx, reference, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) CommitPayment(ctx context.Context, tx db.Querier, orderID int64) (*order.CommitResult, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.CommitResult), args.Error(1)
}

func (m *MockOrders) ExpireStale(ctx context.Context, olderThan time.Duration, dryRun bool) (*order.SweepReport, error) {
	args := m.Called(ctx, olderThan, dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.SweepReport), args.Error(1)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) CreatePreference(ctx context.Context, in payment.PreferenceInput) (*payment.PreferenceResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PreferenceResult), args.Error(1)
}

func (m *MockPayments) ChargeCard(ctx context.Context, in payment.CardInput) (*payment.ChargeResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeResult), args.Error(1)
}

func (m *MockPayments) ReconcileWebhook(ctx context.Context, providerPaymentID string) (*payment.ReconcileResult, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ReconcileResult), args.Error(1)
}
