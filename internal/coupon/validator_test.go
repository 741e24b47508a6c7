package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"clarte-be/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByCode(ctx context.Context, q db.Querier, code string) (*Coupon, error) {
	args := m.Called(ctx, q, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Coupon), args.Error(1)
}

func (m *MockRepository) CreateRedemption(ctx context.Context, q db.Querier, r *Redemption) error {
	args := m.Called(ctx, q, r)
	return args.Error(0)
}

func (m *MockRepository) ConfirmRedemption(ctx context.Context, q db.Querier, orderID int64) (*Redemption, error) {
	args := m.Called(ctx, q, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Redemption), args.Error(1)
}

func (m *MockRepository) IncrementUsage(ctx context.Context, q db.Querier, couponID int64) (bool, error) {
	args := m.Called(ctx, q, couponID)
	return args.Bool(0), args.Error(1)
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)

		c := &Coupon{ID: 1, Code: "VERANO10", Kind: KindPercentage, Value: dec("10"), Active: true}
		repo.On("GetByCode", ctx, conn, "VERANO10").Return(c, nil)

		res, err := v.Validate(ctx, conn, " verano10", dec("1000.00"), now)
		require.NoError(t, err)
		assert.Equal(t, c, res.Coupon)
		assert.True(t, res.Discount.Equal(dec("100")))
		repo.AssertNotCalled(t, "IncrementUsage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)
		repo.On("GetByCode", ctx, conn, "NOPE").Return(nil, ErrCouponNotFound)

		_, err := v.Validate(ctx, conn, "nope", dec("10"), now)
		assert.ErrorIs(t, err, ErrCouponNotFound)
	})

	t.Run("BlankCode", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)

		_, err := v.Validate(ctx, conn, "  ", dec("10"), now)
		assert.ErrorIs(t, err, ErrCouponNotFound)
		repo.AssertExpectations(t)
	})

	t.Run("Invalid", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)
		repo.On("GetByCode", ctx, conn, "OFF").
			Return(&Coupon{Code: "OFF", Active: false}, nil)

		_, err := v.Validate(ctx, conn, "off", dec("10"), now)
		assert.ErrorIs(t, err, ErrInvalidCoupon)
	})
}

func TestValidator_Redeem(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	v := NewValidator(repo)

	val := &Validation{Coupon: &Coupon{ID: 3, Code: "FIJO150"}, Discount: dec("100")}
	repo.On("CreateRedemption", ctx, nil, mock.MatchedBy(func(r *Redemption) bool {
		return r.CouponID == 3 && r.OrderID == 42 && r.Code == "FIJO150" && r.Amount.Equal(decimal.NewFromInt(100))
	})).Return(nil)

	red, err := v.Redeem(ctx, nil, val, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), red.OrderID)
	repo.AssertExpectations(t)
}

func TestValidator_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("CountsOnce", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)
		repo.On("ConfirmRedemption", ctx, nil, int64(9)).Return(&Redemption{ID: 1, CouponID: 3, Code: "X"}, nil).Once()
		repo.On("IncrementUsage", ctx, nil, int64(3)).Return(true, nil).Once()

		assert.NoError(t, v.Confirm(ctx, nil, 9))
		repo.AssertExpectations(t)
	})

	t.Run("NoRedemption", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)
		repo.On("ConfirmRedemption", ctx, nil, int64(9)).Return(nil, nil)

		assert.NoError(t, v.Confirm(ctx, nil, 9))
		repo.AssertNotCalled(t, "IncrementUsage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CapAlreadyReached", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)
		repo.On("ConfirmRedemption", ctx, nil, int64(9)).Return(&Redemption{CouponID: 3}, nil)
		repo.On("IncrementUsage", ctx, nil, int64(3)).Return(false, nil)

		assert.NoError(t, v.Confirm(ctx, nil, 9))
	})

	t.Run("DBError", func(t *testing.T) {
		repo := new(MockRepository)
		v := NewValidator(repo)
		repo.On("ConfirmRedemption", ctx, nil, int64(9)).Return(nil, errors.New("db error"))

		assert.Error(t, v.Confirm(ctx, nil, 9))
	})
}
