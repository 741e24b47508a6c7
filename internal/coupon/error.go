package coupon

import (
	"errors"
	"fmt"
)

var (
	ErrCouponNotFound = errors.New("coupon does not exist")
	ErrInvalidCoupon  = errors.New("invalid coupon")
)

type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("coupon %s: %s", e.Code, e.Reason)
}

func (e *InvalidCouponError) Is(target error) bool {
	return target == ErrInvalidCoupon
}
