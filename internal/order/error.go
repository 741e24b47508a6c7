package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateProduct    = errors.New("duplicate product in order items")
	ErrProductUnavailable  = errors.New("products unavailable")
	ErrStockShortage       = errors.New("insufficient stock")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrOrderNotPayable     = errors.New("order is not payable")
	ErrOrderNotCancellable = errors.New("only pending orders can be cancelled")
	ErrPaidByPaymentOnly   = errors.New("orders become paid only through an approved payment")
)

type UnavailableError struct {
	ProductIDs []int64
}

func (e *UnavailableError) Error() string {
	ids := make([]string, len(e.ProductIDs))
	for i, id := range e.ProductIDs {
		ids[i] = fmt.Sprint(id)
	}
	return "products not found or inactive: " + strings.Join(ids, ", ")
}

func (e *UnavailableError) Is(target error) bool { return target == ErrProductUnavailable }

type Shortage struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type StockShortageError struct {
	Shortages []Shortage
}

func (e *StockShortageError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = fmt.Sprintf("%s: requested %d, available %d", s.Name, s.Requested, s.Available)
	}
	return "insufficient stock for " + strings.Join(parts, "; ")
}

func (e *StockShortageError) Is(target error) bool { return target == ErrStockShortage }

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

type NotPayableError struct {
	Reference string
	Status    Status
}

func (e *NotPayableError) Error() string {
	return fmt.Sprintf("order %s is %s and cannot be paid", e.Reference, e.Status)
}

func (e *NotPayableError) Is(target error) bool { return target == ErrOrderNotPayable }
