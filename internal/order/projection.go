package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the list view of an order.
type Summary struct {
	Reference string          `json:"reference"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	CreatedAt time.Time       `json:"created_at"`
}

type LineView struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Detail is the single-order view returned to buyers and back office.
type Detail struct {
	Reference     string          `json:"reference"`
	Status        Status          `json:"status"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	CouponCode    string          `json:"coupon_code,omitempty"`
	Shipping      ShippingAddress `json:"shipping"`
	Notes         string          `json:"notes,omitempty"`
	Lines         []LineView      `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

func ToSummary(o *Order) Summary {
	return Summary{
		Reference: o.Reference,
		Status:    o.Status,
		Total:     o.Total,
		ItemCount: o.ItemCount(),
		CreatedAt: o.CreatedAt,
	}
}

func ToDetail(o *Order) Detail {
	lines := make([]LineView, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = LineView{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		}
	}
	return Detail{
		Reference:     o.Reference,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		Total:         o.Total,
		CouponCode:    o.CouponCode,
		Shipping:      o.Shipping,
		Notes:         o.Notes,
		Lines:         lines,
		CreatedAt:     o.CreatedAt,
		PaidAt:        o.PaidAt,
		CancelledAt:   o.CancelledAt,
	}
}
