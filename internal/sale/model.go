package sale

import (
	"encoding/json"
	"time"

	"clarte-be/internal/order"

	"github.com/shopspring/decimal"
)

// Sale is the immutable record written once an order is paid.
type Sale struct {
	ID             int64
	OrderID        int64
	OrderReference string
	UserID         *int64
	CustomerName   string
	CustomerEmail  string
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	Lines          []Line
	Snapshot       json.RawMessage
	SoldAt         time.Time
}

// Line keeps the product fields by value so it survives product deletion;
// ProductID becomes nil when the product row is gone.
type Line struct {
	ID          int64
	SaleID      int64
	ProductID   *int64
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

type snapshotItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

// FromOrder copies the order's totals and lines as they are right now.
func FromOrder(o *order.Order, soldAt time.Time) (*Sale, error) {
	s := &Sale{
		OrderID:        o.ID,
		OrderReference: o.Reference,
		UserID:         o.UserID,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		Subtotal:       o.Subtotal,
		Discount:       o.Discount,
		Total:          o.Total,
		SoldAt:         soldAt,
	}

	items := make([]snapshotItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		pid := l.ProductID
		s.Lines = append(s.Lines, Line{
			ProductID:   &pid,
			ProductName: l.ProductName,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal,
		})
		items = append(items, snapshotItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Subtotal:    l.Subtotal.StringFixed(2),
		})
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	s.Snapshot = raw
	return s, nil
}
