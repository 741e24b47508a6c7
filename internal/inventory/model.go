package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog row as seen by order and payment code. Stock is
// mutated only through Ledger.
type Product struct {
	ID         int64
	SKU        string
	Name       string
	Price      decimal.Decimal
	OfferPrice decimal.NullDecimal
	Stock      int
	Active     bool
	UpdatedAt  time.Time
}

// EffectivePrice is the offer price when one is set below the list price,
// else the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.OfferPrice.Valid && p.OfferPrice.Decimal.LessThan(p.Price) {
		return p.OfferPrice.Decimal
	}
	return p.Price
}
