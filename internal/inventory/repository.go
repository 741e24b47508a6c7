package inventory

import (
	"context"

	"clarte-be/internal/db"

	"github.com/lib/pq"
)

// Catalog is the read side of products used when pricing new orders.
type Catalog interface {
	FindActive(ctx context.Context, q db.Querier, ids []int64) (map[int64]*Product, error)
}

type catalog struct{}

func NewCatalog() Catalog {
	return &catalog{}
}

func (c *catalog) FindActive(ctx context.Context, q db.Querier, ids []int64) (map[int64]*Product, error) {
	out := make(map[int64]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, sku, name, price, offer_price, stock, active, updated_at
		FROM products
		WHERE id = ANY($1) AND active = TRUE
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.SKU, &p.Name, &p.Price, &p.OfferPrice,
			&p.Stock, &p.Active, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}
