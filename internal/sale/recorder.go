package sale

import (
	"context"
	"errors"
	"time"

	"clarte-be/internal/db"
	"clarte-be/internal/logger"
	"clarte-be/internal/order"

	"go.uber.org/zap"
)

type Recorder interface {
	RecordFromOrder(ctx context.Context, q db.Querier, o *order.Order) (*Sale, error)
}

type recorder struct {
	repo Repository
	now  func() time.Time
}

func NewRecorder(repo Repository) Recorder {
	return &recorder{repo: repo, now: time.Now}
}

// RecordFromOrder returns the order's sale, creating it on first call.
func (r *recorder) RecordFromOrder(ctx context.Context, q db.Querier, o *order.Order) (*Sale, error) {
	log := logger.Layer(ctx, "sale", "RecordFromOrder",
		zap.Int64("order_id", o.ID),
		zap.String("reference", o.Reference),
	)

	existing, err := r.repo.GetByOrderID(ctx, q, o.ID)
	if err == nil {
		log.Debug("sale already recorded", zap.Int64("sale_id", existing.ID))
		return existing, nil
	}
	if !errors.Is(err, ErrSaleNotFound) {
		return nil, err
	}

	s, err := FromOrder(o, r.now())
	if err != nil {
		return nil, err
	}

	inserted, err := r.repo.Insert(ctx, q, s)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// lost the race to a concurrent recorder
		return r.repo.GetByOrderID(ctx, q, o.ID)
	}

	log.Info("sale recorded",
		zap.Int64("sale_id", s.ID),
		zap.String("total", s.Total.StringFixed(2)),
	)
	return s, nil
}
