package fulfillment

import (
	"context"

	"clarte-be/internal/db"
	"clarte-be/internal/logger"
	"clarte-be/internal/notification"
	"clarte-be/internal/order"
	"clarte-be/internal/sale"

	"go.uber.org/zap"
)

const (
	spStockCommit  = "stock_commit"
	spSaleSnapshot = "sale_snapshot"
)

// Pipeline runs the work that follows an approved payment. Stock commit
// and sale snapshot share the caller's transaction, each behind its own
// savepoint; the notification goes out only after that transaction commits.
type Pipeline struct {
	orders   order.Service
	sales    sale.Recorder
	notifier notification.Notifier
}

func NewPipeline(orders order.Service, sales sale.Recorder, notifier notification.Notifier) *Pipeline {
	return &Pipeline{orders: orders, sales: sales, notifier: notifier}
}

// Process returns the notification step to run after commit, or nil when
// the order had already been processed. A stock commit failure is returned
// with every decrement of that attempt undone.
func (p *Pipeline) Process(ctx context.Context, tx db.Querier, orderID int64) (func(context.Context), error) {
	log := logger.Layer(ctx, "fulfillment", "Process", zap.Int64("order_id", orderID))

	var res *order.CommitResult
	err := db.WithSavepoint(ctx, tx, spStockCommit, func() error {
		var err error
		res, err = p.orders.CommitPayment(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	o := res.Order
	err = db.WithSavepoint(ctx, tx, spSaleSnapshot, func() error {
		_, err := p.sales.RecordFromOrder(ctx, tx, o)
		return err
	})
	if err != nil {
		log.Error("sale snapshot failed, order stays paid",
			zap.String("reference", o.Reference),
			zap.Bool("critical", true),
			zap.Error(err),
		)
	}

	if res.AlreadyProcessed {
		return nil, nil
	}

	msg := notification.ConfirmationFor(o)
	return func(ctx context.Context) {
		if err := p.notifier.PaymentConfirmed(ctx, msg); err != nil {
			logger.FromCtx(ctx).Error("payment confirmation not sent",
				zap.String("reference", msg.Reference),
				zap.Error(err),
			)
		}
	}, nil
}
