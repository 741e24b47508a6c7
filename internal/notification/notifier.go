package notification

import (
	"context"
	"errors"

	"clarte-be/internal/kafka"
	"clarte-be/internal/logger"
	"clarte-be/internal/order"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("notification queue full")

type Item struct {
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

// Confirmation is the payload handed to the mail collaborator.
type Confirmation struct {
	OrderID       int64  `json:"order_id"`
	Reference     string `json:"reference"`
	Subject       string `json:"subject"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Items         []Item `json:"items"`
	Subtotal      string `json:"subtotal"`
	Discount      string `json:"discount"`
	Total         string `json:"total"`
}

func ConfirmationFor(o *order.Order) Confirmation {
	items := make([]Item, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = Item{
			Name:      l.ProductName,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal.StringFixed(2),
		}
	}
	return Confirmation{
		OrderID:       o.ID,
		Reference:     o.Reference,
		Subject:       "Order confirmation " + o.Reference,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Items:         items,
		Subtotal:      o.Subtotal.StringFixed(2),
		Discount:      o.Discount.StringFixed(2),
		Total:         o.Total.StringFixed(2),
	}
}

type Notifier interface {
	PaymentConfirmed(ctx context.Context, c Confirmation) error
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) bool
}

type kafkaNotifier struct {
	pub      Publisher
	producer string
}

func NewKafkaNotifier(pub Publisher, producer string) Notifier {
	return &kafkaNotifier{pub: pub, producer: producer}
}

func (n *kafkaNotifier) PaymentConfirmed(ctx context.Context, c Confirmation) error {
	env, err := kafka.NewEnvelope(
		kafka.EventPaymentConfirmed,
		n.producer,
		c.Reference,
		logger.RequestIDFrom(ctx),
		c,
	)
	if err != nil {
		return err
	}

	if !n.pub.Publish([]byte(c.Reference), kafka.MustMarshal(env)) {
		return ErrQueueFull
	}

	logger.Layer(ctx, "notification", "PaymentConfirmed").Info("payment confirmation queued",
		zap.String("reference", c.Reference),
		zap.String("event_id", env.EventID),
	)
	return nil
}

type logNotifier struct{}

// NewLogNotifier only logs; used when no broker is configured.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) PaymentConfirmed(ctx context.Context, c Confirmation) error {
	logger.Layer(ctx, "notification", "PaymentConfirmed").Info("payment confirmation",
		zap.String("reference", c.Reference),
		zap.String("email", c.CustomerEmail),
		zap.String("total", c.Total),
	)
	return nil
}
