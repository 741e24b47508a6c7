package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"clarte-be/internal/db"
	"clarte-be/internal/logger"
	"clarte-be/internal/order"
	"clarte-be/internal/validation"

	"go.uber.org/zap"
)

// Orders is the slice of the order service payments need.
type Orders interface {
	GetForBuyer(ctx context.Context, reference string, userID *int64, email string) (*order.Order, error)
}

// PostPayment runs the approved-payment work inside the reconciliation
// transaction. The returned func, when non-nil, must run after commit.
type PostPayment interface {
	Process(ctx context.Context, tx db.Querier, orderID int64) (func(context.Context), error)
}

type PreferenceInput struct {
	OrderReference string `json:"order_reference" validate:"required"`
	// Email identifies guest buyers. Ignored when UserID is set.
	Email  string `json:"email" validate:"omitempty,email"`
	UserID *int64 `json:"-"`
}

type Identification struct {
	Type   string `json:"type" validate:"max=20"`
	Number string `json:"number" validate:"max=30"`
}

type CardPayer struct {
	Email          string         `json:"email" validate:"required,email"`
	Identification Identification `json:"identification"`
}

type CardInput struct {
	OrderReference  string      `json:"order_reference" validate:"required"`
	Token           string      `json:"token" validate:"required"`
	PaymentMethodID string      `json:"payment_method_id" validate:"required"`
	IssuerID        json.Number `json:"issuer_id"`
	Installments    int         `json:"installments" validate:"required,min=1,max=48"`
	Payer           CardPayer   `json:"payer"`
	UserID          *int64      `json:"-"`
}

type Service interface {
	CreatePreference(ctx context.Context, in PreferenceInput) (*PreferenceResult, error)
	ChargeCard(ctx context.Context, in CardInput) (*ChargeResult, error)
	ReconcileWebhook(ctx context.Context, providerPaymentID string) (*ReconcileResult, error)
}

type service struct {
	db       *sql.DB
	repo     Repository
	gateway  Gateway
	orders   Orders
	pipeline PostPayment
}

func NewService(conn *sql.DB, repo Repository, gateway Gateway, orders Orders, pipeline PostPayment) Service {
	return &service{
		db:       conn,
		repo:     repo,
		gateway:  gateway,
		orders:   orders,
		pipeline: pipeline,
	}
}

// ----------------- Preference (redirect) flow -----------------

func (s *service) CreatePreference(ctx context.Context, in PreferenceInput) (*PreferenceResult, error) {
	log := logger.Layer(ctx, "service", "CreatePreference", zap.String("reference", in.OrderReference))

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	o, err := s.payableOrder(ctx, in.OrderReference, in.UserID, in.Email)
	if err != nil {
		log.Info("preference rejected", zap.Error(err))
		return nil, err
	}

	p, kind, err := s.open(ctx, o)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.Int64("payment_id", p.ID), zap.Int("attempt", p.Attempts))

	pref, err := s.gateway.CreatePreference(ctx, PreferenceRequest{
		Items:             preferenceItems(o),
		Payer:             preferencePayer(o),
		ExternalReference: p.ExternalReference(),
	})
	if err != nil {
		s.discard(ctx, p, kind)
		return nil, err
	}

	if err := s.repo.SetPreference(ctx, s.db, p.ID, pref.ID, pref.Raw); err != nil {
		log.Error("failed to store preference id", zap.String("preference_id", pref.ID), zap.Error(err))
		return nil, err
	}

	log.Info("preference created", zap.String("preference_id", pref.ID))
	return &PreferenceResult{
		PreferenceID: pref.ID,
		InitPoint:    pref.InitPoint,
		PaymentID:    p.ID,
	}, nil
}

// preferenceItems lists the order lines. A discounted order is sent as a
// single line for the total, since Mercado Pago sums the items itself.
func preferenceItems(o *order.Order) []Item {
	if o.Discount.IsPositive() {
		return []Item{{Title: "Pedido #" + o.Reference, Quantity: 1, UnitPrice: o.Total}}
	}
	items := make([]Item, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, Item{Title: l.ProductName, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return items
}

func preferencePayer(o *order.Order) Payer {
	name, surname, _ := strings.Cut(strings.TrimSpace(o.CustomerName), " ")
	if name == "" {
		name = "Cliente"
	}
	return Payer{Name: name, Surname: surname, Email: o.CustomerEmail}
}

// ----------------- Card (synchronous) flow -----------------

func (s *service) ChargeCard(ctx context.Context, in CardInput) (*ChargeResult, error) {
	log := logger.Layer(ctx, "service", "ChargeCard", zap.String("reference", in.OrderReference))

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	o, err := s.payableOrder(ctx, in.OrderReference, in.UserID, in.Payer.Email)
	if err != nil {
		log.Info("charge rejected", zap.Error(err))
		return nil, err
	}

	p, kind, err := s.open(ctx, o)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.Int64("payment_id", p.ID), zap.Int("attempt", p.Attempts))

	pp, err := s.gateway.CreatePayment(ctx, ChargeRequest{
		Amount:          o.Total,
		Token:           in.Token,
		Installments:    in.Installments,
		PaymentMethodID: in.PaymentMethodID,
		IssuerID:        in.IssuerID.String(),
		Payer: Payer{
			Email:    in.Payer.Email,
			IDType:   in.Payer.Identification.Type,
			IDNumber: in.Payer.Identification.Number,
		},
		ExternalReference: p.ExternalReference(),
		Description:       "Pedido #" + o.Reference,
	}, p.IdempotencyKey())
	if err != nil {
		s.discard(ctx, p, kind)
		return nil, err
	}

	res, err := s.reconcile(ctx, p.ID, pp)
	if err != nil {
		// the provider already answered; the webhook will retry reconciliation
		log.Error("charge reconciliation failed", zap.String("provider_payment_id", pp.ID), zap.Error(err))
		return nil, err
	}

	return &ChargeResult{
		PaymentID:      p.ID,
		ProviderStatus: pp.Status,
		StatusDetail:   pp.StatusDetail,
		State:          res.Current,
	}, nil
}

// ----------------- Webhook reconciliation -----------------

func (s *service) ReconcileWebhook(ctx context.Context, providerPaymentID string) (*ReconcileResult, error) {
	log := logger.Layer(ctx, "service", "ReconcileWebhook", zap.String("provider_payment_id", providerPaymentID))

	pp, err := s.gateway.GetPayment(ctx, providerPaymentID)
	if err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(pp.ExternalReference)
	if ref == "" {
		log.Warn("notification without external reference")
		return nil, ErrMissingReference
	}
	paymentID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		log.Warn("notification with foreign external reference", zap.String("external_reference", ref))
		return nil, fmt.Errorf("%w: %q", ErrMissingReference, ref)
	}

	return s.reconcile(ctx, paymentID, pp)
}

// reconcile applies a provider payment to the local row under its lock.
// Both the card flow and the webhook go through here so they serialize on
// the same row.
func (s *service) reconcile(ctx context.Context, paymentID int64, pp *ProviderPayment) (*ReconcileResult, error) {
	log := logger.Layer(ctx, "service", "reconcile",
		zap.Int64("payment_id", paymentID),
		zap.String("provider_payment_id", pp.ID),
	)

	next := MapProviderStatus(pp.Status)
	res := &ReconcileResult{PaymentID: paymentID, Current: next}
	var after func(context.Context)

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := s.repo.LockByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		res.Previous = p.Status

		if p.ProviderPaymentID != "" && pp.ID != "" && p.ProviderPaymentID != pp.ID {
			res.Action, res.Current = ActionIgnored, p.Status
			res.Reason = "notification for a superseded provider payment"
			log.Info("stale notification ignored", zap.String("stored_provider_payment_id", p.ProviderPaymentID))
			return nil
		}

		p.apply(pp)
		if p.Status == next {
			res.Action, res.Reason = ActionIgnored, "status unchanged"
			log.Info("idempotent notification", zap.String("status", string(next)))
			return s.repo.Save(ctx, tx, p)
		}

		prev := p.Status
		p.Status = next
		if err := s.repo.Save(ctx, tx, p); err != nil {
			return err
		}
		res.Action = ActionUpdated
		log.Info(fmt.Sprintf("payment %d: %s -> %s", p.ID, prev, next),
			zap.String("previous_status", string(prev)),
			zap.String("new_status", string(next)),
		)

		if next != StatusApproved {
			return nil
		}

		after, err = s.pipeline.Process(ctx, tx, p.OrderID)
		if err != nil {
			// money already moved; keep the approved state and alert
			if order.IsBusinessError(err) {
				log.Warn("post-payment business failure", zap.Int64("order_id", p.OrderID), zap.Error(err))
			} else {
				log.Error("post-payment failure", zap.Int64("order_id", p.OrderID), zap.Bool("critical", true), zap.Error(err))
			}
			res.Reason = err.Error()
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) {
			log.Error("reconciliation failed", zap.Bool("critical", true), zap.Error(err))
		}
		return nil, err
	}

	if after != nil {
		after(ctx)
	}
	return res, nil
}

// ----------------- helpers -----------------

func (s *service) payableOrder(ctx context.Context, reference string, userID *int64, email string) (*order.Order, error) {
	o, err := s.orders.GetForBuyer(ctx, reference, userID, email)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPending {
		return nil, &order.NotPayableError{Reference: o.Reference, Status: o.Status}
	}
	return o, nil
}

// open records the local payment before any provider call.
func (s *service) open(ctx context.Context, o *order.Order) (*Payment, OpenKind, error) {
	p, kind, err := s.repo.Open(ctx, s.db, o.ID, o.Total)
	if errors.Is(err, ErrPaymentSettled) {
		return nil, kind, &order.NotPayableError{Reference: o.Reference, Status: o.Status}
	}
	return p, kind, err
}

// discard is the compensating step after a failed provider call. A fresh
// row is removed; a renewed one is closed again so its history survives.
// A resumed row may belong to a request still in flight and is left alone.
func (s *service) discard(ctx context.Context, p *Payment, kind OpenKind) {
	log := logger.Layer(ctx, "service", "discard", zap.Int64("payment_id", p.ID), zap.Int("open_kind", int(kind)))

	var err error
	switch kind {
	case OpenedNew:
		err = s.repo.Delete(ctx, s.db, p.ID)
	case OpenedRenewed:
		err = s.repo.Reset(ctx, s.db, p.ID, "gateway_error")
	default:
		log.Info("resumed payment kept pending after gateway failure")
		return
	}
	if err != nil {
		log.Error("compensation failed", zap.Error(err))
		return
	}
	log.Info("local payment discarded after gateway failure")
}
