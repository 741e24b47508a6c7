package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clarte-be/internal/coupon"
	"clarte-be/internal/db"
	"clarte-be/internal/inventory"
	"clarte-be/internal/logger"
	"clarte-be/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const listLimit = 50

type ItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateInput struct {
	// UserID is set from the access token; guests leave it nil and must
	// provide contact fields.
	UserID        *int64          `json:"-"`
	CustomerName  string          `json:"customer_name" validate:"required_without=UserID,max=150"`
	CustomerEmail string          `json:"customer_email" validate:"required_without=UserID,omitempty,email"`
	CustomerPhone string          `json:"customer_phone" validate:"required_without=UserID,max=20"`
	Items         []ItemInput     `json:"items" validate:"required,min=1,dive"`
	Shipping      ShippingAddress `json:"shipping"`
	CouponCode    string          `json:"coupon_code" validate:"max=50"`
	Notes         string          `json:"notes" validate:"max=500"`
}

// CommitResult is the outcome of committing stock for a paid order.
type CommitResult struct {
	Order            *Order
	AlreadyProcessed bool
}

type SweepReport struct {
	Cutoff     time.Time
	Candidates []int64
	Cancelled  []string
	Failed     int
	DryRun     bool
}

type Service interface {
	Create(ctx context.Context, in CreateInput) (*Order, error)
	Get(ctx context.Context, reference string) (*Order, error)
	GetByID(ctx context.Context, q db.Querier, id int64) (*Order, error)
	GetForBuyer(ctx context.Context, reference string, userID *int64, email string) (*Order, error)
	ListForUser(ctx context.Context, userID int64) ([]Summary, error)
	Cancel(ctx context.Context, reference string, userID int64) (*Order, error)
	UpdateStatus(ctx context.Context, reference string, next Status) (*Order, error)
	CommitPayment(ctx context.Context, tx db.Querier, orderID int64) (*CommitResult, error)
	ExpireStale(ctx context.Context, olderThan time.Duration, dryRun bool) (*SweepReport, error)
}

type Options struct {
	Prefix   string
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	db      *sql.DB
	repo    Repository
	catalog inventory.Catalog
	ledger  inventory.Ledger
	coupons coupon.Validator
	prefix  string
	loc     *time.Location
	now     func() time.Time
}

func NewService(
	conn *sql.DB,
	repo Repository,
	catalog inventory.Catalog,
	ledger inventory.Ledger,
	coupons coupon.Validator,
	opts Options,
) Service {
	if opts.Prefix == "" {
		opts.Prefix = "LP"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		db:      conn,
		repo:    repo,
		catalog: catalog,
		ledger:  ledger,
		coupons: coupons,
		prefix:  opts.Prefix,
		loc:     opts.Location,
		now:     opts.Now,
	}
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	log := logger.Layer(ctx, "service", "CreateOrder")

	if err := validation.Struct(in); err != nil {
		log.Info("order input rejected", zap.Error(err))
		return nil, err
	}
	if err := checkDuplicates(in.Items); err != nil {
		return nil, err
	}

	var created *Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ids := make([]int64, len(in.Items))
		for i, it := range in.Items {
			ids[i] = it.ProductID
		}

		products, err := s.catalog.FindActive(ctx, tx, ids)
		if err != nil {
			return err
		}

		var missing []int64
		for _, id := range ids {
			if _, ok := products[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return &UnavailableError{ProductIDs: missing}
		}

		var shortages []Shortage
		for _, it := range in.Items {
			ok, err := s.ledger.CheckStock(ctx, tx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				p := products[it.ProductID]
				shortages = append(shortages, Shortage{
					ProductID: p.ID,
					Name:      p.Name,
					Requested: it.Quantity,
					Available: p.Stock,
				})
			}
		}
		if len(shortages) > 0 {
			return &StockShortageError{Shortages: shortages}
		}

		now := s.now()
		o := &Order{
			UserID:        in.UserID,
			CustomerName:  strings.TrimSpace(in.CustomerName),
			CustomerEmail: strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
			CustomerPhone: strings.TrimSpace(in.CustomerPhone),
			Status:        StatusPending,
			Shipping:      in.Shipping,
			Notes:         in.Notes,
		}
		for _, it := range in.Items {
			p := products[it.ProductID]
			o.Lines = append(o.Lines, NewLine(p.ID, p.Name, p.SKU, it.Quantity, p.EffectivePrice()))
		}
		o.ApplyTotals(decimal.Zero)

		var applied *coupon.Validation
		if code := coupon.NormalizeCode(in.CouponCode); code != "" {
			applied, err = s.coupons.Validate(ctx, tx, code, o.Subtotal, now)
			if err != nil {
				return err
			}
			o.CouponCode = applied.Coupon.Code
			o.ApplyTotals(applied.Discount)
		}

		o.Reference, err = s.repo.NextReference(ctx, tx, s.prefix, now.In(s.loc))
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, o); err != nil {
			return err
		}

		if applied != nil {
			if _, err := s.coupons.Redeem(ctx, tx, applied, o.ID); err != nil {
				return err
			}
		}

		created = o
		return nil
	})
	if err != nil {
		log.Warn("order creation failed", zap.Error(err))
		return nil, err
	}

	log.Info("order created",
		zap.Int64("order_id", created.ID),
		zap.String("reference", created.Reference),
		zap.String("total", created.Total.StringFixed(2)),
	)
	return created, nil
}

func checkDuplicates(items []ItemInput) error {
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ProductID]; dup {
			return fmt.Errorf("%w: product %d", ErrDuplicateProduct, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}

func (s *service) Get(ctx context.Context, reference string) (*Order, error) {
	return s.repo.GetByReference(ctx, s.db, reference)
}

func (s *service) GetByID(ctx context.Context, q db.Querier, id int64) (*Order, error) {
	if q == nil {
		q = s.db
	}
	return s.repo.GetByID(ctx, q, id)
}

// GetForBuyer hides orders the caller does not own behind ErrOrderNotFound.
func (s *service) GetForBuyer(ctx context.Context, reference string, userID *int64, email string) (*Order, error) {
	o, err := s.repo.GetByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if !ownedBy(o, userID, email) {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func ownedBy(o *Order, userID *int64, email string) bool {
	if userID != nil {
		return o.UserID != nil && *o.UserID == *userID
	}
	return o.IsGuest() && email != "" && strings.EqualFold(o.CustomerEmail, strings.TrimSpace(email))
}

func (s *service) ListForUser(ctx context.Context, userID int64) ([]Summary, error) {
	orders, err := s.repo.ListByUser(ctx, s.db, userID, listLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToSummary(o))
	}
	return out, nil
}

func (s *service) Cancel(ctx context.Context, reference string, userID int64) (*Order, error) {
	log := logger.Layer(ctx, "service", "CancelOrder", zap.String("reference", reference))

	var cancelled *Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		o, err := s.repo.LockByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		if o.UserID == nil || *o.UserID != userID {
			return ErrOrderNotFound
		}
		if o.Status != StatusPending {
			return ErrOrderNotCancellable
		}
		if err := s.transition(ctx, tx, o, StatusCancelled); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		log.Info("cancel rejected", zap.Error(err))
		return nil, err
	}
	return cancelled, nil
}

// UpdateStatus is the back-office transition. Cancelling a paid order puts
// its committed stock back. Paid is reserved for CommitPayment, which takes
// the stock that such a cancellation returns.
func (s *service) UpdateStatus(ctx context.Context, reference string, next Status) (*Order, error) {
	log := logger.Layer(ctx, "service", "UpdateOrderStatus",
		zap.String("reference", reference),
		zap.String("target", string(next)),
	)

	if next == StatusPaid {
		log.Warn("status update rejected", zap.Error(ErrPaidByPaymentOnly))
		return nil, ErrPaidByPaymentOnly
	}

	var updated *Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		o, err := s.repo.LockByReference(ctx, tx, reference)
		if err != nil {
			return err
		}

		stockCommitted := o.Status == StatusPaid || o.Status == StatusShipped
		if err := s.transition(ctx, tx, o, next); err != nil {
			return err
		}

		if next == StatusCancelled && stockCommitted {
			for _, l := range o.Lines {
				if err := s.ledger.Increment(ctx, tx, l.ProductID, l.Quantity); err != nil {
					return err
				}
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		log.Warn("status update failed", zap.Error(err))
		return nil, err
	}
	return updated, nil
}

// CommitPayment runs inside the caller's transaction. A failure part way
// through leaves earlier decrements for the caller to roll back.
func (s *service) CommitPayment(ctx context.Context, tx db.Querier, orderID int64) (*CommitResult, error) {
	log := logger.Layer(ctx, "service", "CommitPayment", zap.Int64("order_id", orderID))

	o, err := s.repo.LockByID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case StatusPaid:
		log.Info("order already processed", zap.String("reference", o.Reference))
		return &CommitResult{Order: o, AlreadyProcessed: true}, nil
	case StatusPending:
	default:
		return nil, &NotPayableError{Reference: o.Reference, Status: o.Status}
	}

	for _, l := range o.Lines {
		if err := s.ledger.Decrement(ctx, tx, l.ProductID, l.Quantity); err != nil {
			log.Warn("stock commit aborted",
				zap.String("reference", o.Reference),
				zap.Int64("product_id", l.ProductID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	if err := s.coupons.Confirm(ctx, tx, o.ID); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, tx, o, StatusPaid); err != nil {
		return nil, err
	}
	return &CommitResult{Order: o}, nil
}

// ExpireStale cancels orders that stayed pending longer than olderThan.
// Pending orders never had stock taken, so nothing is restored. Orders with an
// approved payment are skipped.
func (s *service) ExpireStale(ctx context.Context, olderThan time.Duration, dryRun bool) (*SweepReport, error) {
	log := logger.Layer(ctx, "service", "ExpireStale", zap.Duration("older_than", olderThan))

	report := &SweepReport{Cutoff: s.now().Add(-olderThan), DryRun: dryRun}

	ids, err := s.repo.ListStalePending(ctx, s.db, report.Cutoff)
	if err != nil {
		return nil, err
	}
	report.Candidates = ids
	if dryRun || len(ids) == 0 {
		log.Info("sweep finished", zap.Int("candidates", len(ids)), zap.Bool("dry_run", dryRun))
		return report, nil
	}

	for _, id := range ids {
		var ref string
		err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			o, err := s.repo.LockByID(ctx, tx, id)
			if err != nil {
				return err
			}
			// paid or cancelled while we were listing
			if o.Status != StatusPending || !o.CreatedAt.Before(report.Cutoff) {
				return nil
			}
			// captured money awaiting manual stock review
			approved, err := s.repo.HasApprovedPayment(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			if approved {
				log.Warn("stale order has an approved payment, left pending", zap.String("reference", o.Reference))
				return nil
			}
			if err := s.transition(ctx, tx, o, StatusCancelled); err != nil {
				return err
			}
			ref = o.Reference
			return nil
		})
		if err != nil {
			report.Failed++
			log.Error("failed to expire order", zap.Int64("order_id", id), zap.Error(err))
			continue
		}
		if ref != "" {
			report.Cancelled = append(report.Cancelled, ref)
		}
	}

	log.Info("sweep finished",
		zap.Int("candidates", len(ids)),
		zap.Int("cancelled", len(report.Cancelled)),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *service) transition(ctx context.Context, q db.Querier, o *Order, next Status) error {
	prev := o.Status
	if err := o.TransitionTo(next, s.now()); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, q, o); err != nil {
		return err
	}

	logger.FromCtx(ctx).Info(fmt.Sprintf("order %s: %s -> %s", o.Reference, prev, next),
		zap.String("reference", o.Reference),
		zap.String("previous_status", string(prev)),
		zap.String("new_status", string(next)),
	)
	return nil
}

// IsBusinessError reports errors that come from order rules rather than
// infrastructure.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrDuplicateProduct) ||
		errors.Is(err, ErrProductUnavailable) ||
		errors.Is(err, ErrStockShortage) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOrderNotPayable) ||
		errors.Is(err, ErrOrderNotCancellable) ||
		errors.Is(err, ErrPaidByPaymentOnly) ||
		errors.Is(err, inventory.ErrInsufficientStock) ||
		errors.Is(err, coupon.ErrInvalidCoupon) ||
		errors.Is(err, coupon.ErrCouponNotFound)
}
