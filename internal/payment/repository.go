package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"clarte-be/internal/db"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// Open creates the order's payment row. A rejected or cancelled row is
	// renewed with the next attempt number; a pending row without a provider
	// payment is resumed as is. Other rows fail with ErrPaymentSettled or
	// ErrPaymentInProgress.
	Open(ctx context.Context, q db.Querier, orderID int64, amount decimal.Decimal) (*Payment, OpenKind, error)
	Delete(ctx context.Context, q db.Querier, id int64) error
	Reset(ctx context.Context, q db.Querier, id int64, detail string) error
	SetPreference(ctx context.Context, q db.Querier, id int64, preferenceID string, raw json.RawMessage) error
	GetByID(ctx context.Context, q db.Querier, id int64) (*Payment, error)
	LockByID(ctx context.Context, q db.Querier, id int64) (*Payment, error)
	Save(ctx context.Context, q db.Querier, p *Payment) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const paymentColumns = `
	id, order_id, preference_id, provider_payment_id, status, status_detail,
	amount, method, attempts, raw_response, created_at, updated_at`

// OpenKind tells how Open obtained the payment row.
type OpenKind int

const (
	// OpenedNew is a freshly inserted row.
	OpenedNew OpenKind = iota
	// OpenedRenewed is a rejected or cancelled row reset for a new attempt.
	OpenedRenewed
	// OpenedResumed is a pending row returned unchanged, so a retried
	// request keeps the same idempotency key.
	OpenedResumed
)

func (r *repository) Open(ctx context.Context, q db.Querier, orderID int64, amount decimal.Decimal) (*Payment, OpenKind, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, amount, status, attempts)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING `+paymentColumns,
		orderID, amount, StatusPending,
	))
	if err == nil {
		return p, OpenedNew, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, OpenedNew, fmt.Errorf("open payment: %w", err)
	}

	p, err = scanPayment(q.QueryRowContext(ctx, `
		UPDATE payments
		SET amount = $2,
			status = $3,
			status_detail = '',
			method = '',
			preference_id = NULL,
			provider_payment_id = NULL,
			raw_response = NULL,
			attempts = attempts + 1,
			updated_at = NOW()
		WHERE order_id = $1 AND status IN ('rejected', 'cancelled')
		RETURNING `+paymentColumns,
		orderID, amount, StatusPending,
	))
	if err == nil {
		return p, OpenedRenewed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, OpenedNew, fmt.Errorf("renew payment: %w", err)
	}

	p, err = scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		// removed by a concurrent compensation; the caller may retry
		return nil, OpenedNew, ErrPaymentInProgress
	}
	if err != nil {
		return nil, OpenedNew, fmt.Errorf("load payment: %w", err)
	}
	switch {
	case p.Status != StatusPending:
		return nil, OpenedNew, ErrPaymentSettled
	case p.ProviderPaymentID != "":
		return nil, OpenedNew, ErrPaymentInProgress
	}
	return p, OpenedResumed, nil
}

func (r *repository) Delete(ctx context.Context, q db.Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *repository) Reset(ctx context.Context, q db.Querier, id int64, detail string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, status_detail = $2, preference_id = NULL, updated_at = NOW()
		WHERE id = $3
	`, StatusCancelled, detail, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *repository) SetPreference(ctx context.Context, q db.Querier, id int64, preferenceID string, raw json.RawMessage) error {
	res, err := q.ExecContext(ctx, `
		UPDATE payments
		SET preference_id = $1, raw_response = $2, updated_at = NOW()
		WHERE id = $3
	`, preferenceID, rawJSON(raw), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *repository) GetByID(ctx context.Context, q db.Querier, id int64) (*Payment, error) {
	return r.fetch(ctx, q, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *repository) LockByID(ctx context.Context, q db.Querier, id int64) (*Payment, error) {
	return r.fetch(ctx, q, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) fetch(ctx context.Context, q db.Querier, query string, id int64) (*Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// Save writes the provider-facing fields of p in a single statement.
func (r *repository) Save(ctx context.Context, q db.Querier, p *Payment) error {
	err := q.QueryRowContext(ctx, `
		UPDATE payments
		SET provider_payment_id = $1, status = $2, status_detail = $3,
			method = $4, raw_response = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`,
		nullString(p.ProviderPaymentID), p.Status, p.StatusDetail,
		p.Method, rawJSON(p.RawResponse), p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPaymentNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var (
		p          Payment
		preference sql.NullString
		provider   sql.NullString
		raw        []byte
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &preference, &provider, &p.Status, &p.StatusDetail,
		&p.Amount, &p.Method, &p.Attempts, &raw, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PreferenceID = preference.String
	p.ProviderPaymentID = provider.String
	if len(raw) > 0 {
		p.RawResponse = json.RawMessage(raw)
	}
	return &p, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rawJSON keeps empty payloads as SQL NULL instead of invalid jsonb.
func rawJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
