package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no order matches the given identifier.
var ErrNotFound = errors.New("order not found")

// Store defines the persistence operations the payment flow needs from orders.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (Order, error)
	GetByExternalID(ctx context.Context, externalID string) (Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetEmailSent(ctx context.Context, id uuid.UUID, sent bool) error
	InsertOrderEvent(ctx context.Context, id uuid.UUID, status Status, note string) error
}

// PGStore implements Store on top of Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, external_id, status, currency, total_amount,
	billing_first_name, billing_last_name, billing_country, email, email_sent,
	created_at, updated_at`

// GetByID loads a single order by its internal identifier.
func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetByExternalID loads a single order by its human-visible order number.
func (s PGStore) GetByExternalID(ctx context.Context, externalID string) (Order, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id = $1`, externalID)
	return scanOrder(row)
}

// UpdateStatus transitions the order to the given status.
func (s PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmailSent flips the notification-sent flag.
func (s PGStore) SetEmailSent(ctx context.Context, id uuid.UUID, sent bool) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE orders SET email_sent = $2, updated_at = now() WHERE id = $1`, id, sent)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertOrderEvent appends an audit entry to the order's history.
func (s PGStore) InsertOrderEvent(ctx context.Context, id uuid.UUID, status Status, note string) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO order_events (order_id, status, note) VALUES ($1, $2, $3)`,
		id, status, note,
	)
	return err
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.Status, &o.Currency, &o.Total,
		&o.BillingFirstName, &o.BillingLastName, &o.BillingCountry, &o.Email, &o.EmailSent,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}
