package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/takeaway/internal/domain/checkout"
)

const (
	sessionColumns = `id, payment_intent_id, client_secret, amount, currency, draft,
		state, created_at, expires_at, completed_at`

	createSessionSQL = `INSERT INTO checkout_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getSessionByIntentSQL = `SELECT ` + sessionColumns + `
		FROM checkout_sessions WHERE payment_intent_id = $1`

	completeSessionSQL = `UPDATE checkout_sessions SET state = 'completed', completed_at = $2
		WHERE id = $1 AND state = 'open'`

	listExpiredSessionsSQL = `SELECT ` + sessionColumns + `
		FROM checkout_sessions
		WHERE state = 'open' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`

	deleteOpenSessionSQL = `DELETE FROM checkout_sessions WHERE id = $1 AND state = 'open'`
)

var _ checkout.Repository = (*CheckoutRepository)(nil)

// CheckoutRepository implements checkout.Repository backed by PostgreSQL.
type CheckoutRepository struct {
	pool *pgxpool.Pool
}

// NewCheckoutRepository returns a CheckoutRepository that uses the given pool.
func NewCheckoutRepository(pool *pgxpool.Pool) *CheckoutRepository {
	return &CheckoutRepository{pool: pool}
}

// Create stores a new open session. The draft is kept as JSONB.
func (r *CheckoutRepository) Create(ctx context.Context, s *checkout.Session) error {
	draftJSON, err := json.Marshal(s.Draft)
	if err != nil {
		return fmt.Errorf("marshaling checkout draft: %w", err)
	}

	_, err = r.pool.Exec(ctx, createSessionSQL,
		s.ID, s.PaymentIntentID, s.ClientSecret, s.Amount, s.Currency, draftJSON,
		string(s.State), s.CreatedAt, s.ExpiresAt, s.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return checkout.ErrDuplicateID
		}
		return fmt.Errorf("creating checkout session %q: %w", s.ID, err)
	}
	return nil
}

// GetByPaymentIntent returns the session created for a payment intent.
func (r *CheckoutRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*checkout.Session, error) {
	rows, err := r.pool.Query(ctx, getSessionByIntentSQL, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("getting checkout session for %q: %w", paymentIntentID, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNotFound
		}
		return nil, fmt.Errorf("getting checkout session for %q: %w", paymentIntentID, err)
	}
	return &s, nil
}

// MarkCompleted closes an open session. Completing it twice is a no-op.
func (r *CheckoutRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	if _, err := r.pool.Exec(ctx, completeSessionSQL, id, at); err != nil {
		return fmt.Errorf("completing checkout session %q: %w", id, err)
	}
	return nil
}

// ListExpired returns open sessions that expired before the given time,
// oldest first.
func (r *CheckoutRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]checkout.Session, error) {
	rows, err := r.pool.Query(ctx, listExpiredSessionsSQL, before, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expired checkout sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("listing expired checkout sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes an open session. A completed session is left in place.
func (r *CheckoutRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteOpenSessionSQL, id); err != nil {
		return fmt.Errorf("deleting checkout session %q: %w", id, err)
	}
	return nil
}

func scanSession(row pgx.CollectableRow) (checkout.Session, error) {
	var (
		s         checkout.Session
		draftJSON []byte
		state     string
	)
	err := row.Scan(
		&s.ID, &s.PaymentIntentID, &s.ClientSecret, &s.Amount, &s.Currency, &draftJSON,
		&state, &s.CreatedAt, &s.ExpiresAt, &s.CompletedAt,
	)
	if err != nil {
		return s, err
	}
	s.State = checkout.State(state)
	if err := json.Unmarshal(draftJSON, &s.Draft); err != nil {
		return s, fmt.Errorf("unmarshaling draft of session %q: %w", s.ID, err)
	}
	return s, nil
}
