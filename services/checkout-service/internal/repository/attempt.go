package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rohianon/multicurrency-checkout/services/checkout-service/internal/types"
)

var ErrAttemptNotFound = types.ErrAttemptNotFound

const attemptColumns = `id::text, reference, session_id, order_id, email, country, currency, method,
	amount, status, message, created_at, updated_at`

type AttemptRepository struct {
	db *pgxpool.Pool
}

func NewAttemptRepository(db *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create records a payment right after the gateway accepted it. A repeated
// reference is ignored.
func (r *AttemptRepository) Create(ctx context.Context, a *types.Attempt) error {
	status := a.Status
	if status == "" {
		status = types.AttemptInitiated
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO checkout_attempts (reference, session_id, order_id, email, country, currency, method, amount, status, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reference) DO NOTHING
	`, a.Reference, a.SessionID, a.OrderID, a.Email, a.Country, a.Currency, a.Method, a.Amount, status, a.Message)
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) UpdateStatus(ctx context.Context, reference string, status types.AttemptStatus, message string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE checkout_attempts
		SET status = $1, message = NULLIF($2, ''), updated_at = NOW()
		WHERE reference = $3
	`, status, message, reference)
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func (r *AttemptRepository) GetByReference(ctx context.Context, reference string) (*types.Attempt, error) {
	row := r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM checkout_attempts WHERE reference = $1`, reference)

	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return a, nil
}

func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID string) ([]types.Attempt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM checkout_attempts
		WHERE session_id = $1
		ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []types.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (*types.Attempt, error) {
	var a types.Attempt
	err := row.Scan(
		&a.ID, &a.Reference, &a.SessionID, &a.OrderID, &a.Email, &a.Country, &a.Currency, &a.Method,
		&a.Amount, &a.Status, &a.Message, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
