// Package holdrepo manages repository layer of escrow holds.
package holdrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/dbpkg"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates escrow hold repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns hold RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const holdColumns = `id, account_id, amount, reference, status, expires_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanHold(row scanner) (domain.Hold, error) {
	var h domain.Hold

	err := row.Scan(
		&h.ID,
		&h.AccountID,
		&h.Amount,
		&h.Reference,
		&h.Status,
		&h.ExpiresAt,
		&h.CreatedAt,
		&h.UpdatedAt,
	)

	return h, err
}

func (r *RepoPGS) one(ctx context.Context, query string, args ...any) (domain.Hold, error) {
	l := zerolog.Ctx(ctx)

	h, err := scanHold(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h, domain.ErrHoldNotFound
		}

		l.Error().Err(err).Send()

		return h, dbpkg.Unexpected(err)
	}

	return h, nil
}

const createQuery = `
INSERT INTO
    escrow_holds (id, account_id, amount, reference, expires_at)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING ` + holdColumns

// Create persists an active hold and then returns it.
//
// A second active hold with the same account and reference fails with domain.ErrDuplicateReference.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateHoldParams) (domain.Hold, error) {
	l := zerolog.Ctx(ctx)

	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRowContext(ctx, createQuery, id, arg.AccountID, arg.Amount, arg.Reference, arg.ExpiresAt)

	h, err := scanHold(row)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "escrow_holds_active_reference_key") {
			return h, domain.ErrDuplicateReference
		}

		switch dbpkg.ConstraintOf(err) {
		case "escrow_holds_account_id_fkey":
			return h, domain.ErrAccountNotFound
		case "escrow_holds_amount_check":
			return h, domain.ErrInvalidAmount
		}

		l.Error().Err(err).Msgf("Create(ctx context.Context, %+v)", arg)

		return h, dbpkg.Unexpected(err)
	}

	return h, nil
}

const getQuery = `
SELECT ` + holdColumns + `
FROM escrow_holds
WHERE id = $1
`

// Get returns the hold with the given id.
func (r *RepoPGS) Get(ctx context.Context, id uuid.UUID) (domain.Hold, error) {
	return r.one(ctx, getQuery, id)
}

const lockQuery = `
SELECT ` + holdColumns + `
FROM escrow_holds
WHERE id = $1
FOR UPDATE
`

// Lock returns the hold with the given id and holds its row lock until the transaction ends.
func (r *RepoPGS) Lock(ctx context.Context, id uuid.UUID) (domain.Hold, error) {
	return r.one(ctx, lockQuery, id)
}

const lockActiveByReferenceQuery = `
SELECT ` + holdColumns + `
FROM escrow_holds
WHERE account_id = $1 AND reference = $2 AND status = 'ACTIVE'
FOR UPDATE
`

// LockActiveByReference locks the active hold of the account with the given reference.
func (r *RepoPGS) LockActiveByReference(ctx context.Context, accountID int64, reference string) (domain.Hold, error) {
	return r.one(ctx, lockActiveByReferenceQuery, accountID, reference)
}

const getLatestByReferenceQuery = `
SELECT ` + holdColumns + `
FROM escrow_holds
WHERE account_id = $1 AND reference = $2
ORDER BY created_at DESC
LIMIT 1
`

// GetLatestByReference returns the most recent hold of the account with the given reference
// regardless of its status.
func (r *RepoPGS) GetLatestByReference(ctx context.Context, accountID int64, reference string) (domain.Hold, error) {
	return r.one(ctx, getLatestByReferenceQuery, accountID, reference)
}

const sumActiveQuery = `
SELECT COALESCE(SUM(amount), 0)
FROM escrow_holds
WHERE account_id = $1 AND status = 'ACTIVE' AND expires_at > $2
`

// SumActive returns the amount reserved by the account's active holds that did not expire before now.
func (r *RepoPGS) SumActive(ctx context.Context, accountID int64, now time.Time) (decimal.Decimal, error) {
	l := zerolog.Ctx(ctx)

	var sum decimal.Decimal

	if err := r.db.QueryRowContext(ctx, sumActiveQuery, accountID, now).Scan(&sum); err != nil {
		l.Error().Err(err).Send()
		return sum, dbpkg.Unexpected(err)
	}

	return sum, nil
}

const updateStatusQuery = `
UPDATE escrow_holds
SET status = $1, updated_at = now()
WHERE id = $2
RETURNING ` + holdColumns

// UpdateStatus changes the hold status and returns the changed hold.
func (r *RepoPGS) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.HoldStatus) (domain.Hold, error) {
	return r.one(ctx, updateStatusQuery, status, id)
}

const listDueQuery = `
SELECT ` + holdColumns + `
FROM escrow_holds
WHERE status = 'ACTIVE' AND expires_at <= $1
ORDER BY expires_at
LIMIT $2
`

// ListDue returns up to limit active holds whose ttl elapsed at now.
func (r *RepoPGS) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listDueQuery, now, limit)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, dbpkg.Unexpected(err)
	}
	defer rows.Close()

	items := []domain.Hold{}

	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, dbpkg.Unexpected(err)
		}

		items = append(items, h)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, dbpkg.Unexpected(err)
	}

	return items, nil
}
