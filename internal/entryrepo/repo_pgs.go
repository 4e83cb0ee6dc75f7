// Package entryrepo manages repository layer of entries.
package entryrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/dbpkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates entry repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const entryColumns = `id, account_id, counterparty_account_id, amount, currency, kind, status, reference, description, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.Entry, error) {
	var (
		e            domain.Entry
		counterparty sql.NullInt64
	)

	err := row.Scan(
		&e.ID,
		&e.AccountID,
		&counterparty,
		&e.Amount,
		&e.Currency,
		&e.Kind,
		&e.Status,
		&e.Reference,
		&e.Description,
		&e.CreatedAt,
	)

	if counterparty.Valid {
		e.CounterpartyAccountID = &counterparty.Int64
	}

	return e, err
}

const createQuery = `
INSERT INTO
    entries (account_id, counterparty_account_id, amount, currency, kind, status, reference, description)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + entryColumns

// Create appends the entry and then returns it.
//
// A second entry with the same account and reference fails with domain.ErrDuplicateReference.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateEntryParams) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	status := arg.Status
	if status == "" {
		status = domain.EntryCompleted
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.AccountID,
		arg.CounterpartyAccountID,
		arg.Amount,
		arg.Currency,
		arg.Kind,
		status,
		arg.Reference,
		arg.Description,
	)

	e, err := scanEntry(row)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "entries_account_id_reference_key") {
			l.Info().Int64("account_id", arg.AccountID).Str("reference", arg.Reference).Msg("duplicate entry reference")
			return e, domain.ErrDuplicateReference
		}

		if dbpkg.IsOutOfRange(err) {
			l.Info().Int64("account_id", arg.AccountID).Str("amount", arg.Amount.String()).Msg("entry amount out of range")
			return e, domain.ErrInvalidAmount
		}

		switch dbpkg.ConstraintOf(err) {
		case "entries_account_id_fkey", "entries_counterparty_account_id_fkey":
			return e, domain.ErrAccountNotFound
		case "entries_amount_check":
			return e, domain.ErrInvalidAmount
		}

		l.Error().Err(err).Msgf("Create(ctx context.Context, %+v)", arg)

		return e, dbpkg.Unexpected(err)
	}

	return e, nil
}

const getByReferenceQuery = `
SELECT ` + entryColumns + `
FROM entries
WHERE account_id = $1 AND reference = $2
`

// GetByReference returns the entry recorded for the account under the reference.
func (r *RepoPGS) GetByReference(ctx context.Context, accountID int64, reference string) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	e, err := scanEntry(r.db.QueryRowContext(ctx, getByReferenceQuery, accountID, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, domain.ErrEntryNotFound
		}

		l.Error().Err(err).Send()

		return e, dbpkg.Unexpected(err)
	}

	return e, nil
}

const listQuery = `
SELECT ` + entryColumns + `
FROM entries
WHERE account_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`

// List returns the specified number of entries for the given accountID, newest first.
func (r *RepoPGS) List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, accountID, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, dbpkg.Unexpected(err)
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, dbpkg.Unexpected(err)
		}

		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, dbpkg.Unexpected(err)
	}

	return items, nil
}

const sumCompletedQuery = `
SELECT COALESCE(SUM(amount), 0)
FROM entries
WHERE account_id = $1 AND status = 'COMPLETED'
`

// SumCompleted returns the sum of the account's completed entries.
func (r *RepoPGS) SumCompleted(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	l := zerolog.Ctx(ctx)

	var sum decimal.Decimal

	if err := r.db.QueryRowContext(ctx, sumCompletedQuery, accountID).Scan(&sum); err != nil {
		l.Error().Err(err).Send()
		return sum, dbpkg.Unexpected(err)
	}

	return sum, nil
}
