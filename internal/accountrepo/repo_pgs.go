// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/dbpkg"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const accountColumns = `id, owner, balance, currency, halted, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.Balance,
		&a.Currency,
		&a.Halted,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

const addBalanceQuery = `
UPDATE accounts
SET balance = balance + $1, updated_at = now()
WHERE id = $2
RETURNING ` + accountColumns

// AddBalance atomically changes the account's balance by amount and returns the changed account.
//
// The caller must hold the account row lock.
func (r *RepoPGS) AddBalance(ctx context.Context, id int64, amount decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, addBalanceQuery, amount, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		if dbpkg.ConstraintOf(err) == "accounts_balance_check" {
			l.Info().Int64("account_id", id).Str("amount", amount.String()).Msg("balance check rejected update")
			return a, domain.ErrInsufficientFunds
		}

		if dbpkg.IsOutOfRange(err) {
			l.Info().Int64("account_id", id).Str("amount", amount.String()).Msg("balance out of range")
			return a, domain.ErrInvalidAmount
		}

		l.Error().Err(err).Send()

		return a, dbpkg.Unexpected(err)
	}

	return a, nil
}

const createQuery = `
INSERT INTO
    accounts (owner, currency)
VALUES
    ($1, $2)
RETURNING ` + accountColumns

// Create creates an empty account and then returns it.
func (r *RepoPGS) Create(ctx context.Context, owner, currency string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, createQuery, owner, currency))
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "accounts_owner_currency_key") {
			return a, domain.ErrCurrencyAlreadyExists
		}

		l.Error().Err(err).Send()

		return a, dbpkg.Unexpected(err)
	}

	return a, nil
}

const getQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	return r.get(ctx, getQuery, id)
}

const lockQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
FOR UPDATE
`

// Lock returns the account with the given id and holds its row lock until the transaction ends.
func (r *RepoPGS) Lock(ctx context.Context, id int64) (domain.Account, error) {
	return r.get(ctx, lockQuery, id)
}

func (r *RepoPGS) get(ctx context.Context, query string, id int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, dbpkg.Unexpected(err)
	}

	return a, nil
}

const listQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner = $1
ORDER BY id
`

// List returns all accounts of the given owner.
func (r *RepoPGS) List(ctx context.Context, owner string) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, owner)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, dbpkg.Unexpected(err)
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, dbpkg.Unexpected(err)
		}

		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, dbpkg.Unexpected(err)
	}

	return items, nil
}

const getBalanceQuery = `
SELECT
    a.id, a.currency, a.balance, COALESCE(SUM(h.amount), 0)
FROM accounts a
LEFT JOIN escrow_holds h
    ON h.account_id = a.id AND h.status = 'ACTIVE' AND h.expires_at > $2
WHERE a.id = $1
GROUP BY a.id
`

// GetBalance returns the balance view of the account.
//
// Holds that expired before now do not count as frozen even if they were not swept yet.
func (r *RepoPGS) GetBalance(ctx context.Context, id int64, now time.Time) (domain.Balance, error) {
	l := zerolog.Ctx(ctx)

	var b domain.Balance

	err := r.db.QueryRowContext(ctx, getBalanceQuery, id, now).Scan(
		&b.AccountID,
		&b.Currency,
		&b.Total,
		&b.Frozen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return b, dbpkg.Unexpected(err)
	}

	b.Available = b.Total.Sub(b.Frozen)

	return b, nil
}

const setHaltedQuery = `
UPDATE accounts
SET halted = $1, updated_at = now()
WHERE id = $2
RETURNING ` + accountColumns

// SetHalted marks the account as halted or resumes it.
func (r *RepoPGS) SetHalted(ctx context.Context, id int64, halted bool) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, setHaltedQuery, halted, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, dbpkg.Unexpected(err)
	}

	return a, nil
}
