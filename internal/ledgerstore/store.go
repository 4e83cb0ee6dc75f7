// Package ledgerstore provides transactional access to the ledger tables.
package ledgerstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/accountrepo"
	"github.com/go-petr/carmarket-wallet/internal/auctionrepo"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/entryrepo"
	"github.com/go-petr/carmarket-wallet/internal/holdrepo"
	"github.com/go-petr/carmarket-wallet/pkg/dbpkg"
	"github.com/go-petr/carmarket-wallet/pkg/errorspkg"
	"github.com/go-petr/carmarket-wallet/pkg/metricspkg"
	"github.com/rs/zerolog"
)

// Queries groups the repositories bound to one connection or transaction.
type Queries struct {
	Accounts *accountrepo.RepoPGS
	Entries  *entryrepo.RepoPGS
	Holds    *holdrepo.RepoPGS
	Auctions *auctionrepo.RepoPGS
}

// NewQueries binds all repositories to db.
func NewQueries(db dbpkg.SQLInterface) *Queries {
	return &Queries{
		Accounts: accountrepo.NewRepoPGS(db),
		Entries:  entryrepo.NewRepoPGS(db),
		Holds:    holdrepo.NewRepoPGS(db),
		Auctions: auctionrepo.NewRepoPGS(db),
	}
}

// Options tunes transaction execution.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	LockTimeout  time.Duration
}

// Store provides all functions to execute db queries and transactions.
//
// The embedded Queries run outside of any transaction and are meant for reads.
type Store struct {
	*Queries
	db   *sql.DB
	opts Options
}

// New returns Store over db.
func New(db *sql.DB, opts Options) *Store {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Store{
		Queries: NewQueries(db),
		db:      db,
		opts:    opts,
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExecTx executes fn within a read committed transaction.
//
// Lock conflicts, deadlocks and lock timeouts abort the attempt and fn runs again in a fresh
// transaction, up to MaxRetries times, so fn must not have effects outside the transaction.
// When retries are exhausted ExecTx returns domain.ErrTransient.
func (s *Store) ExecTx(ctx context.Context, fn func(q *Queries) error) error {
	l := zerolog.Ctx(ctx)

	for attempt := 0; ; attempt++ {
		err := s.execTx(ctx, fn)
		if err == nil || !dbpkg.IsTransient(err) {
			return err
		}

		if attempt >= s.opts.MaxRetries {
			l.Warn().Err(err).Int("attempts", attempt+1).Msg("transaction retries exhausted")
			return domain.ErrTransient
		}

		metricspkg.TxRetried()
		l.Debug().Err(err).Int("attempt", attempt+1).Msg("retrying transaction")

		select {
		case <-ctx.Done():
			return domain.ErrTransient
		case <-time.After(s.opts.RetryBackoff * time.Duration(attempt+1)):
		}
	}
}

func (s *Store) execTx(ctx context.Context, fn func(q *Queries) error) error {
	l := zerolog.Ctx(ctx)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		l.Error().Err(err).Send()
		return dbpkg.Unexpected(err)
	}

	if s.opts.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())

		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			l.Error().Err(err).Send()
			rollback(ctx, tx)

			return errorspkg.ErrInternal
		}
	}

	if err := fn(NewQueries(tx)); err != nil {
		rollback(ctx, tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return dbpkg.Unexpected(err)
	}

	return nil
}

func rollback(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("rollback failed")
	}
}
