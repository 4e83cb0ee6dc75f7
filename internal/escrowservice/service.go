// Package escrowservice manages business logic layer of escrow holds.
//
// A hold reserves part of an account balance without moving it: no entry is recorded and
// the balance does not change, only the available balance reported by the ledger shrinks.
package escrowservice

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/ledgerservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerstore"
	"github.com/go-petr/carmarket-wallet/pkg/metricspkg"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service facilitates escrow service layer logic.
type Service struct {
	ledger     *ledgerservice.Service
	defaultTTL time.Duration
	maxTTL     time.Duration
}

// New returns escrow service struct to manage escrow business logic.
func New(ledger *ledgerservice.Service, defaultTTL, maxTTL time.Duration) *Service {
	return &Service{
		ledger:     ledger,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
	}
}

func (s *Service) ttl(ttl time.Duration) (time.Duration, error) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	if ttl <= 0 || (s.maxTTL > 0 && ttl > s.maxTTL) {
		return 0, domain.ErrInvalidTTL
	}

	return ttl, nil
}

// Hold reserves the amount on the account for ttl.
//
// Holding again with the same reference while the hold is active returns it as a replay.
func (s *Service) Hold(ctx context.Context, p domain.HoldParams) (domain.HoldResult, error) {
	started := time.Now()

	res, err := s.hold(ctx, p)
	metricspkg.ObserveOperation("hold", ledgerservice.Outcome(err, res.Replayed), started)

	return res, err
}

func (s *Service) hold(ctx context.Context, p domain.HoldParams) (domain.HoldResult, error) {
	var res domain.HoldResult

	if p.AccountID <= 0 {
		return res, domain.ErrAccountNotFound
	}

	if err := domain.ValidReference(p.Reference); err != nil {
		return res, err
	}

	ttl, err := s.ttl(p.TTL)
	if err != nil {
		return res, err
	}

	account, err := s.ledger.Store().Accounts.Get(ctx, p.AccountID)
	if err != nil {
		return res, err
	}

	amount, err := domain.ParseAmount(p.Amount, account.Currency)
	if err != nil {
		return res, err
	}

	err = s.ledger.RunTx(ctx, func(q *ledgerstore.Queries) error {
		accounts, err := s.ledger.LockAccounts(ctx, q, p.AccountID)
		if err != nil {
			return err
		}

		res, err = s.HoldTx(ctx, q, accounts[p.AccountID], amount, p.Reference, ttl, time.Now())

		return err
	})
	if err != nil {
		return domain.HoldResult{}, err
	}

	return res, nil
}

// HoldTx reserves amount on the locked account a inside the caller's transaction.
func (s *Service) HoldTx(ctx context.Context, q *ledgerstore.Queries, a domain.Account, amount decimal.Decimal, reference string, ttl time.Duration, now time.Time) (domain.HoldResult, error) {
	l := zerolog.Ctx(ctx)

	existing, err := q.Holds.LockActiveByReference(ctx, a.ID, reference)

	switch {
	case errors.Is(err, domain.ErrHoldNotFound):
	case err != nil:
		return domain.HoldResult{}, err
	case existing.IsActiveAt(now):
		if !existing.Amount.Equal(amount) {
			return domain.HoldResult{}, domain.ErrReferenceConflict
		}

		return domain.HoldResult{Hold: existing, Replayed: true}, nil
	default:
		// Past its ttl but not swept yet.
		if _, err := s.expireTx(ctx, q, existing); err != nil {
			return domain.HoldResult{}, err
		}
	}

	available, err := s.ledger.Available(ctx, q, a, now)
	if err != nil {
		return domain.HoldResult{}, err
	}

	if available.LessThan(amount) {
		l.Info().
			Int64("account_id", a.ID).
			Str("available", available.String()).
			Str("amount", amount.String()).
			Msg("insufficient funds for hold")

		return domain.HoldResult{}, domain.ErrInsufficientFunds
	}

	h, err := q.Holds.Create(ctx, domain.CreateHoldParams{
		ID:        uuid.New(),
		AccountID: a.ID,
		Amount:    amount,
		Reference: reference,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return domain.HoldResult{}, err
	}

	return domain.HoldResult{Hold: h}, nil
}

// Get returns the hold with the given id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Hold, error) {
	return s.ledger.Store().Holds.Get(ctx, id)
}

// Release frees the funds reserved by the hold.
//
// Releasing a released hold is a replay. A hold past its ttl is expired instead and the
// call fails with domain.ErrHoldNotActive.
func (s *Service) Release(ctx context.Context, id uuid.UUID) (domain.HoldResult, error) {
	started := time.Now()

	res, err := s.release(ctx, id)
	metricspkg.ObserveOperation("release", ledgerservice.Outcome(err, res.Replayed), started)

	return res, err
}

func (s *Service) release(ctx context.Context, id uuid.UUID) (domain.HoldResult, error) {
	var res domain.HoldResult

	h, err := s.ledger.Store().Holds.Get(ctx, id)
	if err != nil {
		return res, err
	}

	err = s.ledger.RunTx(ctx, func(q *ledgerstore.Queries) error {
		if _, err := s.ledger.LockAccounts(ctx, q, h.AccountID); err != nil {
			return err
		}

		locked, err := q.Holds.Lock(ctx, id)
		if err != nil {
			return err
		}

		res, err = s.ReleaseTx(ctx, q, locked, time.Now())

		return err
	})
	if err != nil {
		return domain.HoldResult{}, err
	}

	if res.Hold.Status == domain.HoldExpired {
		return res, domain.ErrHoldNotActive
	}

	return res, nil
}

// ReleaseTx releases the locked hold h inside the caller's transaction.
//
// A hold found past its ttl is expired and returned with status EXPIRED; the caller decides
// whether that is a failure.
func (s *Service) ReleaseTx(ctx context.Context, q *ledgerstore.Queries, h domain.Hold, now time.Time) (domain.HoldResult, error) {
	switch h.Status {
	case domain.HoldReleased:
		return domain.HoldResult{Hold: h, Replayed: true}, nil
	case domain.HoldExpired:
		return domain.HoldResult{}, domain.ErrHoldNotActive
	}

	if !h.IsActiveAt(now) {
		expired, err := s.expireTx(ctx, q, h)
		if err != nil {
			return domain.HoldResult{}, err
		}

		return domain.HoldResult{Hold: expired}, nil
	}

	released, err := q.Holds.UpdateStatus(ctx, h.ID, domain.HoldReleased)
	if err != nil {
		return domain.HoldResult{}, err
	}

	zerolog.Ctx(ctx).Debug().Str("hold_id", h.ID.String()).Str("reference", h.Reference).Msg("hold released")

	return domain.HoldResult{Hold: released}, nil
}

func (s *Service) expireTx(ctx context.Context, q *ledgerstore.Queries, h domain.Hold) (domain.Hold, error) {
	expired, err := q.Holds.UpdateStatus(ctx, h.ID, domain.HoldExpired)
	if err != nil {
		return expired, err
	}

	metricspkg.HoldExpired()
	zerolog.Ctx(ctx).Info().
		Bool("audit", true).
		Str("hold_id", h.ID.String()).
		Int64("account_id", h.AccountID).
		Str("amount", h.Amount.String()).
		Str("reference", h.Reference).
		Time("expires_at", h.ExpiresAt).
		Msg("escrow hold expired")

	return expired, nil
}

// Expire marks a hold whose ttl elapsed at now as expired.
func (s *Service) Expire(ctx context.Context, id uuid.UUID, now time.Time) (domain.Hold, error) {
	var res domain.Hold

	err := s.ledger.RunTx(ctx, func(q *ledgerstore.Queries) error {
		h, err := q.Holds.Lock(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case h.Status == domain.HoldExpired:
			res = h
			return nil
		case h.Status != domain.HoldActive:
			return domain.ErrHoldNotActive
		case h.ExpiresAt.After(now):
			return domain.ErrHoldNotDue
		}

		res, err = s.expireTx(ctx, q, h)

		return err
	})

	return res, err
}

// ExpireDue expires up to limit holds whose ttl elapsed at now and returns how many it expired.
//
// Holds released or expired concurrently are skipped.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	l := zerolog.Ctx(ctx)

	due, err := s.ledger.Store().Holds.ListDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0

	for _, h := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		_, err := s.Expire(ctx, h.ID, now)

		switch {
		case err == nil:
			expired++
		case errors.Is(err, domain.ErrHoldNotActive), errors.Is(err, domain.ErrHoldNotDue):
			l.Debug().Str("hold_id", h.ID.String()).Err(err).Msg("hold changed before expiry")
		default:
			return expired, err
		}
	}

	return expired, nil
}
