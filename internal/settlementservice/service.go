// Package settlementservice manages business logic layer of sale settlements.
package settlementservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/escrowservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerstore"
	"github.com/go-petr/carmarket-wallet/pkg/metricspkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service facilitates settlement service layer logic.
type Service struct {
	ledger *ledgerservice.Service
	escrow *escrowservice.Service
}

// New returns settlement service struct to manage settlement business logic.
func New(ledger *ledgerservice.Service, escrow *escrowservice.Service) *Service {
	return &Service{
		ledger: ledger,
		escrow: escrow,
	}
}

// Settle pays the seller from the buyer's escrow hold in one transaction.
//
// The hold with p.Reference is released, the buyer debited and the seller credited, both legs
// under p.LedgerReference(). Settling a reference again returns the recorded settlement.
func (s *Service) Settle(ctx context.Context, p domain.SettleParams) (domain.Settlement, error) {
	started := time.Now()

	res, err := s.settle(ctx, p)
	metricspkg.ObserveOperation("settle", ledgerservice.Outcome(err, res.Replayed), started)

	return res, err
}

func (s *Service) settle(ctx context.Context, p domain.SettleParams) (domain.Settlement, error) {
	var res domain.Settlement

	amount, err := p.Validate()
	if err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Send()
		return res, err
	}

	err = s.ledger.RunTx(ctx, func(q *ledgerstore.Queries) error {
		if p.ListingID != 0 {
			// The auction row is locked before the accounts, the order bids take.
			auction, err := q.Auctions.Lock(ctx, p.ListingID)
			if err != nil {
				return err
			}

			if err := p.CheckListing(auction); err != nil {
				zerolog.Ctx(ctx).Info().Err(err).Int64("auction_id", auction.ID).Msg("settlement does not match auction")
				return err
			}
		}

		res, err = s.SettleTx(ctx, q, p, amount, time.Now())
		return err
	})
	if err != nil {
		return domain.Settlement{}, err
	}

	if !res.Replayed {
		s.ledger.Publish(ctx, res.Events()...)
	}

	return res, nil
}

// SettleTx settles inside the caller's transaction; amount is the validated p.Amount.
//
// When p.ListingID is set the caller must hold the auction row lock and have checked
// p.CheckListing against it.
//
// Events are left to the caller and must only be published after commit.
func (s *Service) SettleTx(ctx context.Context, q *ledgerstore.Queries, p domain.SettleParams, amount decimal.Decimal, now time.Time) (domain.Settlement, error) {
	l := zerolog.Ctx(ctx)
	ref := p.LedgerReference()
	buyerID, sellerID := p.BuyerAccountID, p.SellerAccountID

	accounts, err := s.ledger.LockAccounts(ctx, q, buyerID, sellerID)
	if err != nil {
		return domain.Settlement{}, err
	}

	_, err = q.Entries.GetByReference(ctx, buyerID, ref)

	switch {
	case err == nil:
		// Already settled: the legs below are replays.
	case errors.Is(err, domain.ErrEntryNotFound):
		if err := s.releaseEscrow(ctx, q, p, amount, now); err != nil {
			return domain.Settlement{}, err
		}
	default:
		return domain.Settlement{}, err
	}

	description := "settlement"
	if p.ListingID != 0 {
		description = fmt.Sprintf("settlement of auction %d", p.ListingID)
	}

	debitArg := domain.CreateEntryParams{
		AccountID:             buyerID,
		CounterpartyAccountID: &sellerID,
		Amount:                amount,
		Currency:              p.Currency,
		Kind:                  domain.KindWithdrawal,
		Reference:             ref,
		Description:           description,
	}

	creditArg := debitArg
	creditArg.AccountID = sellerID
	creditArg.CounterpartyAccountID = &buyerID
	creditArg.Kind = domain.KindDeposit

	buyerLeg, err := s.ledger.ApplyDebit(ctx, q, accounts[buyerID], debitArg, now)
	if err != nil {
		return domain.Settlement{}, err
	}

	sellerLeg, err := s.ledger.ApplyCredit(ctx, q, accounts[sellerID], creditArg)
	if err != nil {
		return domain.Settlement{}, err
	}

	if buyerLeg.Replayed != sellerLeg.Replayed {
		l.Error().Bool("alert", true).Str("reference", ref).Msg("settlement recorded with one leg only")
		return domain.Settlement{}, domain.ErrReferenceConflict
	}

	if p.ListingID != 0 && !buyerLeg.Replayed {
		auction, err := q.Auctions.MarkSettled(ctx, p.ListingID, ref)
		if err != nil {
			return domain.Settlement{}, err
		}

		if err := q.Auctions.MarkCarSold(ctx, auction.CarID); err != nil {
			return domain.Settlement{}, err
		}
	}

	if !buyerLeg.Replayed {
		l.Info().
			Str("reference", ref).
			Int64("buyer_account_id", buyerID).
			Int64("seller_account_id", sellerID).
			Str("amount", amount.String()).
			Msg("settled")
	}

	return domain.Settlement{
		Reference:     ref,
		BuyerEntry:    buyerLeg.Entry,
		SellerEntry:   sellerLeg.Entry,
		BuyerAccount:  buyerLeg.Account,
		SellerAccount: sellerLeg.Account,
		Amount:        amount,
		ListingID:     p.ListingID,
		State:         domain.SettlementSettled,
		Replayed:      buyerLeg.Replayed,
	}, nil
}

// releaseEscrow releases the buyer hold that must cover the settlement.
func (s *Service) releaseEscrow(ctx context.Context, q *ledgerstore.Queries, p domain.SettleParams, amount decimal.Decimal, now time.Time) error {
	l := zerolog.Ctx(ctx)

	h, err := q.Holds.LockActiveByReference(ctx, p.BuyerAccountID, p.Reference)
	if errors.Is(err, domain.ErrHoldNotFound) {
		l.Info().Int64("account_id", p.BuyerAccountID).Str("reference", p.Reference).Msg("no escrow hold")
		return domain.ErrNoEscrowFound
	}

	if err != nil {
		return err
	}

	if !h.IsActiveAt(now) || h.Amount.LessThan(amount) {
		l.Info().
			Str("hold_id", h.ID.String()).
			Str("hold_amount", h.Amount.String()).
			Time("expires_at", h.ExpiresAt).
			Str("amount", amount.String()).
			Msg("escrow hold does not cover settlement")

		return domain.ErrNoEscrowFound
	}

	_, err = s.escrow.ReleaseTx(ctx, q, h, now)

	return err
}

// Status reports the state of the settlement of the buyer hold with the reference.
func (s *Service) Status(ctx context.Context, buyerAccountID int64, reference string) (domain.SettlementState, error) {
	if err := domain.ValidReference(reference); err != nil {
		return domain.SettlementNone, err
	}

	store := s.ledger.Store()
	ledgerRef := domain.SettleParams{Reference: reference}.LedgerReference()

	_, err := store.Entries.GetByReference(ctx, buyerAccountID, ledgerRef)
	if err == nil {
		return domain.SettlementSettled, nil
	}

	if !errors.Is(err, domain.ErrEntryNotFound) {
		return domain.SettlementNone, err
	}

	h, err := store.Holds.GetLatestByReference(ctx, buyerAccountID, reference)
	if errors.Is(err, domain.ErrHoldNotFound) {
		return domain.SettlementNone, nil
	}

	if err != nil {
		return domain.SettlementNone, err
	}

	switch {
	case h.IsActiveAt(time.Now()):
		return domain.SettlementHeld, nil
	case h.Status == domain.HoldReleased:
		return domain.SettlementNone, nil
	default:
		return domain.SettlementExpired, nil
	}
}
