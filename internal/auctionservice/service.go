// Package auctionservice manages business logic layer of auctions and bids.
//
// An auction row lock is taken before any account lock, accounts before holds.
package auctionservice

import (
	"context"
	"errors"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/escrowservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerstore"
	"github.com/go-petr/carmarket-wallet/internal/settlementservice"
	"github.com/go-petr/carmarket-wallet/pkg/metricspkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service facilitates auction service layer logic.
type Service struct {
	ledger     *ledgerservice.Service
	escrow     *escrowservice.Service
	settlement *settlementservice.Service
	bidHoldTTL time.Duration
}

// New returns auction service struct to manage auction business logic.
func New(ledger *ledgerservice.Service, escrow *escrowservice.Service, settlement *settlementservice.Service, bidHoldTTL time.Duration) *Service {
	return &Service{
		ledger:     ledger,
		escrow:     escrow,
		settlement: settlement,
		bidHoldTTL: bidHoldTTL,
	}
}

// checkSeller checks that owner owns the seller account of the auction.
func (s *Service) checkSeller(ctx context.Context, owner string, auctionID int64) error {
	store := s.ledger.Store()

	auction, err := store.Auctions.Get(ctx, auctionID)
	if err != nil {
		return err
	}

	seller, err := store.Accounts.Get(ctx, auction.SellerAccountID)
	if err != nil {
		return err
	}

	if seller.Owner != owner {
		zerolog.Ctx(ctx).Info().Str("owner", owner).Int64("auction_id", auctionID).Msg("status change by non seller")
		return domain.ErrInvalidOwner
	}

	return nil
}

// ManageStatus applies the seller's status action to the auction.
//
// Cancelling releases the leading bid hold. Selling settles the leading bid and marks the car sold.
func (s *Service) ManageStatus(ctx context.Context, owner string, p domain.ManageStatusParams) (domain.ManageStatusResult, error) {
	started := time.Now()

	res, err := s.manageStatus(ctx, owner, p)

	replayed := res.Settlement != nil && res.Settlement.Replayed
	metricspkg.ObserveOperation("manage_status", ledgerservice.Outcome(err, replayed), started)

	return res, err
}

func (s *Service) manageStatus(ctx context.Context, owner string, p domain.ManageStatusParams) (domain.ManageStatusResult, error) {
	var res domain.ManageStatusResult

	action, err := domain.ParseAuctionAction(p.Action)
	if err != nil {
		return res, err
	}

	if err := s.checkSeller(ctx, owner, p.AuctionID); err != nil {
		return res, err
	}

	err = s.ledger.RunTx(ctx, func(q *ledgerstore.Queries) error {
		res = domain.ManageStatusResult{}

		auction, err := q.Auctions.Lock(ctx, p.AuctionID)
		if err != nil {
			return err
		}

		now := time.Now()

		switch action {
		case domain.ActionCancel:
			if err := s.cancelTx(ctx, q, auction, now); err != nil {
				return err
			}
		case domain.ActionSold:
			if auction.SettledReference != nil {
				res.Auction = auction
				return nil
			}

			settlement, err := s.sellTx(ctx, q, auction, now)
			if err != nil {
				return err
			}

			res.Settlement = settlement
		}

		arg := domain.UpdateAuctionStatusParams{
			ID:     auction.ID,
			Status: action.TargetStatus(),
			Reason: p.Reason,
		}

		if action.Closes() && auction.EndDate == nil {
			arg.EndDate = &now
		}

		res.Auction, err = q.Auctions.UpdateStatus(ctx, arg)

		return err
	})
	if err != nil {
		return domain.ManageStatusResult{}, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("auction_id", p.AuctionID).
		Str("action", string(action)).
		Str("status", string(res.Auction.Status)).
		Msg("auction status changed")

	if res.Settlement != nil && !res.Settlement.Replayed {
		s.ledger.Publish(ctx, res.Settlement.Events()...)
	}

	return res, nil
}

// cancelTx refuses to cancel a closed auction and releases the leading bid hold.
func (s *Service) cancelTx(ctx context.Context, q *ledgerstore.Queries, auction domain.Auction, now time.Time) error {
	if auction.Status == domain.AuctionEnded || auction.Status == domain.AuctionCancelled {
		return domain.ErrInvalidAction
	}

	leader, err := q.Auctions.LeadingBid(ctx, auction.ID)
	if errors.Is(err, domain.ErrBidNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	if _, err := s.ledger.LockAccounts(ctx, q, leader.BidderAccountID); err != nil {
		return err
	}

	return s.releaseBidTx(ctx, q, leader, now)
}

// sellTx settles the leading bid, or marks the car sold when there is none.
func (s *Service) sellTx(ctx context.Context, q *ledgerstore.Queries, auction domain.Auction, now time.Time) (*domain.Settlement, error) {
	if auction.Status == domain.AuctionCancelled {
		return nil, domain.ErrInvalidAction
	}

	leader, err := q.Auctions.LeadingBid(ctx, auction.ID)
	if errors.Is(err, domain.ErrBidNotFound) {
		return nil, q.Auctions.MarkCarSold(ctx, auction.CarID)
	}

	if err != nil {
		return nil, err
	}

	p := domain.SettleParams{
		BuyerAccountID:  leader.BidderAccountID,
		SellerAccountID: auction.SellerAccountID,
		Amount:          leader.Amount.String(),
		Currency:        auction.Currency,
		Reference:       domain.BidHoldReference(auction.ID, leader.Reference),
		ListingID:       auction.ID,
	}

	amount, err := p.Validate()
	if err != nil {
		return nil, err
	}

	if err := p.CheckListing(auction); err != nil {
		return nil, err
	}

	settlement, err := s.settlement.SettleTx(ctx, q, p, amount, now)
	if err != nil {
		return nil, err
	}

	return &settlement, nil
}

// releaseBidTx releases the hold backing the bid; the bidder account must be locked.
func (s *Service) releaseBidTx(ctx context.Context, q *ledgerstore.Queries, b domain.Bid, now time.Time) error {
	h, err := q.Holds.Lock(ctx, b.HoldID)
	if err != nil {
		return err
	}

	_, err = s.escrow.ReleaseTx(ctx, q, h, now)
	if errors.Is(err, domain.ErrHoldNotActive) {
		// Expired holds reserve nothing already.
		return nil
	}

	return err
}

// PlaceBid places a bid backed by an escrow hold and releases the hold of the outbid leader.
//
// Placing a bid again with the same reference returns the recorded bid.
func (s *Service) PlaceBid(ctx context.Context, owner string, p domain.PlaceBidParams) (domain.PlaceBidResult, error) {
	started := time.Now()

	res, err := s.placeBid(ctx, owner, p)
	metricspkg.ObserveOperation("bid", ledgerservice.Outcome(err, res.Replayed), started)

	return res, err
}

func (s *Service) validBid(ctx context.Context, owner string, p domain.PlaceBidParams) (decimal.Decimal, error) {
	l := zerolog.Ctx(ctx)
	store := s.ledger.Store()

	if p.AccountID <= 0 {
		return decimal.Decimal{}, domain.ErrAccountNotFound
	}

	if err := domain.ValidReference(p.Reference); err != nil {
		return decimal.Decimal{}, err
	}

	if err := domain.ValidReference(domain.BidHoldReference(p.AuctionID, p.Reference)); err != nil {
		return decimal.Decimal{}, err
	}

	auction, err := store.Auctions.Get(ctx, p.AuctionID)
	if err != nil {
		return decimal.Decimal{}, err
	}

	amount, err := domain.ParseAmount(p.Amount, auction.Currency)
	if err != nil {
		return amount, err
	}

	account, err := store.Accounts.Get(ctx, p.AccountID)
	if err != nil {
		return amount, err
	}

	if account.Owner != owner {
		l.Info().Str("owner", owner).Int64("account_id", account.ID).Msg("bid from foreign account")
		return amount, domain.ErrInvalidOwner
	}

	if account.Currency != auction.Currency {
		return amount, domain.ErrCurrencyMismatch
	}

	// One account per owner and currency: the seller bids only through the seller account.
	if account.ID == auction.SellerAccountID {
		return amount, domain.ErrSellerCannotBid
	}

	return amount, nil
}

func (s *Service) placeBid(ctx context.Context, owner string, p domain.PlaceBidParams) (domain.PlaceBidResult, error) {
	var res domain.PlaceBidResult

	amount, err := s.validBid(ctx, owner, p)
	if err != nil {
		return res, err
	}

	err = s.ledger.RunTx(ctx, func(q *ledgerstore.Queries) error {
		res, err = s.placeBidTx(ctx, q, p, amount, time.Now())
		return err
	})
	if err != nil {
		return domain.PlaceBidResult{}, err
	}

	if !res.Replayed {
		zerolog.Ctx(ctx).Info().
			Int64("auction_id", p.AuctionID).
			Int64("bid_id", res.Bid.ID).
			Str("amount", amount.String()).
			Msg("bid placed")
	}

	return res, nil
}

func (s *Service) placeBidTx(ctx context.Context, q *ledgerstore.Queries, p domain.PlaceBidParams, amount decimal.Decimal, now time.Time) (domain.PlaceBidResult, error) {
	auction, err := q.Auctions.Lock(ctx, p.AuctionID)
	if err != nil {
		return domain.PlaceBidResult{}, err
	}

	existing, err := q.Auctions.GetBidByReference(ctx, p.AuctionID, p.Reference)

	switch {
	case errors.Is(err, domain.ErrBidNotFound):
	case err != nil:
		return domain.PlaceBidResult{}, err
	case existing.BidderAccountID != p.AccountID || !existing.Amount.Equal(amount):
		return domain.PlaceBidResult{}, domain.ErrReferenceConflict
	default:
		h, err := q.Holds.Get(ctx, existing.HoldID)
		if err != nil {
			return domain.PlaceBidResult{}, err
		}

		return domain.PlaceBidResult{Bid: existing, Hold: h, Replayed: true}, nil
	}

	if auction.Status != domain.AuctionActive {
		return domain.PlaceBidResult{}, domain.ErrAuctionNotActive
	}

	ids := []int64{p.AccountID}

	leader, err := q.Auctions.LeadingBid(ctx, auction.ID)

	switch {
	case errors.Is(err, domain.ErrBidNotFound):
		if amount.LessThan(auction.StartingPrice) {
			return domain.PlaceBidResult{}, domain.ErrBidTooLow
		}
	case err != nil:
		return domain.PlaceBidResult{}, err
	default:
		if !amount.GreaterThan(leader.Amount) {
			return domain.PlaceBidResult{}, domain.ErrBidTooLow
		}

		ids = append(ids, leader.BidderAccountID)
	}

	accounts, err := s.ledger.LockAccounts(ctx, q, ids...)
	if err != nil {
		return domain.PlaceBidResult{}, err
	}

	if len(ids) > 1 {
		if err := s.releaseBidTx(ctx, q, leader, now); err != nil {
			return domain.PlaceBidResult{}, err
		}
	}

	held, err := s.escrow.HoldTx(ctx, q, accounts[p.AccountID], amount, domain.BidHoldReference(auction.ID, p.Reference), s.bidHoldTTL, now)
	if err != nil {
		return domain.PlaceBidResult{}, err
	}

	bid, err := q.Auctions.CreateBid(ctx, domain.CreateBidParams{
		AuctionID:       auction.ID,
		BidderAccountID: p.AccountID,
		Amount:          amount,
		Reference:       p.Reference,
		HoldID:          held.Hold.ID,
	})
	if err != nil {
		return domain.PlaceBidResult{}, err
	}

	return domain.PlaceBidResult{Bid: bid, Hold: held.Hold}, nil
}
