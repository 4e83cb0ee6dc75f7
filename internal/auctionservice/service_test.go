package auctionservice

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/escrowservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerservice"
	"github.com/go-petr/carmarket-wallet/internal/ledgerstore"
	"github.com/go-petr/carmarket-wallet/internal/settlementservice"
	"github.com/go-petr/carmarket-wallet/internal/test"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const bidTTL = 10 * time.Minute

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *test.Recorder) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	rec := &test.Recorder{}
	ledger := ledgerservice.New(ledgerstore.New(db, ledgerstore.Options{}), rec)
	escrow := escrowservice.New(ledger, time.Minute, time.Hour)
	settlement := settlementservice.New(ledger, escrow)

	return New(ledger, escrow, settlement, bidTTL), mock, rec
}

func bidHold(accountID int64, amount string, auctionID int64, reference string) domain.Hold {
	h := test.RandomHold(accountID, amount, bidTTL)
	h.Reference = domain.BidHoldReference(auctionID, reference)

	return h
}

func TestPlaceBid(t *testing.T) {
	bidder := test.AccountWithBalance(1, "alice", "500")
	seller := test.AccountWithBalance(2, "bob", "0")
	rival := test.AccountWithBalance(3, "carol", "1000")
	auction := test.RandomAuction(9, seller.ID, domain.AuctionActive)

	hold := bidHold(bidder.ID, "200", auction.ID, "b-1")
	bid := test.BidFor(21, auction.ID, hold, "b-1")

	leaderHold := bidHold(rival.ID, "150", auction.ID, "r-1")
	leader := test.BidFor(20, auction.ID, leaderHold, "r-1")

	params := domain.PlaceBidParams{AuctionID: auction.ID, AccountID: bidder.ID, Amount: "200", Reference: "b-1"}

	testCases := []struct {
		name       string
		owner      string
		params     domain.PlaceBidParams
		buildStubs func(mock sqlmock.Sqlmock)
		check      func(t *testing.T, res domain.PlaceBidResult, err error)
	}{
		{
			name:   "FirstBid",
			owner:  "alice",
			params: params,
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectBidByReference(mock, auction.ID, "b-1", nil)
				test.ExpectLeadingBid(mock, auction.ID, nil)
				test.ExpectLockAccount(mock, bidder)
				test.ExpectLockActiveHold(mock, bidder.ID, hold.Reference, nil)
				test.ExpectSumActive(mock, bidder.ID, "0")
				test.ExpectCreateHold(mock, hold)
				test.ExpectCreateBid(mock, bid)
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.NoError(t, err)
				require.False(t, res.Replayed)
				require.Equal(t, hold.ID, res.Bid.HoldID)
				require.Equal(t, "bid:9:b-1", res.Hold.Reference)
			},
		},
		{
			name:   "OutbidReleasesLeaderHold",
			owner:  "alice",
			params: params,
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectBidByReference(mock, auction.ID, "b-1", nil)
				test.ExpectLeadingBid(mock, auction.ID, &leader)
				test.ExpectLockAccount(mock, bidder)
				test.ExpectLockAccount(mock, rival)
				test.ExpectLockHold(mock, leaderHold)
				test.ExpectUpdateHoldStatus(mock, leaderHold, domain.HoldReleased)
				test.ExpectLockActiveHold(mock, bidder.ID, hold.Reference, nil)
				test.ExpectSumActive(mock, bidder.ID, "0")
				test.ExpectCreateHold(mock, hold)
				test.ExpectCreateBid(mock, bid)
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.NoError(t, err)
				require.Equal(t, bid.ID, res.Bid.ID)
			},
		},
		{
			name:  "NotAboveLeader",
			owner: "alice",
			params: domain.PlaceBidParams{
				AuctionID: auction.ID,
				AccountID: bidder.ID,
				Amount:    "150",
				Reference: "b-1",
			},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectBidByReference(mock, auction.ID, "b-1", nil)
				test.ExpectLeadingBid(mock, auction.ID, &leader)
				mock.ExpectRollback()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrBidTooLow)
			},
		},
		{
			name:  "BelowStartingPrice",
			owner: "alice",
			params: domain.PlaceBidParams{
				AuctionID: auction.ID,
				AccountID: bidder.ID,
				Amount:    "99.99",
				Reference: "b-1",
			},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectBidByReference(mock, auction.ID, "b-1", nil)
				test.ExpectLeadingBid(mock, auction.ID, nil)
				mock.ExpectRollback()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrBidTooLow)
			},
		},
		{
			name:   "Replay",
			owner:  "alice",
			params: params,
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectBidByReference(mock, auction.ID, "b-1", &bid)
				test.ExpectGetHold(mock, hold)
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.NoError(t, err)
				require.True(t, res.Replayed)
				require.Equal(t, hold.ID, res.Hold.ID)
			},
		},
		{
			name:  "ReferenceConflict",
			owner: "alice",
			params: domain.PlaceBidParams{
				AuctionID: auction.ID,
				AccountID: bidder.ID,
				Amount:    "300",
				Reference: "b-1",
			},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectBidByReference(mock, auction.ID, "b-1", &bid)
				mock.ExpectRollback()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrReferenceConflict)
			},
		},
		{
			name:   "AuctionPaused",
			owner:  "alice",
			params: params,
			buildStubs: func(mock sqlmock.Sqlmock) {
				paused := auction
				paused.Status = domain.AuctionSuspended

				test.ExpectGetAuction(mock, paused)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, paused)
				test.ExpectBidByReference(mock, auction.ID, "b-1", nil)
				mock.ExpectRollback()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrAuctionNotActive)
			},
		},
		{
			name:  "InsufficientFunds",
			owner: "alice",
			params: domain.PlaceBidParams{
				AuctionID: auction.ID,
				AccountID: bidder.ID,
				Amount:    "600",
				Reference: "b-1",
			},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectBidByReference(mock, auction.ID, "b-1", nil)
				test.ExpectLeadingBid(mock, auction.ID, nil)
				test.ExpectLockAccount(mock, bidder)
				test.ExpectLockActiveHold(mock, bidder.ID, hold.Reference, nil)
				test.ExpectSumActive(mock, bidder.ID, "0")
				mock.ExpectRollback()
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrInsufficientFunds)
			},
		},
		{
			name:  "SellerCannotBid",
			owner: "bob",
			params: domain.PlaceBidParams{
				AuctionID: auction.ID,
				AccountID: seller.ID,
				Amount:    "200",
				Reference: "b-1",
			},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, seller)
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrSellerCannotBid)
			},
		},
		{
			name:   "ForeignAccount",
			owner:  "mallory",
			params: params,
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, bidder)
			},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidOwner)
			},
		},
		{
			name:  "InvalidReference",
			owner: "alice",
			params: domain.PlaceBidParams{
				AuctionID: auction.ID,
				AccountID: bidder.ID,
				Amount:    "200",
			},
			buildStubs: func(mock sqlmock.Sqlmock) {},
			check: func(t *testing.T, res domain.PlaceBidResult, err error) {
				require.ErrorIs(t, err, domain.ErrInvalidReference)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			s, mock, _ := newTestService(t)
			tc.buildStubs(mock)

			res, err := s.PlaceBid(context.Background(), tc.owner, tc.params)
			tc.check(t, res, err)
		})
	}
}

func TestManageStatus(t *testing.T) {
	bidder := test.AccountWithBalance(1, "alice", "500")
	seller := test.AccountWithBalance(2, "bob", "0")
	auction := test.RandomAuction(9, seller.ID, domain.AuctionActive)

	hold := bidHold(bidder.ID, "200", auction.ID, "b-1")
	leader := test.BidFor(21, auction.ID, hold, "b-1")

	testCases := []struct {
		name       string
		owner      string
		params     domain.ManageStatusParams
		buildStubs func(mock sqlmock.Sqlmock)
		check      func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder)
	}{
		{
			name:   "Pause",
			owner:  "bob",
			params: domain.ManageStatusParams{AuctionID: auction.ID, Action: "pause", Reason: "paperwork"},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, seller)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectUpdateAuctionStatus(mock, auction, domain.AuctionSuspended, "paperwork")
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.NoError(t, err)
				require.Equal(t, domain.AuctionSuspended, res.Auction.Status)
				require.Nil(t, res.Settlement)
			},
		},
		{
			name:   "NotSeller",
			owner:  "alice",
			params: domain.ManageStatusParams{AuctionID: auction.ID, Action: "pause"},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, seller)
			},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.ErrorIs(t, err, domain.ErrInvalidOwner)
			},
		},
		{
			name:       "UnknownAction",
			owner:      "bob",
			params:     domain.ManageStatusParams{AuctionID: auction.ID, Action: "explode"},
			buildStubs: func(mock sqlmock.Sqlmock) {},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.ErrorIs(t, err, domain.ErrInvalidAction)
			},
		},
		{
			name:   "CancelEnded",
			owner:  "bob",
			params: domain.ManageStatusParams{AuctionID: auction.ID, Action: "cancel"},
			buildStubs: func(mock sqlmock.Sqlmock) {
				ended := auction
				ended.Status = domain.AuctionEnded

				test.ExpectGetAuction(mock, ended)
				test.ExpectGetAccount(mock, seller)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, ended)
				mock.ExpectRollback()
			},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.ErrorIs(t, err, domain.ErrInvalidAction)
			},
		},
		{
			name:   "CancelReleasesLeaderHold",
			owner:  "bob",
			params: domain.ManageStatusParams{AuctionID: auction.ID, Action: "Cancel", Reason: "withdrawn"},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, seller)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectLeadingBid(mock, auction.ID, &leader)
				test.ExpectLockAccount(mock, bidder)
				test.ExpectLockHold(mock, hold)
				test.ExpectUpdateHoldStatus(mock, hold, domain.HoldReleased)
				test.ExpectUpdateAuctionStatus(mock, auction, domain.AuctionCancelled, "withdrawn")
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.NoError(t, err)
				require.Equal(t, domain.AuctionCancelled, res.Auction.Status)
				require.Empty(t, rec.Events())
			},
		},
		{
			name:   "SoldSettlesLeader",
			owner:  "bob",
			params: domain.ManageStatusParams{AuctionID: auction.ID, Action: "sold"},
			buildStubs: func(mock sqlmock.Sqlmock) {
				ref := domain.SettleParams{Reference: hold.Reference}.LedgerReference()
				buyerID, sellerID := bidder.ID, seller.ID

				buyerEntry := test.EntryFor(30, domain.CreateEntryParams{
					AccountID:             buyerID,
					CounterpartyAccountID: &sellerID,
					Amount:                decimal.NewFromInt(-200),
					Currency:              auction.Currency,
					Kind:                  domain.KindWithdrawal,
					Reference:             ref,
				})

				sellerEntry := test.EntryFor(31, domain.CreateEntryParams{
					AccountID:             sellerID,
					CounterpartyAccountID: &buyerID,
					Amount:                decimal.NewFromInt(200),
					Currency:              auction.Currency,
					Kind:                  domain.KindDeposit,
					Reference:             ref,
				})

				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, seller)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectLeadingBid(mock, auction.ID, &leader)
				test.ExpectLockAccount(mock, bidder)
				test.ExpectLockAccount(mock, seller)
				test.ExpectNoEntry(mock, bidder.ID, ref)
				test.ExpectLockActiveHold(mock, bidder.ID, hold.Reference, &hold)
				test.ExpectUpdateHoldStatus(mock, hold, domain.HoldReleased)
				test.ExpectDebitFlow(mock, bidder, buyerEntry, "0")
				test.ExpectCreditFlow(mock, seller, sellerEntry)
				settled := test.ExpectMarkSettled(mock, auction, ref)
				test.ExpectUpdateAuctionStatus(mock, settled, domain.AuctionEnded, "")
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.NoError(t, err)
				require.Equal(t, domain.AuctionEnded, res.Auction.Status)
				require.NotNil(t, res.Settlement)
				require.Equal(t, "300", res.Settlement.BuyerAccount.Balance.String())
				require.Equal(t, "200", res.Settlement.SellerAccount.Balance.String())
				require.Len(t, rec.Events(), 4)
			},
		},
		{
			name:   "SoldWithoutBids",
			owner:  "bob",
			params: domain.ManageStatusParams{AuctionID: auction.ID, Action: "sold"},
			buildStubs: func(mock sqlmock.Sqlmock) {
				test.ExpectGetAuction(mock, auction)
				test.ExpectGetAccount(mock, seller)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, auction)
				test.ExpectLeadingBid(mock, auction.ID, nil)
				mock.ExpectExec(test.MarkCarSoldSQL).WithArgs(domain.CarSold, auction.CarID).WillReturnResult(sqlmock.NewResult(0, 1))
				test.ExpectUpdateAuctionStatus(mock, auction, domain.AuctionEnded, "")
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.NoError(t, err)
				require.Nil(t, res.Settlement)
			},
		},
		{
			name:   "SoldAgain",
			owner:  "bob",
			params: domain.ManageStatusParams{AuctionID: auction.ID, Action: "sold"},
			buildStubs: func(mock sqlmock.Sqlmock) {
				ref := "settlement:bid:9:b-1"
				settled := auction
				settled.Status = domain.AuctionEnded
				settled.SettledReference = &ref

				test.ExpectGetAuction(mock, settled)
				test.ExpectGetAccount(mock, seller)
				mock.ExpectBegin()
				test.ExpectLockAuction(mock, settled)
				mock.ExpectCommit()
			},
			check: func(t *testing.T, res domain.ManageStatusResult, err error, rec *test.Recorder) {
				require.NoError(t, err)
				require.NotNil(t, res.Auction.SettledReference)
				require.Empty(t, rec.Events())
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			s, mock, rec := newTestService(t)
			tc.buildStubs(mock)

			res, err := s.ManageStatus(context.Background(), tc.owner, tc.params)
			tc.check(t, res, err, rec)
		})
	}
}
