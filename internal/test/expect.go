package test

import (
	"database/sql"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/shopspring/decimal"
)

// Query patterns of the repositories, matched against whitespace-collapsed SQL.
const (
	GetAccountSQL          = `FROM accounts WHERE id = \$1$`
	ListAccountsSQL        = `FROM accounts WHERE owner = \$1`
	CreateAccountSQL       = `INSERT INTO accounts`
	LockAccountSQL         = `FROM accounts WHERE id = \$1 FOR UPDATE`
	AddBalanceSQL          = `UPDATE accounts SET balance = balance \+ \$1`
	SetHaltedSQL           = `UPDATE accounts SET halted = \$1`
	GetBalanceSQL          = `LEFT JOIN escrow_holds h`
	CreateEntrySQL         = `INSERT INTO entries`
	EntryByReferenceSQL    = `FROM entries WHERE account_id = \$1 AND reference = \$2`
	SumCompletedSQL        = `FROM entries WHERE account_id = \$1 AND status = 'COMPLETED'`
	CreateHoldSQL          = `INSERT INTO escrow_holds`
	GetHoldSQL             = `FROM escrow_holds WHERE id = \$1$`
	LockHoldSQL            = `FROM escrow_holds WHERE id = \$1 FOR UPDATE`
	LockActiveHoldSQL      = `FROM escrow_holds WHERE account_id = \$1 AND reference = \$2 AND status = 'ACTIVE' FOR UPDATE`
	LatestHoldSQL          = `FROM escrow_holds WHERE account_id = \$1 AND reference = \$2 ORDER BY created_at DESC`
	SumActiveSQL           = `FROM escrow_holds WHERE account_id = \$1 AND status = 'ACTIVE' AND expires_at > \$2`
	UpdateHoldStatusSQL    = `UPDATE escrow_holds SET status = \$1`
	ListDueHoldsSQL        = `FROM escrow_holds WHERE status = 'ACTIVE' AND expires_at <= \$1`
	GetAuctionSQL          = `FROM auctions WHERE id = \$1$`
	LockAuctionSQL         = `FROM auctions WHERE id = \$1 FOR UPDATE`
	UpdateAuctionStatusSQL = `UPDATE auctions SET status = \$1`
	MarkAuctionSettledSQL  = `UPDATE auctions SET status = 'ENDED', settled_reference = \$1`
	MarkCarSoldSQL         = `UPDATE cars SET status = \$1`
	CreateBidSQL           = `INSERT INTO bids`
	LeadingBidSQL          = `FROM bids WHERE auction_id = \$1 ORDER BY amount DESC`
	BidByReferenceSQL      = `FROM bids WHERE auction_id = \$1 AND reference = \$2`
)

// ExpectLockAccount expects the row lock of a.
func ExpectLockAccount(mock sqlmock.Sqlmock, a domain.Account) {
	mock.ExpectQuery(LockAccountSQL).WithArgs(a.ID).WillReturnRows(AccountRows(a))
}

// ExpectGetAccount expects an unlocked read of a.
func ExpectGetAccount(mock sqlmock.Sqlmock, a domain.Account) {
	mock.ExpectQuery(GetAccountSQL).WithArgs(a.ID).WillReturnRows(AccountRows(a))
}

// ExpectGetAccountNotFound expects an unlocked read of a missing account.
func ExpectGetAccountNotFound(mock sqlmock.Sqlmock, id int64) {
	mock.ExpectQuery(GetAccountSQL).WithArgs(id).WillReturnError(sql.ErrNoRows)
}

// ExpectNoEntry expects a reference lookup that finds nothing.
func ExpectNoEntry(mock sqlmock.Sqlmock, accountID int64, reference string) {
	mock.ExpectQuery(EntryByReferenceSQL).WithArgs(accountID, reference).WillReturnError(sql.ErrNoRows)
}

// ExpectEntry expects a reference lookup that finds e.
func ExpectEntry(mock sqlmock.Sqlmock, e domain.Entry) {
	mock.ExpectQuery(EntryByReferenceSQL).WithArgs(e.AccountID, e.Reference).WillReturnRows(EntryRows(e))
}

// ExpectCreateEntry expects e to be appended.
func ExpectCreateEntry(mock sqlmock.Sqlmock, e domain.Entry) {
	mock.ExpectQuery(CreateEntrySQL).
		WithArgs(e.AccountID, sqlmock.AnyArg(), e.Amount, e.Currency, e.Kind, domain.EntryCompleted, e.Reference, sqlmock.AnyArg()).
		WillReturnRows(EntryRows(e))
}

// ExpectAddBalance expects the balance of a to change by delta.
//
// It returns a with the changed balance.
func ExpectAddBalance(mock sqlmock.Sqlmock, a domain.Account, delta string) domain.Account {
	d := decimal.RequireFromString(delta)
	a.Balance = a.Balance.Add(d)

	mock.ExpectQuery(AddBalanceSQL).WithArgs(d, a.ID).WillReturnRows(AccountRows(a))

	return a
}

// ExpectSumActive expects the sum of active holds of the account.
func ExpectSumActive(mock sqlmock.Sqlmock, accountID int64, sum string) {
	mock.ExpectQuery(SumActiveSQL).
		WithArgs(accountID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(sum))
}

// ExpectCreditFlow expects an idempotency miss, an entry and a balance change.
//
// It returns the account after the change.
func ExpectCreditFlow(mock sqlmock.Sqlmock, a domain.Account, e domain.Entry) domain.Account {
	ExpectNoEntry(mock, e.AccountID, e.Reference)
	ExpectCreateEntry(mock, e)

	return ExpectAddBalance(mock, a, e.Amount.String())
}

// ExpectDebitFlow expects an idempotency miss, an availability check, an entry and a balance change.
//
// e.Amount is negative. It returns the account after the change.
func ExpectDebitFlow(mock sqlmock.Sqlmock, a domain.Account, e domain.Entry, frozen string) domain.Account {
	ExpectNoEntry(mock, e.AccountID, e.Reference)
	ExpectSumActive(mock, a.ID, frozen)
	ExpectCreateEntry(mock, e)

	return ExpectAddBalance(mock, a, e.Amount.String())
}

// ExpectCreateHold expects h to be persisted.
func ExpectCreateHold(mock sqlmock.Sqlmock, h domain.Hold) {
	mock.ExpectQuery(CreateHoldSQL).
		WithArgs(sqlmock.AnyArg(), h.AccountID, h.Amount, h.Reference, sqlmock.AnyArg()).
		WillReturnRows(HoldRows(h))
}

// ExpectLockHold expects the row lock of h.
func ExpectLockHold(mock sqlmock.Sqlmock, h domain.Hold) {
	mock.ExpectQuery(LockHoldSQL).WithArgs(h.ID).WillReturnRows(HoldRows(h))
}

// ExpectGetHold expects an unlocked read of h.
func ExpectGetHold(mock sqlmock.Sqlmock, h domain.Hold) {
	mock.ExpectQuery(GetHoldSQL).WithArgs(h.ID).WillReturnRows(HoldRows(h))
}

// ExpectLockActiveHold expects the lock of the active hold with the reference; a nil h finds nothing.
func ExpectLockActiveHold(mock sqlmock.Sqlmock, accountID int64, reference string, h *domain.Hold) {
	e := mock.ExpectQuery(LockActiveHoldSQL).WithArgs(accountID, reference)
	if h == nil {
		e.WillReturnError(sql.ErrNoRows)
		return
	}

	e.WillReturnRows(HoldRows(*h))
}

// ExpectLatestHold expects the lookup of the latest hold with the reference; a nil h finds nothing.
func ExpectLatestHold(mock sqlmock.Sqlmock, accountID int64, reference string, h *domain.Hold) {
	e := mock.ExpectQuery(LatestHoldSQL).WithArgs(accountID, reference)
	if h == nil {
		e.WillReturnError(sql.ErrNoRows)
		return
	}

	e.WillReturnRows(HoldRows(*h))
}

// ExpectUpdateHoldStatus expects h to move to status and returns the changed hold.
func ExpectUpdateHoldStatus(mock sqlmock.Sqlmock, h domain.Hold, status domain.HoldStatus) domain.Hold {
	h.Status = status

	mock.ExpectQuery(UpdateHoldStatusSQL).WithArgs(status, h.ID).WillReturnRows(HoldRows(h))

	return h
}

// ExpectLockAuction expects the row lock of a.
func ExpectLockAuction(mock sqlmock.Sqlmock, a domain.Auction) {
	mock.ExpectQuery(LockAuctionSQL).WithArgs(a.ID).WillReturnRows(AuctionRows(a))
}

// ExpectLeadingBid expects the leading bid lookup; a nil b finds nothing.
func ExpectLeadingBid(mock sqlmock.Sqlmock, auctionID int64, b *domain.Bid) {
	e := mock.ExpectQuery(LeadingBidSQL).WithArgs(auctionID)
	if b == nil {
		e.WillReturnError(sql.ErrNoRows)
		return
	}

	e.WillReturnRows(BidRows(*b))
}

// ExpectBidByReference expects the bid lookup by reference; a nil b finds nothing.
func ExpectBidByReference(mock sqlmock.Sqlmock, auctionID int64, reference string, b *domain.Bid) {
	e := mock.ExpectQuery(BidByReferenceSQL).WithArgs(auctionID, reference)
	if b == nil {
		e.WillReturnError(sql.ErrNoRows)
		return
	}

	e.WillReturnRows(BidRows(*b))
}

// ExpectCreateBid expects b to be persisted.
func ExpectCreateBid(mock sqlmock.Sqlmock, b domain.Bid) {
	mock.ExpectQuery(CreateBidSQL).
		WithArgs(b.AuctionID, b.BidderAccountID, b.Amount, b.Reference, sqlmock.AnyArg()).
		WillReturnRows(BidRows(b))
}

// BidFor returns the bid recorded for a hold.
func BidFor(id int64, auctionID int64, h domain.Hold, reference string) domain.Bid {
	return domain.Bid{
		ID:              id,
		AuctionID:       auctionID,
		BidderAccountID: h.AccountID,
		Amount:          h.Amount,
		Reference:       reference,
		HoldID:          h.ID,
		CreatedAt:       h.CreatedAt,
	}
}

// ExpectMarkSettled expects the auction to be closed by the settlement reference and its car sold.
//
// It returns the settled auction.
func ExpectMarkSettled(mock sqlmock.Sqlmock, a domain.Auction, reference string) domain.Auction {
	a.Status = domain.AuctionEnded
	a.SettledReference = &reference

	mock.ExpectQuery(MarkAuctionSettledSQL).WithArgs(reference, a.ID).WillReturnRows(AuctionRows(a))
	mock.ExpectExec(MarkCarSoldSQL).WithArgs(domain.CarSold, a.CarID).WillReturnResult(sqlmock.NewResult(0, 1))

	return a
}

// ExpectGetAuction expects an unlocked read of a.
func ExpectGetAuction(mock sqlmock.Sqlmock, a domain.Auction) {
	mock.ExpectQuery(GetAuctionSQL).WithArgs(a.ID).WillReturnRows(AuctionRows(a))
}

// ExpectUpdateAuctionStatus expects a to move to status and returns the changed auction.
func ExpectUpdateAuctionStatus(mock sqlmock.Sqlmock, a domain.Auction, status domain.AuctionStatus, reason string) domain.Auction {
	a.Status = status
	a.StatusReason = reason

	mock.ExpectQuery(UpdateAuctionStatusSQL).WithArgs(status, reason, sqlmock.AnyArg(), a.ID).WillReturnRows(AuctionRows(a))

	return a
}
