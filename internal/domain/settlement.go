package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoEscrowFound indicates that no active hold covers the settlement.
var ErrNoEscrowFound = errors.New("no active escrow hold covers the settlement")

// SettlementReferencePrefix namespaces settlement legs from other entries.
const SettlementReferencePrefix = "settlement:"

// SettlementState is the state of a settlement reference.
//
// SETTLING and FAILED only exist inside the settlement transaction: a failed
// settlement rolls back to HELD and can be retried.
type SettlementState string

// Settlement states.
const (
	SettlementNone     SettlementState = "NONE"
	SettlementHeld     SettlementState = "HELD"
	SettlementSettling SettlementState = "SETTLING"
	SettlementSettled  SettlementState = "SETTLED"
	SettlementFailed   SettlementState = "FAILED"
	SettlementExpired  SettlementState = "EXPIRED"
)

// SettleParams is the input data of a settlement.
//
// Reference is the escrow hold reference of the winning bid; ListingID is the
// auction to mark as settled, zero when the sale is not tied to an auction.
type SettleParams struct {
	BuyerAccountID  int64  `json:"buyer_account_id"`
	SellerAccountID int64  `json:"seller_account_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Reference       string `json:"reference"`
	ListingID       int64  `json:"listing_id"`
}

// Validate checks the fields that can be checked without the store and returns the parsed amount.
func (p SettleParams) Validate() (decimal.Decimal, error) {
	if p.BuyerAccountID <= 0 || p.SellerAccountID <= 0 {
		return decimal.Decimal{}, ErrAccountNotFound
	}

	if p.BuyerAccountID == p.SellerAccountID {
		return decimal.Decimal{}, ErrSameAccount
	}

	if err := ValidReference(p.Reference); err != nil {
		return decimal.Decimal{}, err
	}

	if len(SettlementReferencePrefix+p.Reference) > MaxReferenceLength {
		return decimal.Decimal{}, ErrInvalidReference
	}

	return ParseAmount(p.Amount, p.Currency)
}

// LedgerReference returns the reference stamped on both settlement legs.
func (p SettleParams) LedgerReference() string {
	return SettlementReferencePrefix + p.Reference
}

// CheckListing reports whether the settlement may close the auction a: the seller and
// currency must match and the auction must not be cancelled or settled under another reference.
func (p SettleParams) CheckListing(a Auction) error {
	if a.SellerAccountID != p.SellerAccountID || a.Currency != p.Currency || a.Status == AuctionCancelled {
		return ErrInvalidAction
	}

	if a.SettledReference != nil && *a.SettledReference != p.LedgerReference() {
		return ErrInvalidAction
	}

	return nil
}

// Settlement is the pair of entries recorded by a settlement.
type Settlement struct {
	Reference     string          `json:"reference"`
	BuyerEntry    Entry           `json:"buyer_entry"`
	SellerEntry   Entry           `json:"seller_entry"`
	BuyerAccount  Account         `json:"buyer_account"`
	SellerAccount Account         `json:"seller_account"`
	Amount        decimal.Decimal `json:"amount"`
	ListingID     int64           `json:"listing_id,omitempty"`
	State         SettlementState `json:"state"`
	Replayed      bool            `json:"replayed"`
}

// Events returns the events of a committed settlement.
func (s Settlement) Events() []Event {
	return []Event{
		SettlementCompleted(s.BuyerEntry),
		SettlementCompleted(s.SellerEntry),
		BalanceChanged(s.BuyerEntry),
		BalanceChanged(s.SellerEntry),
	}
}
