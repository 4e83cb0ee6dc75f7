package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrAuctionNotFound indicates that the auction is not found.
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrInvalidAction indicates an unknown status action or one not allowed in the current status.
	ErrInvalidAction = errors.New("invalid auction action")
	// ErrAuctionNotActive indicates a bid on an auction that is not live.
	ErrAuctionNotActive = errors.New("auction is not active")
	// ErrBidTooLow indicates a bid that does not beat the starting price or the leading bid.
	ErrBidTooLow = errors.New("bid must exceed the current price")
	// ErrSellerCannotBid indicates a bid placed with the seller account.
	ErrSellerCannotBid = errors.New("seller cannot bid on own auction")
	// ErrBidNotFound indicates that the auction has no bid matching the query.
	ErrBidNotFound = errors.New("bid not found")
	// ErrInvalidSignature indicates a top-up callback whose signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// AuctionStatus is the status of an auction.
type AuctionStatus string

// Auction statuses.
const (
	AuctionUpcoming  AuctionStatus = "UPCOMING"
	AuctionActive    AuctionStatus = "ACTIVE"
	AuctionSuspended AuctionStatus = "SUSPENDED"
	AuctionEnded     AuctionStatus = "ENDED"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// CarSold is the car status set once its auction is sold.
const CarSold = "SOLD"

// AuctionAction is a status change requested by the seller.
type AuctionAction string

// Auction actions.
const (
	ActionUpcoming AuctionAction = "upcoming"
	ActionLive     AuctionAction = "live"
	ActionEnded    AuctionAction = "ended"
	ActionSold     AuctionAction = "sold"
	ActionPause    AuctionAction = "pause"
	ActionResume   AuctionAction = "resume"
	ActionEnd      AuctionAction = "end"
	ActionCancel   AuctionAction = "cancel"
)

// ParseAuctionAction normalizes an action name.
func ParseAuctionAction(s string) (AuctionAction, error) {
	a := AuctionAction(strings.ToLower(strings.TrimSpace(s)))

	switch a {
	case ActionUpcoming, ActionLive, ActionEnded, ActionSold, ActionPause, ActionResume, ActionEnd, ActionCancel:
		return a, nil
	}

	return "", ErrInvalidAction
}

// TargetStatus returns the auction status the action leads to.
func (a AuctionAction) TargetStatus() AuctionStatus {
	switch a {
	case ActionUpcoming:
		return AuctionUpcoming
	case ActionLive, ActionResume:
		return AuctionActive
	case ActionPause:
		return AuctionSuspended
	case ActionCancel:
		return AuctionCancelled
	default:
		return AuctionEnded
	}
}

// Closes reports whether the action stamps the auction end date.
func (a AuctionAction) Closes() bool {
	switch a {
	case ActionEnded, ActionSold, ActionEnd, ActionCancel:
		return true
	}

	return false
}

// Auction is a car listing sold to the highest bidder.
type Auction struct {
	ID               int64           `json:"id"`
	CarID            int64           `json:"car_id"`
	SellerAccountID  int64           `json:"seller_account_id"`
	Title            string          `json:"title"`
	Status           AuctionStatus   `json:"status"`
	StartingPrice    decimal.Decimal `json:"starting_price"`
	Currency         string          `json:"currency"`
	EndDate          *time.Time      `json:"end_date,omitempty"`
	SettledReference *string         `json:"settled_reference,omitempty"`
	StatusReason     string          `json:"status_reason,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// UpdateAuctionStatusParams is the input data to change an auction status.
type UpdateAuctionStatusParams struct {
	ID      int64
	Status  AuctionStatus
	Reason  string
	EndDate *time.Time
}

// ManageStatusParams is the input data of a seller status change.
type ManageStatusParams struct {
	AuctionID int64  `json:"-"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}

// ManageStatusResult is the auction after the status change.
//
// Settlement is set when a sold auction settled its leading bid.
type ManageStatusResult struct {
	Auction    Auction     `json:"auction"`
	Settlement *Settlement `json:"settlement,omitempty"`
}

// Bid is an offer on an auction backed by an escrow hold.
type Bid struct {
	ID              int64           `json:"id"`
	AuctionID       int64           `json:"auction_id"`
	BidderAccountID int64           `json:"bidder_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference"`
	HoldID          uuid.UUID       `json:"hold_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CreateBidParams is the input data to persist a bid.
type CreateBidParams struct {
	AuctionID       int64
	BidderAccountID int64
	Amount          decimal.Decimal
	Reference       string
	HoldID          uuid.UUID
}

// PlaceBidParams is the input data of a bid request.
type PlaceBidParams struct {
	AuctionID int64  `json:"-"`
	AccountID int64  `json:"account_id"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

// BidHoldReference returns the reference of the escrow hold backing a bid.
func BidHoldReference(auctionID int64, reference string) string {
	return fmt.Sprintf("bid:%d:%s", auctionID, reference)
}

// PlaceBidResult is the placed bid and the hold that backs it.
type PlaceBidResult struct {
	Bid      Bid  `json:"bid"`
	Hold     Hold `json:"hold"`
	Replayed bool `json:"replayed"`
}
