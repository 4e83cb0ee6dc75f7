package domain

import (
	"errors"

	"github.com/go-petr/carmarket-wallet/pkg/errorspkg"
)

// Stable error kinds returned to callers.
const (
	KindInvalidAmount        = "InvalidAmount"
	KindInvalidReference     = "InvalidReference"
	KindAccountNotFound      = "AccountNotFound"
	KindCurrencyMismatch     = "CurrencyMismatch"
	KindUnsupportedCurrency  = "UnsupportedCurrency"
	KindCurrencyExists       = "CurrencyAlreadyExists"
	KindSameAccount          = "SameAccount"
	KindInsufficientFunds    = "InsufficientFunds"
	KindDuplicateReference   = "DuplicateReference"
	KindReferenceConflict    = "ReferenceConflict"
	KindHoldNotFound         = "HoldNotFound"
	KindHoldNotActive        = "HoldNotActive"
	KindHoldNotDue           = "HoldNotDue"
	KindInvalidTTL           = "InvalidTTL"
	KindNoEscrowFound        = "NoEscrowFound"
	KindDataIntegrity        = "DataIntegrityViolation"
	KindTransient            = "TransientError"
	KindUnauthorized         = "Unauthorized"
	KindAuctionNotFound      = "AuctionNotFound"
	KindInvalidAction        = "InvalidAction"
	KindAuctionNotActive     = "AuctionNotActive"
	KindBidTooLow            = "BidTooLow"
	KindSellerCannotBid      = "SellerCannotBid"
	KindInvalidSignature     = "InvalidSignature"
	KindEntryNotFound        = "EntryNotFound"
	KindBidNotFound          = "BidNotFound"
	KindInvalidRequestFormat = "InvalidRequest"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalidReference, KindInvalidReference},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrCurrencyMismatch, KindCurrencyMismatch},
	{ErrUnsupportedCurrency, KindUnsupportedCurrency},
	{ErrCurrencyAlreadyExists, KindCurrencyExists},
	{ErrSameAccount, KindSameAccount},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrDuplicateReference, KindDuplicateReference},
	{ErrReferenceConflict, KindReferenceConflict},
	{ErrHoldNotFound, KindHoldNotFound},
	{ErrHoldNotActive, KindHoldNotActive},
	{ErrHoldNotDue, KindHoldNotDue},
	{ErrInvalidTTL, KindInvalidTTL},
	{ErrNoEscrowFound, KindNoEscrowFound},
	{ErrDataIntegrityViolation, KindDataIntegrity},
	{ErrTransient, KindTransient},
	{ErrInvalidOwner, KindUnauthorized},
	{ErrAuctionNotFound, KindAuctionNotFound},
	{ErrInvalidAction, KindInvalidAction},
	{ErrAuctionNotActive, KindAuctionNotActive},
	{ErrBidTooLow, KindBidTooLow},
	{ErrSellerCannotBid, KindSellerCannotBid},
	{ErrInvalidSignature, KindInvalidSignature},
	{ErrEntryNotFound, KindEntryNotFound},
	{ErrBidNotFound, KindBidNotFound},
	{ErrInvalidTopup, KindInvalidRequestFormat},
}

// ErrorKind returns the stable kind of err, errorspkg.KindInternal when it is not a domain error.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return errorspkg.KindInternal
}
