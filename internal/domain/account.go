// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCurrencyAlreadyExists indicates that the account with the given currency already exists.
	ErrCurrencyAlreadyExists = errors.New("account currency already exists")
	// ErrUnsupportedCurrency indicates that the currency has no wallet bucket.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrCurrencyMismatch indicates that the operation currency differs from the account currency.
	ErrCurrencyMismatch = errors.New("account currency mismatch")
	// ErrInvalidOwner indicates that the caller does not own the account.
	ErrInvalidOwner = errors.New("unauthorized owner")
	// ErrSameAccount indicates a transfer or settlement with identical source and target.
	ErrSameAccount = errors.New("source and target accounts are the same")
	// ErrInsufficientFunds indicates that the available balance is lower than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrDataIntegrityViolation indicates that the ledger no longer reconciles with the balance.
	// The account is halted until it is reconciled manually.
	ErrDataIntegrityViolation = errors.New("ledger integrity violation")
	// ErrTransient indicates lock contention or a timeout; the operation is safe to retry.
	ErrTransient = errors.New("temporary failure, retry the operation")
)

// Account holds one currency bucket of a user's wallet.
type Account struct {
	ID        int64           `json:"id"`
	Owner     string          `json:"owner"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	Halted    bool            `json:"halted"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Balance is the balance view of an account.
//
// Available is Total minus active escrow holds; Frozen is the held part.
type Balance struct {
	AccountID int64           `json:"account_id"`
	Currency  string          `json:"currency"`
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Frozen    decimal.Decimal `json:"frozen"`
}
