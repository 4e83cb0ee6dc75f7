package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates a non-positive, malformed or too precise amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidReference indicates an empty or too long idempotency reference.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrDuplicateReference indicates that an entry with the same reference already exists for the account.
	ErrDuplicateReference = errors.New("duplicate reference")
	// ErrReferenceConflict indicates that a reference was reused with different parameters.
	ErrReferenceConflict = errors.New("reference already used for a different operation")
	// ErrEntryNotFound indicates that the entry is not found.
	ErrEntryNotFound = errors.New("entry not found")
)

// MaxReferenceLength bounds caller supplied references.
const MaxReferenceLength = 160

// EntryKind classifies a ledger entry.
type EntryKind string

// Entry kinds. Escrow kinds are accepted by the schema for audit imports; holds
// themselves never write entries because no ownership changes.
const (
	KindDeposit       EntryKind = "DEPOSIT"
	KindWithdrawal    EntryKind = "WITHDRAWAL"
	KindTransfer      EntryKind = "TRANSFER"
	KindEscrowHold    EntryKind = "ESCROW_HOLD"
	KindEscrowRelease EntryKind = "ESCROW_RELEASE"
)

// EntryStatus is the lifecycle state of an entry.
type EntryStatus string

// Entry statuses.
const (
	EntryPending   EntryStatus = "PENDING"
	EntryCompleted EntryStatus = "COMPLETED"
	EntryFailed    EntryStatus = "FAILED"
	EntryReversed  EntryStatus = "REVERSED"
)

// Entry is an immutable ledger record of a balance change.
//
// Amount is signed: positive entries credit the account, negative entries debit it.
type Entry struct {
	ID                    int64           `json:"id"`
	AccountID             int64           `json:"account_id"`
	CounterpartyAccountID *int64          `json:"counterparty_account_id,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Kind                  EntryKind       `json:"kind"`
	Status                EntryStatus     `json:"status"`
	Reference             string          `json:"reference"`
	Description           string          `json:"description"`
	CreatedAt             time.Time       `json:"created_at"`
}

// CreateEntryParams is the input data to append an entry.
type CreateEntryParams struct {
	AccountID             int64
	CounterpartyAccountID *int64
	Amount                decimal.Decimal
	Currency              string
	Kind                  EntryKind
	Status                EntryStatus
	Reference             string
	Description           string
}

// Matches reports whether e records the same operation as arg.
func (e Entry) Matches(arg CreateEntryParams) bool {
	if e.Kind != arg.Kind || !e.Amount.Equal(arg.Amount) || e.Currency != arg.Currency {
		return false
	}

	if e.CounterpartyAccountID == nil || arg.CounterpartyAccountID == nil {
		return e.CounterpartyAccountID == nil && arg.CounterpartyAccountID == nil
	}

	return *e.CounterpartyAccountID == *arg.CounterpartyAccountID
}

// ParseAmount parses a positive amount that fits the currency minor unit and
// does not exceed currencypkg.MaxAmount.
func ParseAmount(amount, currency string) (decimal.Decimal, error) {
	if !currencypkg.IsSupportedCurrency(currency) {
		return decimal.Decimal{}, ErrUnsupportedCurrency
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}

	if !d.IsPositive() || !currencypkg.FitsMinorUnit(d, currency) || !currencypkg.InRange(d) {
		return decimal.Decimal{}, ErrInvalidAmount
	}

	return d, nil
}

// ValidReference checks a caller supplied idempotency reference.
func ValidReference(ref string) error {
	if strings.TrimSpace(ref) == "" || len(ref) > MaxReferenceLength {
		return ErrInvalidReference
	}

	return nil
}
