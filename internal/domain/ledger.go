package domain

import "github.com/shopspring/decimal"

// CreditParams is the input data of a credit.
type CreditParams struct {
	AccountID   int64  `json:"account_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

// Validate checks the fields that can be checked without the store and returns the parsed amount.
func (p CreditParams) Validate() (decimal.Decimal, error) {
	if p.AccountID <= 0 {
		return decimal.Decimal{}, ErrAccountNotFound
	}

	if err := ValidReference(p.Reference); err != nil {
		return decimal.Decimal{}, err
	}

	return ParseAmount(p.Amount, p.Currency)
}

// DebitParams is the input data of a debit.
type DebitParams CreditParams

// Validate checks the fields that can be checked without the store and returns the parsed amount.
func (p DebitParams) Validate() (decimal.Decimal, error) {
	return CreditParams(p).Validate()
}

// TransferParams is the input data of a transfer between two accounts.
type TransferParams struct {
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
	Description   string `json:"description"`
}

// Validate checks the fields that can be checked without the store and returns the parsed amount.
func (p TransferParams) Validate() (decimal.Decimal, error) {
	if p.FromAccountID <= 0 || p.ToAccountID <= 0 {
		return decimal.Decimal{}, ErrAccountNotFound
	}

	if p.FromAccountID == p.ToAccountID {
		return decimal.Decimal{}, ErrSameAccount
	}

	if err := ValidReference(p.Reference); err != nil {
		return decimal.Decimal{}, err
	}

	return ParseAmount(p.Amount, p.Currency)
}

// EntryResult is the result of a credit or a debit.
type EntryResult struct {
	Entry    Entry   `json:"entry"`
	Account  Account `json:"account"`
	Replayed bool    `json:"replayed"`
}

// TransferResult is the result of the transfer transaction.
type TransferResult struct {
	FromEntry   Entry   `json:"from_entry"`
	ToEntry     Entry   `json:"to_entry"`
	FromAccount Account `json:"from_account"`
	ToAccount   Account `json:"to_account"`
	Replayed    bool    `json:"replayed"`
}
