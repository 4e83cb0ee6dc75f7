package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidTopup indicates a top-up callback payload that cannot be processed.
var ErrInvalidTopup = errors.New("invalid top-up payload")

// TopupReferencePrefix namespaces top-up credits from other entries.
const TopupReferencePrefix = "topup:"

// TopupParams is the payload of a payment provider top-up callback.
//
// Token identifies the paid voucher or provider transaction; it is never stored in clear.
type TopupParams struct {
	Provider   string `json:"provider"`
	Owner      string `json:"owner"`
	Token      string `json:"token"`
	CardNumber string `json:"card_number"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

// Validate checks the payload and returns the parsed amount.
func (p TopupParams) Validate() (decimal.Decimal, error) {
	if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.Owner) == "" || p.Token == "" {
		return decimal.Decimal{}, ErrInvalidTopup
	}

	if err := ValidReference(p.Reference()); err != nil {
		return decimal.Decimal{}, err
	}

	return ParseAmount(p.Amount, p.WalletCurrency())
}

// WalletCurrency returns the currency credited, the local wallet currency when unset.
func (p TopupParams) WalletCurrency() string {
	if p.Currency == "" {
		return currencypkg.LYD
	}

	return p.Currency
}

// Reference returns the ledger reference of the top-up, unique per provider token.
func (p TopupParams) Reference() string {
	sum := blake2b.Sum256([]byte(p.Token))

	return TopupReferencePrefix + strings.ToLower(p.Provider) + ":" + hex.EncodeToString(sum[:])
}

// Description returns the entry description, carrying at most the last four card digits.
func (p TopupParams) Description() string {
	card := strings.Join(strings.Fields(p.CardNumber), "")
	if len(card) < 4 {
		return fmt.Sprintf("top-up from %s", p.Provider)
	}

	return fmt.Sprintf("top-up from %s card ending %s", p.Provider, card[len(card)-4:])
}
