// Package currencypkg provides common currency related functionality for apps.
package currencypkg

import "github.com/shopspring/decimal"

// Constants for all supported currencies.
const (
	LYD       = "LYD"
	USD       = "USD"
	USDTTRC20 = "USDT-TRC20"
)

// Bucket names the wallet sub-ledger a currency belongs to.
type Bucket string

// Wallet buckets.
const (
	BucketLocal  Bucket = "LOCAL"
	BucketGlobal Bucket = "GLOBAL"
	BucketCrypto Bucket = "CRYPTO"
)

type unit struct {
	bucket     Bucket
	minorUnits int32
}

var units = map[string]unit{
	LYD:       {bucket: BucketLocal, minorUnits: 3},
	USD:       {bucket: BucketGlobal, minorUnits: 2},
	USDTTRC20: {bucket: BucketCrypto, minorUnits: 6},
}

// MaxAmount is the largest amount a balance or entry can store: NUMERIC(24,6) keeps
// at most 18 integer digits.
var MaxAmount = decimal.New(1, 18).Sub(decimal.New(1, -6))

// SupportedCurrencies holds all the supported currencies.
var SupportedCurrencies = []string{
	LYD,
	USD,
	USDTTRC20,
}

// IsSupportedCurrency returns true if the currncy is supported.
func IsSupportedCurrency(currency string) bool {
	_, ok := units[currency]
	return ok
}

// BucketOf returns the wallet bucket of the currency.
func BucketOf(currency string) Bucket {
	return units[currency].bucket
}

// MinorUnits returns the number of fractional digits of the currency.
func MinorUnits(currency string) int32 {
	return units[currency].minorUnits
}

// FitsMinorUnit reports whether amount can be expressed in the currency minor unit
// without rounding.
func FitsMinorUnit(amount decimal.Decimal, currency string) bool {
	s, ok := units[currency]
	if !ok {
		return false
	}

	return amount.Equal(amount.Truncate(s.minorUnits))
}

// InRange reports whether amount does not exceed MaxAmount in magnitude.
func InRange(amount decimal.Decimal) bool {
	return amount.Abs().LessThanOrEqual(MaxAmount)
}
