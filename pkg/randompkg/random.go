// Package randompkg generates random values for tests and seed data.
package randompkg

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/shopspring/decimal"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Intn is a shortcut for generating a random integer between 0 and max using crypto/rand.
func Intn(max int64) int64 {
	nBig, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		panic(err)
	}

	return nBig.Int64()
}

// IntBetween generates a random integer between min and max inclusive.
func IntBetween(min, max int64) int64 {
	return min + Intn(max-min+1)
}

// String generates a random lowercase string of length n.
func String(n int) string {
	var sb strings.Builder

	for i := 0; i < n; i++ {
		_ = sb.WriteByte(alphabet[Intn(int64(len(alphabet)))]) // always nil
	}

	return sb.String()
}

// Owner generates a random wallet owner id.
func Owner() string {
	return String(6)
}

// Amount generates a random amount between min and max whole units, using every minor
// unit digit of the currency.
func Amount(min, max int64, currency string) decimal.Decimal {
	exp := currencypkg.MinorUnits(currency)
	scale := decimal.New(1, exp).IntPart()

	return decimal.New(IntBetween(min*scale, max*scale), -exp)
}

// Reference generates a random idempotency reference with the given prefix.
func Reference(prefix string) string {
	return prefix + "-" + String(12)
}
