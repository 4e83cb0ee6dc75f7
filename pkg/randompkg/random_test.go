package randompkg

import (
	"testing"

	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/shopspring/decimal"
)

func TestAmountFitsCurrency(t *testing.T) {
	for _, currency := range currencypkg.SupportedCurrencies {
		for i := 0; i < 50; i++ {
			got := Amount(10, 20, currency)

			if got.LessThan(decimal.NewFromInt(10)) || got.GreaterThan(decimal.NewFromInt(20)) {
				t.Fatalf("Amount(10, 20, %q) = %v, out of range", currency, got)
			}

			if !currencypkg.FitsMinorUnit(got, currency) {
				t.Fatalf("Amount(10, 20, %q) = %v, too many fractional digits", currency, got)
			}
		}
	}
}

func TestString(t *testing.T) {
	got := String(16)
	if len(got) != 16 {
		t.Fatalf("len(String(16)) = %d, want 16", len(got))
	}

	for _, c := range got {
		if c < 'a' || c > 'z' {
			t.Fatalf("String(16) = %q, want lowercase letters only", got)
		}
	}
}
