package web

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.RegisterValidation("currency", ValidCurrency))
	require.NoError(t, v.RegisterValidation("amount", ValidAmount))

	type request struct {
		Currency string `validate:"currency"`
		Amount   string `validate:"amount"`
	}

	testCases := []struct {
		name    string
		req     request
		wantTag string
	}{
		{name: "OK", req: request{Currency: "LYD", Amount: "10.500"}},
		{name: "Crypto", req: request{Currency: "USDT-TRC20", Amount: "0.000001"}},
		{name: "UnsupportedCurrency", req: request{Currency: "EUR", Amount: "1"}, wantTag: "currency"},
		{name: "ZeroAmount", req: request{Currency: "USD", Amount: "0"}, wantTag: "amount"},
		{name: "NegativeAmount", req: request{Currency: "USD", Amount: "-1"}, wantTag: "amount"},
		{name: "NotANumber", req: request{Currency: "USD", Amount: "NaN"}, wantTag: "amount"},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.req)
			if tc.wantTag == "" {
				require.NoError(t, err)
				return
			}

			var ve validator.ValidationErrors
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tc.wantTag, ve[0].Tag())
		})
	}
}
