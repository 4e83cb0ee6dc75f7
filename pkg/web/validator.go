package web

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidCurrency validates whether the currency is supported.
var ValidCurrency validator.Func = func(fl validator.FieldLevel) bool {
	if c, ok := fl.Field().Interface().(string); ok {
		return currencypkg.IsSupportedCurrency(c)
	}

	return false
}

// ValidAmount validates whether the field is a positive decimal number.
//
// Currency precision is checked by the service layer, which knows the account currency.
var ValidAmount validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))

	return err == nil && d.IsPositive()
}

// RegisterValidators registers the custom binding tags on gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	if err := v.RegisterValidation("currency", ValidCurrency); err != nil {
		return err
	}

	return v.RegisterValidation("amount", ValidAmount)
}
