// Package httperror writes domain errors as JSON responses with their HTTP status.
package httperror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/errorspkg"
	"github.com/go-petr/carmarket-wallet/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var statuses = map[string]int{
	domain.KindInvalidAmount:        http.StatusBadRequest,
	domain.KindInvalidReference:     http.StatusBadRequest,
	domain.KindCurrencyMismatch:     http.StatusBadRequest,
	domain.KindUnsupportedCurrency:  http.StatusBadRequest,
	domain.KindSameAccount:          http.StatusBadRequest,
	domain.KindInvalidTTL:           http.StatusBadRequest,
	domain.KindInvalidAction:        http.StatusBadRequest,
	domain.KindBidTooLow:            http.StatusBadRequest,
	domain.KindSellerCannotBid:      http.StatusBadRequest,
	domain.KindInvalidRequestFormat: http.StatusBadRequest,
	domain.KindUnauthorized:         http.StatusUnauthorized,
	domain.KindInvalidSignature:     http.StatusUnauthorized,
	domain.KindAccountNotFound:      http.StatusNotFound,
	domain.KindHoldNotFound:         http.StatusNotFound,
	domain.KindAuctionNotFound:      http.StatusNotFound,
	domain.KindEntryNotFound:        http.StatusNotFound,
	domain.KindBidNotFound:          http.StatusNotFound,
	domain.KindCurrencyExists:       http.StatusConflict,
	domain.KindReferenceConflict:    http.StatusConflict,
	domain.KindDuplicateReference:   http.StatusConflict,
	domain.KindHoldNotActive:        http.StatusConflict,
	domain.KindHoldNotDue:           http.StatusConflict,
	domain.KindAuctionNotActive:     http.StatusConflict,
	domain.KindInsufficientFunds:    http.StatusUnprocessableEntity,
	domain.KindNoEscrowFound:        http.StatusUnprocessableEntity,
	domain.KindDataIntegrity:        http.StatusLocked,
	domain.KindTransient:            http.StatusServiceUnavailable,
}

// Status returns the HTTP status of err.
func Status(err error) int {
	if status, ok := statuses[domain.ErrorKind(err)]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// Respond writes err with its kind and status. Unexpected errors are masked as internal.
func Respond(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())

	kind := domain.ErrorKind(err)
	status := Status(err)

	if status == http.StatusInternalServerError {
		l.Error().Err(err).Send()
		gctx.JSON(status, web.Response{Error: web.Error(errorspkg.KindInternal, errorspkg.ErrInternal)})

		return
	}

	l.Info().Err(err).Str("kind", kind).Send()
	gctx.JSON(status, web.Response{Error: web.Error(kind, err)})
}

// BadRequest writes a request binding error, naming the first failed field.
func BadRequest(gctx *gin.Context, err error) {
	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()

	msg := "malformed request"

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		msg = field.Field() + web.GetErrorMsg(field)
	}

	gctx.JSON(http.StatusBadRequest, web.Response{Error: &web.JSONError{
		Kind:    domain.KindInvalidRequestFormat,
		Message: msg,
	}})
}
