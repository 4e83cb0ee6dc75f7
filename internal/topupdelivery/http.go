// Package topupdelivery manages delivery layer of payment provider top-up callbacks.
package topupdelivery

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/httperror"
	"github.com/go-petr/carmarket-wallet/pkg/web"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const SignatureHeader = "X-Signature"

const maxBodySize = 64 << 10

// Service provides service layer interface needed by top-up delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package topupdelivery
type Service interface {
	Callback(ctx context.Context, body []byte, signature string) (domain.EntryResult, error)
}

// Handler facilitates top-up delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns top-up handler.
func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

type topupData struct {
	Result domain.EntryResult `json:"result"`
}

// Callback handles the signed provider callback crediting a wallet.
func (h *Handler) Callback(gctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(gctx.Request.Body, maxBodySize+1))
	if err != nil || len(body) > maxBodySize {
		httperror.Respond(gctx, domain.ErrInvalidTopup)
		return
	}

	res, err := h.service.Callback(gctx.Request.Context(), body, gctx.GetHeader(SignatureHeader))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: topupData{res}})
}
