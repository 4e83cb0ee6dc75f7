// Package escrowdelivery manages delivery layer of escrow holds.
package escrowdelivery

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/httperror"
	"github.com/go-petr/carmarket-wallet/pkg/web"
	"github.com/google/uuid"
)

// Service provides service layer interface needed by escrow delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package escrowdelivery
type Service interface {
	Hold(ctx context.Context, p domain.HoldParams) (domain.HoldResult, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Hold, error)
	Release(ctx context.Context, id uuid.UUID) (domain.HoldResult, error)
}

// Handler facilitates escrow delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns escrow handler.
func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

type holdData struct {
	Hold     domain.Hold `json:"hold"`
	Replayed bool        `json:"replayed"`
}

type holdRequest struct {
	AccountID  int64  `json:"account_id" binding:"required,min=1"`
	Amount     string `json:"amount" binding:"required,amount"`
	Reference  string `json:"reference" binding:"required,max=128"`
	TTLSeconds int64  `json:"ttl_seconds" binding:"min=0"`
}

// Hold handles http request to reserve funds on an account.
func (h *Handler) Hold(gctx *gin.Context) {
	var req holdRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	res, err := h.service.Hold(gctx.Request.Context(), domain.HoldParams{
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Reference: req.Reference,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}

	gctx.JSON(status, web.Response{Data: holdData(res)})
}

type holdURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// Get handles http request to get a hold.
func (h *Handler) Get(gctx *gin.Context) {
	var uri holdURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	hold, err := h.service.Get(gctx.Request.Context(), uuid.MustParse(uri.ID))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: holdData{Hold: hold}})
}

// Release handles http request to release a hold back to the available balance.
func (h *Handler) Release(gctx *gin.Context) {
	var uri holdURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	res, err := h.service.Release(gctx.Request.Context(), uuid.MustParse(uri.ID))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: holdData(res)})
}
