// Package auctiondelivery manages delivery layer of auctions and bids.
package auctiondelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/httperror"
	"github.com/go-petr/carmarket-wallet/internal/middleware"
	"github.com/go-petr/carmarket-wallet/pkg/web"
)

// Service provides service layer interface needed by auction delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package auctiondelivery
type Service interface {
	ManageStatus(ctx context.Context, owner string, p domain.ManageStatusParams) (domain.ManageStatusResult, error)
	PlaceBid(ctx context.Context, owner string, p domain.PlaceBidParams) (domain.PlaceBidResult, error)
}

// Handler facilitates auction delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns auction handler.
func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

type auctionURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type manageStatusRequest struct {
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason" binding:"max=255"`
}

// ManageStatus handles http request of the seller to change the auction status.
func (h *Handler) ManageStatus(gctx *gin.Context) {
	var uri auctionURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	var req manageStatusRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	res, err := h.service.ManageStatus(gctx.Request.Context(), middleware.Subject(gctx), domain.ManageStatusParams{
		AuctionID: uri.ID,
		Action:    req.Action,
		Reason:    req.Reason,
	})
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: res})
}

type placeBidRequest struct {
	AccountID int64  `json:"account_id" binding:"required,min=1"`
	Amount    string `json:"amount" binding:"required,amount"`
	Reference string `json:"reference" binding:"required,max=128"`
}

// PlaceBid handles http request to bid on an auction.
func (h *Handler) PlaceBid(gctx *gin.Context) {
	var uri auctionURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	var req placeBidRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	res, err := h.service.PlaceBid(gctx.Request.Context(), middleware.Subject(gctx), domain.PlaceBidParams{
		AuctionID: uri.ID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}

	gctx.JSON(status, web.Response{Data: res})
}
