// Package settlementdelivery manages delivery layer of settlements.
package settlementdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/httperror"
	"github.com/go-petr/carmarket-wallet/pkg/web"
)

// Service provides service layer interface needed by settlement delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package settlementdelivery
type Service interface {
	Settle(ctx context.Context, p domain.SettleParams) (domain.Settlement, error)
	Status(ctx context.Context, buyerAccountID int64, reference string) (domain.SettlementState, error)
}

// Handler facilitates settlement delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns settlement handler.
func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

type settlementData struct {
	Settlement domain.Settlement `json:"settlement"`
}

type statusData struct {
	Reference string                 `json:"reference"`
	State     domain.SettlementState `json:"state"`
}

type settleRequest struct {
	BuyerAccountID  int64  `json:"buyer_account_id" binding:"required,min=1"`
	SellerAccountID int64  `json:"seller_account_id" binding:"required,min=1"`
	Amount          string `json:"amount" binding:"required,amount"`
	Currency        string `json:"currency" binding:"required,currency"`
	Reference       string `json:"reference" binding:"required,max=128"`
	ListingID       int64  `json:"listing_id" binding:"min=0"`
}

// Settle handles http request to settle an escrowed sale from buyer to seller.
func (h *Handler) Settle(gctx *gin.Context) {
	var req settleRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	settlement, err := h.service.Settle(gctx.Request.Context(), domain.SettleParams(req))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: settlementData{settlement}})
}

type statusRequest struct {
	BuyerAccountID int64  `form:"buyer_account_id" binding:"required,min=1"`
	Reference      string `form:"reference" binding:"required,max=128"`
}

// Status handles http request to query the settlement state of a reference.
func (h *Handler) Status(gctx *gin.Context) {
	var req statusRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	state, err := h.service.Status(gctx.Request.Context(), req.BuyerAccountID, req.Reference)
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: statusData{Reference: req.Reference, State: state}})
}
