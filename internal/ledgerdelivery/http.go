// Package ledgerdelivery manages delivery layer of wallet accounts and ledger entries.
package ledgerdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/httperror"
	"github.com/go-petr/carmarket-wallet/internal/middleware"
	"github.com/go-petr/carmarket-wallet/pkg/web"
)

// Service provides service layer interface needed by ledger delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	OpenAccount(ctx context.Context, owner, currency string) (domain.Account, error)
	ListAccounts(ctx context.Context, owner string) ([]domain.Account, error)
	GetBalance(ctx context.Context, owner string, id int64) (domain.Balance, error)
	ListEntries(ctx context.Context, owner string, id int64, pageSize, pageID int32) ([]domain.Entry, error)
	Transfer(ctx context.Context, owner string, p domain.TransferParams) (domain.TransferResult, error)
	Credit(ctx context.Context, p domain.CreditParams) (domain.EntryResult, error)
	Debit(ctx context.Context, p domain.DebitParams) (domain.EntryResult, error)
	Reconcile(ctx context.Context, accountID int64) (domain.Account, error)
}

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns ledger handler.
func NewHandler(s Service) *Handler {
	return &Handler{service: s}
}

type accountData struct {
	Account domain.Account `json:"account"`
}

type accountsData struct {
	Accounts []domain.Account `json:"accounts"`
}

type balanceData struct {
	Balance domain.Balance `json:"balance"`
}

type entriesData struct {
	Entries []domain.Entry `json:"entries"`
}

type transferData struct {
	Transfer domain.TransferResult `json:"transfer"`
}

type entryData struct {
	Result domain.EntryResult `json:"result"`
}

type createAccountRequest struct {
	Currency string `json:"currency" binding:"required,currency"`
}

// CreateAccount handles http request to open a wallet account in a currency.
func (h *Handler) CreateAccount(gctx *gin.Context) {
	var req createAccountRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	account, err := h.service.OpenAccount(gctx.Request.Context(), middleware.Subject(gctx), req.Currency)
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: accountData{account}})
}

// ListAccounts handles http request to list the caller's wallet accounts.
func (h *Handler) ListAccounts(gctx *gin.Context) {
	accounts, err := h.service.ListAccounts(gctx.Request.Context(), middleware.Subject(gctx))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountsData{accounts}})
}

type accountURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// GetBalance handles http request to get the total, available and frozen balance.
func (h *Handler) GetBalance(gctx *gin.Context) {
	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	balance, err := h.service.GetBalance(gctx.Request.Context(), middleware.Subject(gctx), uri.ID)
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: balanceData{balance}})
}

type listEntriesRequest struct {
	PageID   int32 `form:"page_id" binding:"required,min=1"`
	PageSize int32 `form:"page_size" binding:"required,min=1,max=100"`
}

// ListEntries handles http request to list a page of account entries.
func (h *Handler) ListEntries(gctx *gin.Context) {
	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	var req listEntriesRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	entries, err := h.service.ListEntries(gctx.Request.Context(), middleware.Subject(gctx), uri.ID, req.PageSize, req.PageID)
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: entriesData{entries}})
}

type transferRequest struct {
	FromAccountID int64  `json:"from_account_id" binding:"required,min=1"`
	ToAccountID   int64  `json:"to_account_id" binding:"required,min=1"`
	Amount        string `json:"amount" binding:"required,amount"`
	Currency      string `json:"currency" binding:"required,currency"`
	Reference     string `json:"reference" binding:"required,max=128"`
	Description   string `json:"description" binding:"max=255"`
}

// Transfer handles http request to move funds between two accounts of the same currency.
func (h *Handler) Transfer(gctx *gin.Context) {
	var req transferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	res, err := h.service.Transfer(gctx.Request.Context(), middleware.Subject(gctx), domain.TransferParams(req))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: transferData{res}})
}

type entryRequest struct {
	AccountID   int64  `json:"account_id" binding:"required,min=1"`
	Amount      string `json:"amount" binding:"required,amount"`
	Currency    string `json:"currency" binding:"required,currency"`
	Reference   string `json:"reference" binding:"required,max=128"`
	Description string `json:"description" binding:"max=255"`
}

// Credit handles http request of a service caller to credit an account.
func (h *Handler) Credit(gctx *gin.Context) {
	var req entryRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	res, err := h.service.Credit(gctx.Request.Context(), domain.CreditParams(req))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: entryData{res}})
}

// Debit handles http request of a service caller to debit an account.
func (h *Handler) Debit(gctx *gin.Context) {
	var req entryRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	res, err := h.service.Debit(gctx.Request.Context(), domain.DebitParams(req))
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: entryData{res}})
}

// Reconcile handles http request to check an account balance against its entries.
func (h *Handler) Reconcile(gctx *gin.Context) {
	var uri accountURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		httperror.BadRequest(gctx, err)
		return
	}

	account, err := h.service.Reconcile(gctx.Request.Context(), uri.ID)
	if err != nil {
		httperror.Respond(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: accountData{account}})
}
