package test

import (
	"database/sql/driver"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-petr/carmarket-wallet/internal/domain"
)

// AccountColumns are the columns returned by account queries.
var AccountColumns = []string{"id", "owner", "balance", "currency", "halted", "created_at", "updated_at"}

// AccountRows returns sqlmock rows holding the given accounts.
func AccountRows(accounts ...domain.Account) *sqlmock.Rows {
	rows := sqlmock.NewRows(AccountColumns)

	for _, a := range accounts {
		rows.AddRow(a.ID, a.Owner, a.Balance.String(), a.Currency, a.Halted, a.CreatedAt, a.UpdatedAt)
	}

	return rows
}

// EntryColumns are the columns returned by entry queries.
var EntryColumns = []string{
	"id", "account_id", "counterparty_account_id", "amount", "currency",
	"kind", "status", "reference", "description", "created_at",
}

// EntryRows returns sqlmock rows holding the given entries.
func EntryRows(entries ...domain.Entry) *sqlmock.Rows {
	rows := sqlmock.NewRows(EntryColumns)

	for _, e := range entries {
		var counterparty driver.Value
		if e.CounterpartyAccountID != nil {
			counterparty = *e.CounterpartyAccountID
		}

		rows.AddRow(e.ID, e.AccountID, counterparty, e.Amount.String(), e.Currency,
			string(e.Kind), string(e.Status), e.Reference, e.Description, e.CreatedAt)
	}

	return rows
}

// HoldColumns are the columns returned by escrow hold queries.
var HoldColumns = []string{"id", "account_id", "amount", "reference", "status", "expires_at", "created_at", "updated_at"}

// HoldRows returns sqlmock rows holding the given holds.
func HoldRows(holds ...domain.Hold) *sqlmock.Rows {
	rows := sqlmock.NewRows(HoldColumns)

	for _, h := range holds {
		rows.AddRow(h.ID.String(), h.AccountID, h.Amount.String(), h.Reference, string(h.Status),
			h.ExpiresAt, h.CreatedAt, h.UpdatedAt)
	}

	return rows
}

// AuctionColumns are the columns returned by auction queries.
var AuctionColumns = []string{
	"id", "car_id", "seller_account_id", "title", "status", "starting_price", "currency",
	"end_date", "settled_reference", "status_reason", "created_at", "updated_at",
}

// AuctionRows returns sqlmock rows holding the given auctions.
func AuctionRows(auctions ...domain.Auction) *sqlmock.Rows {
	rows := sqlmock.NewRows(AuctionColumns)

	for _, a := range auctions {
		var endDate, settledRef driver.Value
		if a.EndDate != nil {
			endDate = *a.EndDate
		}

		if a.SettledReference != nil {
			settledRef = *a.SettledReference
		}

		rows.AddRow(a.ID, a.CarID, a.SellerAccountID, a.Title, string(a.Status), a.StartingPrice.String(),
			a.Currency, endDate, settledRef, a.StatusReason, a.CreatedAt, a.UpdatedAt)
	}

	return rows
}

// BidColumns are the columns returned by bid queries.
var BidColumns = []string{"id", "auction_id", "bidder_account_id", "amount", "reference", "hold_id", "created_at"}

// BidRows returns sqlmock rows holding the given bids.
func BidRows(bids ...domain.Bid) *sqlmock.Rows {
	rows := sqlmock.NewRows(BidColumns)

	for _, b := range bids {
		rows.AddRow(b.ID, b.AuctionID, b.BidderAccountID, b.Amount.String(), b.Reference, b.HoldID.String(), b.CreatedAt)
	}

	return rows
}
