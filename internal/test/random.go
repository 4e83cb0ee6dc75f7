package test

import (
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/go-petr/carmarket-wallet/pkg/randompkg"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RandomAccount returns random account owned by the given owner.
func RandomAccount(owner string) domain.Account {
	now := time.Now().Truncate(time.Second).UTC()

	return domain.Account{
		ID:        randompkg.IntBetween(1, 1000),
		Owner:     owner,
		Balance:   randompkg.Amount(1000, 10_000, currencypkg.USD),
		Currency:  currencypkg.USD,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AccountWithBalance returns a USD account with the given id and balance.
func AccountWithBalance(id int64, owner, balance string) domain.Account {
	a := RandomAccount(owner)
	a.ID = id
	a.Balance = decimal.RequireFromString(balance)

	return a
}

// RandomHold returns an active hold on the account expiring after ttl.
func RandomHold(accountID int64, amount string, ttl time.Duration) domain.Hold {
	now := time.Now().Truncate(time.Second).UTC()

	return domain.Hold{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
		Reference: randompkg.Reference("hold"),
		Status:    domain.HoldActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EntryFor returns the completed entry the ledger would record for arg.
func EntryFor(id int64, arg domain.CreateEntryParams) domain.Entry {
	return domain.Entry{
		ID:                    id,
		AccountID:             arg.AccountID,
		CounterpartyAccountID: arg.CounterpartyAccountID,
		Amount:                arg.Amount,
		Currency:              arg.Currency,
		Kind:                  arg.Kind,
		Status:                domain.EntryCompleted,
		Reference:             arg.Reference,
		Description:           arg.Description,
		CreatedAt:             time.Now().Truncate(time.Second).UTC(),
	}
}

// RandomAuction returns a USD auction of the seller account in the given status.
func RandomAuction(id, sellerAccountID int64, status domain.AuctionStatus) domain.Auction {
	now := time.Now().Truncate(time.Second).UTC()

	return domain.Auction{
		ID:              id,
		CarID:           randompkg.IntBetween(1, 1000),
		SellerAccountID: sellerAccountID,
		Title:           randompkg.Reference("car"),
		Status:          status,
		StartingPrice:   decimal.NewFromInt(100),
		Currency:        currencypkg.USD,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
