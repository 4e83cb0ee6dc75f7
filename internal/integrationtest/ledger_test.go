//go:build integration

package integrationtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/go-petr/carmarket-wallet/pkg/randompkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestConcurrentOppositeTransfers(t *testing.T) {
	s, _ := SetupServer(t)
	ctx := context.Background()

	alice := SeedAccount(t, s, "alice", currencypkg.USD, "1000")
	bob := SeedAccount(t, s, "bob", currencypkg.USD, "1000")

	const n = 20

	var wg sync.WaitGroup

	errs := make(chan error, 2*n)

	for i := 0; i < n; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()

			_, err := s.Ledger.Transfer(ctx, "alice", domain.TransferParams{
				FromAccountID: alice.ID,
				ToAccountID:   bob.ID,
				Amount:        "10",
				Currency:      currencypkg.USD,
				Reference:     fmt.Sprintf("a2b-%d", i),
			})
			errs <- err
		}(i)

		go func(i int) {
			defer wg.Done()

			_, err := s.Ledger.Transfer(ctx, "bob", domain.TransferParams{
				FromAccountID: bob.ID,
				ToAccountID:   alice.ID,
				Amount:        "10",
				Currency:      currencypkg.USD,
				Reference:     fmt.Sprintf("b2a-%d", i),
			})
			errs <- err
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	for _, id := range []int64{alice.ID, bob.ID} {
		a, err := s.Ledger.Reconcile(ctx, id)
		require.NoError(t, err)
		require.True(t, a.Balance.Equal(decimal.NewFromInt(1000)), a.Balance.String())
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	s, rec := SetupServer(t)
	ctx := context.Background()

	account := SeedAccount(t, s, randompkg.Owner(), currencypkg.USD, "50")

	const (
		n    = 100
		want = 50
	)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, err := s.Ledger.Debit(ctx, domain.DebitParams{
				AccountID: account.ID,
				Amount:    "1",
				Currency:  currencypkg.USD,
				Reference: fmt.Sprintf("purchase-%d", i),
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("Debit returned unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	require.Equal(t, want, ok)
	require.Equal(t, n-want, rejected)

	balance, err := s.Ledger.GetBalance(ctx, "", account.ID)
	require.NoError(t, err)
	require.True(t, balance.Total.IsZero(), balance.Total.String())

	reconciled, err := s.Ledger.Reconcile(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, reconciled.Balance.IsZero(), reconciled.Balance.String())

	// Seed deposit plus one event per successful debit.
	require.Len(t, rec.Events(), 1+ok)
}

func TestTransferWithFailingCreditLeavesBothBalances(t *testing.T) {
	s, rec := SetupServer(t)
	ctx := context.Background()

	owner := randompkg.Owner()
	from := SeedAccount(t, s, owner, currencypkg.USD, "100")
	// The credit leg overflows the balance column after the debit leg applied.
	to := SeedAccount(t, s, randompkg.Owner(), currencypkg.USD, "999999999999999999")

	seeded := len(rec.Events())

	_, err := s.Ledger.Transfer(ctx, owner, domain.TransferParams{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        "5",
		Currency:      currencypkg.USD,
		Reference:     "overflow-1",
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	for _, a := range []domain.Account{from, to} {
		got, err := s.Ledger.Reconcile(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(a.Balance), "account %d: %s, want %s", a.ID, got.Balance, a.Balance)
	}

	_, err = s.Ledger.Store().Entries.GetByReference(ctx, from.ID, "overflow-1")
	require.ErrorIs(t, err, domain.ErrEntryNotFound)

	require.Len(t, rec.Events(), seeded)
}

func TestConcurrentCreditsWithSameReference(t *testing.T) {
	s, _ := SetupServer(t)
	ctx := context.Background()

	account := SeedAccount(t, s, randompkg.Owner(), currencypkg.USD, "0")

	const n = 10

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		replayed int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := s.Ledger.Credit(ctx, domain.CreditParams{
				AccountID: account.ID,
				Amount:    "42.5",
				Currency:  currencypkg.USD,
				Reference: "payout-1",
			})
			if err != nil {
				t.Errorf("Credit returned error: %v", err)
				return
			}

			if res.Replayed {
				mu.Lock()
				replayed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	require.Equal(t, n-1, replayed)

	a, err := s.Ledger.Reconcile(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, a.Balance.Equal(decimal.RequireFromString("42.5")))
}

func TestHoldThenSettle(t *testing.T) {
	s, rec := SetupServer(t)
	ctx := context.Background()

	buyer := SeedAccount(t, s, "buyer", currencypkg.USD, "500")
	seller := SeedAccount(t, s, "seller", currencypkg.USD, "0")

	held, err := s.Escrow.Hold(ctx, domain.HoldParams{
		AccountID: buyer.ID,
		Amount:    "300",
		Reference: "order-1",
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	balance, err := s.Ledger.GetBalance(ctx, "", buyer.ID)
	require.NoError(t, err)
	require.True(t, balance.Available.Equal(decimal.NewFromInt(200)))
	require.True(t, balance.Frozen.Equal(decimal.NewFromInt(300)))

	// A debit may only use the available part.
	_, err = s.Ledger.Debit(ctx, domain.DebitParams{
		AccountID: buyer.ID,
		Amount:    "250",
		Currency:  currencypkg.USD,
		Reference: "other-purchase",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	before := len(rec.Events())

	settlement, err := s.Settlement.Settle(ctx, domain.SettleParams{
		BuyerAccountID:  buyer.ID,
		SellerAccountID: seller.ID,
		Amount:          "300",
		Currency:        currencypkg.USD,
		Reference:       "order-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.SettlementSettled, settlement.State)
	require.Len(t, rec.Events(), before+4)

	hold, err := s.Escrow.Get(ctx, held.Hold.ID)
	require.NoError(t, err)
	require.Equal(t, domain.HoldReleased, hold.Status)

	again, err := s.Settlement.Settle(ctx, domain.SettleParams{
		BuyerAccountID:  buyer.ID,
		SellerAccountID: seller.ID,
		Amount:          "300",
		Currency:        currencypkg.USD,
		Reference:       "order-1",
	})
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Len(t, rec.Events(), before+4)

	for id, want := range map[int64]int64{buyer.ID: 200, seller.ID: 300} {
		a, err := s.Ledger.Reconcile(ctx, id)
		require.NoError(t, err)
		require.True(t, a.Balance.Equal(decimal.NewFromInt(want)), a.Balance.String())
	}
}

func TestConcurrentSettlementsSettleOnce(t *testing.T) {
	s, _ := SetupServer(t)
	ctx := context.Background()

	buyer := SeedAccount(t, s, "buyer", currencypkg.USD, "500")
	seller := SeedAccount(t, s, "seller", currencypkg.USD, "0")

	_, err := s.Escrow.Hold(ctx, domain.HoldParams{AccountID: buyer.ID, Amount: "500", Reference: "order-2"})
	require.NoError(t, err)

	const n = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		replayed int
	)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := s.Settlement.Settle(ctx, domain.SettleParams{
				BuyerAccountID:  buyer.ID,
				SellerAccountID: seller.ID,
				Amount:          "500",
				Currency:        currencypkg.USD,
				Reference:       "order-2",
			})
			if err != nil {
				t.Errorf("Settle returned error: %v", err)
				return
			}

			mu.Lock()
			defer mu.Unlock()

			if res.Replayed {
				replayed++
			}
		}()
	}

	wg.Wait()

	require.Equal(t, n-1, replayed)

	a, err := s.Ledger.Reconcile(ctx, seller.ID)
	require.NoError(t, err)
	require.True(t, a.Balance.Equal(decimal.NewFromInt(500)))
}

func TestExpiredHoldIsSweptAndFreesFunds(t *testing.T) {
	s, _ := SetupServer(t)
	ctx := context.Background()

	account := SeedAccount(t, s, randompkg.Owner(), currencypkg.USD, "100")

	held, err := s.Escrow.Hold(ctx, domain.HoldParams{
		AccountID: account.ID,
		Amount:    "100",
		Reference: "short-lived",
		TTL:       time.Second,
	})
	require.NoError(t, err)

	later := held.Hold.ExpiresAt.Add(time.Millisecond)

	n, err := s.Escrow.ExpireDue(ctx, later, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	hold, err := s.Escrow.Get(ctx, held.Hold.ID)
	require.NoError(t, err)
	require.Equal(t, domain.HoldExpired, hold.Status)

	_, err = s.Escrow.Release(ctx, held.Hold.ID)
	require.ErrorIs(t, err, domain.ErrHoldNotActive)

	balance, err := s.Ledger.GetBalance(ctx, "", account.ID)
	require.NoError(t, err)
	require.True(t, balance.Available.Equal(decimal.NewFromInt(100)))
}

func TestPlaceBidThenSell(t *testing.T) {
	s, _ := SetupServer(t)
	ctx := context.Background()

	seller := SeedAccount(t, s, "seller", currencypkg.USD, "0")
	first := SeedAccount(t, s, "first", currencypkg.USD, "1000")
	second := SeedAccount(t, s, "second", currencypkg.USD, "1000")

	auction := SeedAuction(t, s, seller, "100")

	_, err := s.Auction.PlaceBid(ctx, "first", domain.PlaceBidParams{
		AuctionID: auction.ID, AccountID: first.ID, Amount: "150", Reference: "b-1",
	})
	require.NoError(t, err)

	_, err = s.Auction.PlaceBid(ctx, "second", domain.PlaceBidParams{
		AuctionID: auction.ID, AccountID: second.ID, Amount: "150", Reference: "b-2",
	})
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	_, err = s.Auction.PlaceBid(ctx, "second", domain.PlaceBidParams{
		AuctionID: auction.ID, AccountID: second.ID, Amount: "200", Reference: "b-3",
	})
	require.NoError(t, err)

	firstBalance, err := s.Ledger.GetBalance(ctx, "first", first.ID)
	require.NoError(t, err)
	require.True(t, firstBalance.Frozen.IsZero(), "outbid hold is released")

	res, err := s.Auction.ManageStatus(ctx, "seller", domain.ManageStatusParams{AuctionID: auction.ID, Action: "sold"})
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	require.Equal(t, domain.AuctionEnded, res.Auction.Status)
	require.Equal(t, domain.CarSold, CarStatus(t, s, auction.CarID))

	for id, want := range map[int64]int64{second.ID: 800, seller.ID: 200, first.ID: 1000} {
		a, err := s.Ledger.Reconcile(ctx, id)
		require.NoError(t, err)
		require.True(t, a.Balance.Equal(decimal.NewFromInt(want)), a.Balance.String())
	}
}
