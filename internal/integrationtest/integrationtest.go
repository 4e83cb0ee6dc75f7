// Package integrationtest provides db helpers used in integration tests.
package integrationtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/carmarket-wallet/cmd/httpserver"
	"github.com/go-petr/carmarket-wallet/internal/auctionrepo"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/middleware"
	"github.com/go-petr/carmarket-wallet/internal/test"
	"github.com/go-petr/carmarket-wallet/pkg/configpkg"
	"github.com/go-petr/carmarket-wallet/pkg/dbpkg"
	"github.com/go-petr/carmarket-wallet/pkg/randompkg"
	"github.com/rs/zerolog"
)

// SetupServer returns test server that cleans up database after each integration test.
//
// Published events are kept by the returned recorder.
func SetupServer(t *testing.T) (*httpserver.Server, *test.Recorder) {
	t.Helper()

	config, err := configpkg.Load("../../configs")
	if err != nil {
		t.Fatalf(`configpkg.Load("../../configs") returned error: %v`, err)
	}

	zerolog.SetGlobalLevel(zerolog.FatalLevel)

	logger := middleware.CreateLogger(config)

	db := SetupDB(t, config.DBDriver, config.DBSource)

	gin.SetMode(gin.ReleaseMode)

	rec := &test.Recorder{}

	server, err := httpserver.New(db, logger, config, rec)
	if err != nil {
		t.Fatalf(`httpserver.New(db, logger, config, rec) returned error: %v`, err)
	}

	return server, rec
}

// Flush flushes all db tables without droping.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	var tables string

	const query = `
	SELECT string_agg(table_name, ', ')
	FROM information_schema.tables
	WHERE table_schema='public' AND table_type='BASE TABLE' AND table_name <> 'schema_migrations';`

	row := db.QueryRow(query)

	err := row.Scan(&tables)
	if err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}

	// Truncate skips row triggers, so append-only entries can be cleared.
	if _, err := db.Exec(`TRUNCATE TABLE ` + tables + " RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupDB sets up connection with database for testing and then cleans it.
func SetupDB(t *testing.T, driver, source string) *sql.DB {
	t.Helper()

	db, err := dbpkg.Setup(driver, source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	t.Cleanup(func() {
		Flush(t, db)

		if err := db.Close(); err != nil {
			t.Fatalf("db cleanup failed. err: %v", err)
		}
	})

	return db
}

// SetupTX sets up a database transaction to be used in tests.
//
// Once the tests are done it will rollback the transaction.
func SetupTX(t *testing.T, driver, source string) *sql.Tx {
	t.Helper()

	db, err := dbpkg.Setup(driver, source)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil {
			t.Fatalf("tx.Rollback() failed: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() failed: %v", err)
		}
	})

	return tx
}

// SeedAccount opens an account for owner and funds it with a deposit of balance.
func SeedAccount(t *testing.T, s *httpserver.Server, owner, currency, balance string) domain.Account {
	t.Helper()

	ctx := context.Background()

	account, err := s.Ledger.OpenAccount(ctx, owner, currency)
	if err != nil {
		t.Fatalf("OpenAccount(%v, %v) returned error: %v", owner, currency, err)
	}

	if balance == "0" {
		return account
	}

	res, err := s.Ledger.Credit(ctx, domain.CreditParams{
		AccountID: account.ID,
		Amount:    balance,
		Currency:  currency,
		Reference: randompkg.Reference("seed"),
	})
	if err != nil {
		t.Fatalf("Credit(%v) returned error: %v", balance, err)
	}

	return res.Account
}

// SeedAuction creates a car and its active auction sold by the seller account.
func SeedAuction(t *testing.T, s *httpserver.Server, seller domain.Account, startingPrice string) domain.Auction {
	t.Helper()

	ctx := context.Background()

	var carID int64

	err := s.DB.QueryRowContext(ctx, `INSERT INTO cars (title) VALUES ($1) RETURNING id`, randompkg.Reference("car")).Scan(&carID)
	if err != nil {
		t.Fatalf("insert car returned error: %v", err)
	}

	var auctionID int64

	const query = `
	INSERT INTO auctions (car_id, seller_account_id, title, status, starting_price, currency)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	err = s.DB.QueryRowContext(ctx, query, carID, seller.ID, "auction", domain.AuctionActive, startingPrice, seller.Currency).
		Scan(&auctionID)
	if err != nil {
		t.Fatalf("insert auction returned error: %v", err)
	}

	auction, err := auctionrepo.NewRepoPGS(s.DB).Get(ctx, auctionID)
	if err != nil {
		t.Fatalf("auctionrepo.Get(%v) returned error: %v", auctionID, err)
	}

	return auction
}

// CarStatus returns the status of the car.
func CarStatus(t *testing.T, s *httpserver.Server, carID int64) string {
	t.Helper()

	var status string
	if err := s.DB.QueryRow(`SELECT status FROM cars WHERE id = $1`, carID).Scan(&status); err != nil {
		t.Fatalf("select car status returned error: %v", err)
	}

	return status
}
