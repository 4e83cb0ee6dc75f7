// Package auctionrepo manages repository layer of auctions and bids.
package auctionrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/pkg/dbpkg"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates auction repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns auction RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const auctionColumns = `id, car_id, seller_account_id, title, status, starting_price, currency,
	end_date, settled_reference, status_reason, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (domain.Auction, error) {
	var (
		a          domain.Auction
		endDate    sql.NullTime
		settledRef sql.NullString
	)

	err := row.Scan(
		&a.ID,
		&a.CarID,
		&a.SellerAccountID,
		&a.Title,
		&a.Status,
		&a.StartingPrice,
		&a.Currency,
		&endDate,
		&settledRef,
		&a.StatusReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if endDate.Valid {
		a.EndDate = &endDate.Time
	}

	if settledRef.Valid {
		a.SettledReference = &settledRef.String
	}

	return a, err
}

func (r *RepoPGS) one(ctx context.Context, query string, args ...any) (domain.Auction, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAuction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAuctionNotFound
		}

		l.Error().Err(err).Send()

		return a, dbpkg.Unexpected(err)
	}

	return a, nil
}

const getQuery = `
SELECT ` + auctionColumns + `
FROM auctions
WHERE id = $1
`

// Get returns the auction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Auction, error) {
	return r.one(ctx, getQuery, id)
}

const lockQuery = `
SELECT ` + auctionColumns + `
FROM auctions
WHERE id = $1
FOR UPDATE
`

// Lock returns the auction and holds its row lock until the transaction ends.
func (r *RepoPGS) Lock(ctx context.Context, id int64) (domain.Auction, error) {
	return r.one(ctx, lockQuery, id)
}

const updateStatusQuery = `
UPDATE auctions
SET status = $1, status_reason = $2, end_date = COALESCE($3, end_date), updated_at = now()
WHERE id = $4
RETURNING ` + auctionColumns

// UpdateStatus changes the auction status and returns the changed auction.
func (r *RepoPGS) UpdateStatus(ctx context.Context, arg domain.UpdateAuctionStatusParams) (domain.Auction, error) {
	return r.one(ctx, updateStatusQuery, arg.Status, arg.Reason, arg.EndDate, arg.ID)
}

const markSettledQuery = `
UPDATE auctions
SET status = 'ENDED', settled_reference = $1, end_date = COALESCE(end_date, now()), updated_at = now()
WHERE id = $2
RETURNING ` + auctionColumns

// MarkSettled closes the auction with the settlement reference that paid for it.
func (r *RepoPGS) MarkSettled(ctx context.Context, id int64, reference string) (domain.Auction, error) {
	return r.one(ctx, markSettledQuery, reference, id)
}

const markCarSoldQuery = `
UPDATE cars
SET status = $1, updated_at = now()
WHERE id = $2
`

// MarkCarSold marks the car of an auction as sold.
func (r *RepoPGS) MarkCarSold(ctx context.Context, carID int64) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, markCarSoldQuery, domain.CarSold, carID)
	if err != nil {
		l.Error().Err(err).Send()
		return dbpkg.Unexpected(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return dbpkg.Unexpected(err)
	}

	if n == 0 {
		return domain.ErrAuctionNotFound
	}

	return nil
}

const bidColumns = `id, auction_id, bidder_account_id, amount, reference, hold_id, created_at`

func scanBid(row scanner) (domain.Bid, error) {
	var b domain.Bid

	err := row.Scan(
		&b.ID,
		&b.AuctionID,
		&b.BidderAccountID,
		&b.Amount,
		&b.Reference,
		&b.HoldID,
		&b.CreatedAt,
	)

	return b, err
}

func (r *RepoPGS) oneBid(ctx context.Context, query string, args ...any) (domain.Bid, error) {
	l := zerolog.Ctx(ctx)

	b, err := scanBid(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, domain.ErrBidNotFound
		}

		l.Error().Err(err).Send()

		return b, dbpkg.Unexpected(err)
	}

	return b, nil
}

const createBidQuery = `
INSERT INTO
    bids (auction_id, bidder_account_id, amount, reference, hold_id)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING ` + bidColumns

// CreateBid persists the bid and then returns it.
func (r *RepoPGS) CreateBid(ctx context.Context, arg domain.CreateBidParams) (domain.Bid, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createBidQuery,
		arg.AuctionID,
		arg.BidderAccountID,
		arg.Amount,
		arg.Reference,
		arg.HoldID,
	)

	b, err := scanBid(row)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "bids_auction_id_reference_key") {
			return b, domain.ErrDuplicateReference
		}

		switch dbpkg.ConstraintOf(err) {
		case "bids_auction_id_fkey":
			return b, domain.ErrAuctionNotFound
		case "bids_bidder_account_id_fkey":
			return b, domain.ErrAccountNotFound
		case "bids_amount_check":
			return b, domain.ErrInvalidAmount
		}

		l.Error().Err(err).Msgf("CreateBid(ctx context.Context, %+v)", arg)

		return b, dbpkg.Unexpected(err)
	}

	return b, nil
}

const leadingBidQuery = `
SELECT ` + bidColumns + `
FROM bids
WHERE auction_id = $1
ORDER BY amount DESC, id
LIMIT 1
`

// LeadingBid returns the highest bid of the auction.
func (r *RepoPGS) LeadingBid(ctx context.Context, auctionID int64) (domain.Bid, error) {
	return r.oneBid(ctx, leadingBidQuery, auctionID)
}

const getBidByReferenceQuery = `
SELECT ` + bidColumns + `
FROM bids
WHERE auction_id = $1 AND reference = $2
`

// GetBidByReference returns the bid placed on the auction under the reference.
func (r *RepoPGS) GetBidByReference(ctx context.Context, auctionID int64, reference string) (domain.Bid, error) {
	return r.oneBid(ctx, getBidByReferenceQuery, auctionID, reference)
}
