package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrHoldNotFound indicates that the escrow hold is not found.
	ErrHoldNotFound = errors.New("escrow hold not found")
	// ErrHoldNotActive indicates that the escrow hold was already expired.
	ErrHoldNotActive = errors.New("escrow hold is not active")
	// ErrHoldNotDue indicates an expiry attempt before the hold ttl elapsed.
	ErrHoldNotDue = errors.New("escrow hold has not expired yet")
	// ErrInvalidTTL indicates a non-positive or too long hold ttl.
	ErrInvalidTTL = errors.New("invalid hold ttl")
)

// HoldStatus is the lifecycle state of an escrow hold.
type HoldStatus string

// Hold statuses.
const (
	HoldActive   HoldStatus = "ACTIVE"
	HoldReleased HoldStatus = "RELEASED"
	HoldExpired  HoldStatus = "EXPIRED"
)

// Hold reserves part of an account balance without moving it.
type Hold struct {
	ID        uuid.UUID       `json:"id"`
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Status    HoldStatus      `json:"status"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsActiveAt reports whether the hold still reserves funds at t.
func (h Hold) IsActiveAt(t time.Time) bool {
	return h.Status == HoldActive && h.ExpiresAt.After(t)
}

// CreateHoldParams is the input data to persist a hold.
type CreateHoldParams struct {
	ID        uuid.UUID
	AccountID int64
	Amount    decimal.Decimal
	Reference string
	ExpiresAt time.Time
}

// HoldParams is the input data of an escrow hold request.
//
// A zero TTL selects the configured default.
type HoldParams struct {
	AccountID int64         `json:"account_id"`
	Amount    string        `json:"amount"`
	Reference string        `json:"reference"`
	TTL       time.Duration `json:"-"`
}

// HoldResult is the result of a hold request.
type HoldResult struct {
	Hold     Hold `json:"hold"`
	Replayed bool `json:"replayed"`
}
