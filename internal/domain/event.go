package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names a ledger notification.
type EventKind string

// Event kinds.
const (
	EventBalanceChanged      EventKind = "BalanceChanged"
	EventSettlementCompleted EventKind = "SettlementCompleted"
)

// Event is emitted after a mutating operation commits.
type Event struct {
	Kind       EventKind       `json:"kind"`
	AccountID  int64           `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reference  string          `json:"reference"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// BalanceChanged builds the event for a committed entry.
func BalanceChanged(e Entry) Event {
	return Event{
		Kind:       EventBalanceChanged,
		AccountID:  e.AccountID,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Reference:  e.Reference,
		OccurredAt: e.CreatedAt,
	}
}

// SettlementCompleted builds the settlement event for one committed settlement leg.
func SettlementCompleted(e Entry) Event {
	ev := BalanceChanged(e)
	ev.Kind = EventSettlementCompleted

	return ev
}
