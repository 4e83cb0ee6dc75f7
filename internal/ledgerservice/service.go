// Package ledgerservice manages business logic layer of the wallet ledger.
//
// Every balance change is recorded as an entry and applied under the row lock of the
// account, inside one database transaction. Callers that compose several balance changes
// (escrow, settlement, auctions) use the exported tx-scoped building blocks within their
// own ledgerstore.Store.ExecTx call.
package ledgerservice

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/ledgerstore"
	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/go-petr/carmarket-wallet/pkg/errorspkg"
	"github.com/go-petr/carmarket-wallet/pkg/metricspkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Publisher delivers ledger events after the transaction that produced them committed.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// Service facilitates ledger service layer logic.
type Service struct {
	store *ledgerstore.Store
	pub   Publisher
}

// New returns ledger service struct to manage ledger business logic.
func New(store *ledgerstore.Store, pub Publisher) *Service {
	return &Service{
		store: store,
		pub:   pub,
	}
}

// Store returns the ledger store the service runs on.
func (s *Service) Store() *ledgerstore.Store {
	return s.store
}

// Publish forwards committed events to the publisher.
func (s *Service) Publish(ctx context.Context, events ...domain.Event) {
	if len(events) == 0 {
		return
	}

	s.pub.Publish(ctx, events...)
}

// RunTx runs fn in a ledger transaction.
//
// A duplicate reference reported by the store means a concurrent request with the same
// reference committed first; fn runs once more so that it observes the committed entry
// and reports a replay.
func (s *Service) RunTx(ctx context.Context, fn func(q *ledgerstore.Queries) error) error {
	err := s.store.ExecTx(ctx, fn)
	if errors.Is(err, domain.ErrDuplicateReference) {
		zerolog.Ctx(ctx).Debug().Msg("reference committed concurrently, re-reading")
		err = s.store.ExecTx(ctx, fn)
	}

	return err
}

// Outcome returns the metrics outcome label of an operation result.
func Outcome(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return metricspkg.OutcomeReplayed
	case err == nil:
		return metricspkg.OutcomeOK
	case domain.ErrorKind(err) == errorspkg.KindInternal, errors.Is(err, domain.ErrTransient):
		return metricspkg.OutcomeFailed
	default:
		return metricspkg.OutcomeRejected
	}
}

// LockAccounts locks the accounts in ascending id order and returns them by id.
//
// Halted accounts refuse every mutation with domain.ErrDataIntegrityViolation.
func (s *Service) LockAccounts(ctx context.Context, q *ledgerstore.Queries, ids ...int64) (map[int64]domain.Account, error) {
	sorted := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))

	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	accounts := make(map[int64]domain.Account, len(sorted))

	for _, id := range sorted {
		a, err := q.Accounts.Lock(ctx, id)
		if err != nil {
			return nil, err
		}

		if a.Halted {
			zerolog.Ctx(ctx).Warn().Int64("account_id", id).Msg("mutation refused on halted account")
			return nil, domain.ErrDataIntegrityViolation
		}

		accounts[id] = a
	}

	return accounts, nil
}

// Available returns the part of the account balance not reserved by active holds.
//
// The caller must hold the account row lock for the result to stay valid.
func (s *Service) Available(ctx context.Context, q *ledgerstore.Queries, a domain.Account, now time.Time) (decimal.Decimal, error) {
	frozen, err := q.Holds.SumActive(ctx, a.ID, now)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return a.Balance.Sub(frozen), nil
}

// Leg is one applied balance change.
type Leg struct {
	Entry    domain.Entry
	Account  domain.Account
	Replayed bool
}

// replayOf looks up an earlier entry recorded under arg's reference.
func replayOf(ctx context.Context, q *ledgerstore.Queries, a domain.Account, arg domain.CreateEntryParams) (Leg, bool, error) {
	e, err := q.Entries.GetByReference(ctx, arg.AccountID, arg.Reference)
	if errors.Is(err, domain.ErrEntryNotFound) {
		return Leg{}, false, nil
	}

	if err != nil {
		return Leg{}, false, err
	}

	if !e.Matches(arg) {
		zerolog.Ctx(ctx).Info().
			Int64("account_id", arg.AccountID).
			Str("reference", arg.Reference).
			Msg("reference reused with different parameters")

		return Leg{}, false, domain.ErrReferenceConflict
	}

	return Leg{Entry: e, Account: a, Replayed: true}, true, nil
}

func checkAccount(a domain.Account, arg domain.CreateEntryParams) error {
	if a.ID != arg.AccountID {
		return domain.ErrAccountNotFound
	}

	if a.Currency != arg.Currency {
		return domain.ErrCurrencyMismatch
	}

	return nil
}

// ApplyCredit records arg as a credit of the locked account a and raises its balance.
//
// arg.Amount is the positive credited amount. A credit already recorded under the same
// reference is returned as a replay.
func (s *Service) ApplyCredit(ctx context.Context, q *ledgerstore.Queries, a domain.Account, arg domain.CreateEntryParams) (Leg, error) {
	if err := checkAccount(a, arg); err != nil {
		return Leg{}, err
	}

	if !arg.Amount.IsPositive() {
		return Leg{}, domain.ErrInvalidAmount
	}

	if leg, ok, err := replayOf(ctx, q, a, arg); ok || err != nil {
		return leg, err
	}

	return apply(ctx, q, arg)
}

// ApplyDebit records arg as a debit of the locked account a and lowers its balance.
//
// arg.Amount is the positive debited amount; the entry stores it negated. The debit fails
// with domain.ErrInsufficientFunds when the available balance at now is lower than the amount.
func (s *Service) ApplyDebit(ctx context.Context, q *ledgerstore.Queries, a domain.Account, arg domain.CreateEntryParams, now time.Time) (Leg, error) {
	if err := checkAccount(a, arg); err != nil {
		return Leg{}, err
	}

	if !arg.Amount.IsPositive() {
		return Leg{}, domain.ErrInvalidAmount
	}

	amount := arg.Amount
	arg.Amount = amount.Neg()

	if leg, ok, err := replayOf(ctx, q, a, arg); ok || err != nil {
		return leg, err
	}

	available, err := s.Available(ctx, q, a, now)
	if err != nil {
		return Leg{}, err
	}

	if available.LessThan(amount) {
		zerolog.Ctx(ctx).Info().
			Int64("account_id", a.ID).
			Str("available", available.String()).
			Str("amount", amount.String()).
			Msg("insufficient funds")

		return Leg{}, domain.ErrInsufficientFunds
	}

	return apply(ctx, q, arg)
}

func apply(ctx context.Context, q *ledgerstore.Queries, arg domain.CreateEntryParams) (Leg, error) {
	arg.Status = domain.EntryCompleted

	e, err := q.Entries.Create(ctx, arg)
	if err != nil {
		return Leg{}, err
	}

	a, err := q.Accounts.AddBalance(ctx, arg.AccountID, arg.Amount)
	if err != nil {
		return Leg{}, err
	}

	return Leg{Entry: e, Account: a}, nil
}

// Credit adds funds to the account.
func (s *Service) Credit(ctx context.Context, p domain.CreditParams) (domain.EntryResult, error) {
	started := time.Now()

	res, err := s.credit(ctx, p)
	metricspkg.ObserveOperation("credit", Outcome(err, res.Replayed), started)

	return res, err
}

func (s *Service) credit(ctx context.Context, p domain.CreditParams) (domain.EntryResult, error) {
	var res domain.EntryResult

	amount, err := p.Validate()
	if err != nil {
		return res, err
	}

	arg := domain.CreateEntryParams{
		AccountID:   p.AccountID,
		Amount:      amount,
		Currency:    p.Currency,
		Kind:        domain.KindDeposit,
		Reference:   p.Reference,
		Description: p.Description,
	}

	err = s.RunTx(ctx, func(q *ledgerstore.Queries) error {
		accounts, err := s.LockAccounts(ctx, q, p.AccountID)
		if err != nil {
			return err
		}

		leg, err := s.ApplyCredit(ctx, q, accounts[p.AccountID], arg)
		if err != nil {
			return err
		}

		res = domain.EntryResult{Entry: leg.Entry, Account: leg.Account, Replayed: leg.Replayed}

		return nil
	})
	if err != nil {
		return domain.EntryResult{}, err
	}

	if !res.Replayed {
		s.Publish(ctx, domain.BalanceChanged(res.Entry))
	}

	return res, nil
}

// Debit removes funds from the account.
func (s *Service) Debit(ctx context.Context, p domain.DebitParams) (domain.EntryResult, error) {
	started := time.Now()

	res, err := s.debit(ctx, p)
	metricspkg.ObserveOperation("debit", Outcome(err, res.Replayed), started)

	return res, err
}

func (s *Service) debit(ctx context.Context, p domain.DebitParams) (domain.EntryResult, error) {
	var res domain.EntryResult

	amount, err := p.Validate()
	if err != nil {
		return res, err
	}

	arg := domain.CreateEntryParams{
		AccountID:   p.AccountID,
		Amount:      amount,
		Currency:    p.Currency,
		Kind:        domain.KindWithdrawal,
		Reference:   p.Reference,
		Description: p.Description,
	}

	err = s.RunTx(ctx, func(q *ledgerstore.Queries) error {
		accounts, err := s.LockAccounts(ctx, q, p.AccountID)
		if err != nil {
			return err
		}

		leg, err := s.ApplyDebit(ctx, q, accounts[p.AccountID], arg, time.Now())
		if err != nil {
			return err
		}

		res = domain.EntryResult{Entry: leg.Entry, Account: leg.Account, Replayed: leg.Replayed}

		return nil
	})
	if err != nil {
		return domain.EntryResult{}, err
	}

	if !res.Replayed {
		s.Publish(ctx, domain.BalanceChanged(res.Entry))
	}

	return res, nil
}

// Transfer moves funds between two accounts of the same currency.
//
// When owner is not empty the source account must belong to it.
func (s *Service) Transfer(ctx context.Context, owner string, p domain.TransferParams) (domain.TransferResult, error) {
	started := time.Now()

	res, err := s.transfer(ctx, owner, p)
	metricspkg.ObserveOperation("transfer", Outcome(err, res.Replayed), started)

	return res, err
}

func (s *Service) validTransfer(ctx context.Context, owner string, p domain.TransferParams) (decimal.Decimal, error) {
	l := zerolog.Ctx(ctx)

	amount, err := p.Validate()
	if err != nil {
		l.Info().Err(err).Send()
		return amount, err
	}

	fromAccount, err := s.store.Accounts.Get(ctx, p.FromAccountID)
	if err != nil {
		return amount, err
	}

	if owner != "" && fromAccount.Owner != owner {
		l.Info().Str("owner", owner).Int64("account_id", fromAccount.ID).Msg("transfer from foreign account")
		return amount, domain.ErrInvalidOwner
	}

	toAccount, err := s.store.Accounts.Get(ctx, p.ToAccountID)
	if err != nil {
		return amount, err
	}

	if fromAccount.Currency != p.Currency || toAccount.Currency != p.Currency {
		return amount, domain.ErrCurrencyMismatch
	}

	return amount, nil
}

func (s *Service) transfer(ctx context.Context, owner string, p domain.TransferParams) (domain.TransferResult, error) {
	var res domain.TransferResult

	amount, err := s.validTransfer(ctx, owner, p)
	if err != nil {
		return res, err
	}

	fromID, toID := p.FromAccountID, p.ToAccountID

	debitArg := domain.CreateEntryParams{
		AccountID:             fromID,
		CounterpartyAccountID: &toID,
		Amount:                amount,
		Currency:              p.Currency,
		Kind:                  domain.KindTransfer,
		Reference:             p.Reference,
		Description:           p.Description,
	}

	creditArg := debitArg
	creditArg.AccountID = toID
	creditArg.CounterpartyAccountID = &fromID

	err = s.RunTx(ctx, func(q *ledgerstore.Queries) error {
		accounts, err := s.LockAccounts(ctx, q, fromID, toID)
		if err != nil {
			return err
		}

		fromLeg, err := s.ApplyDebit(ctx, q, accounts[fromID], debitArg, time.Now())
		if err != nil {
			return err
		}

		toLeg, err := s.ApplyCredit(ctx, q, accounts[toID], creditArg)
		if err != nil {
			return err
		}

		if fromLeg.Replayed != toLeg.Replayed {
			return domain.ErrReferenceConflict
		}

		res = domain.TransferResult{
			FromEntry:   fromLeg.Entry,
			ToEntry:     toLeg.Entry,
			FromAccount: fromLeg.Account,
			ToAccount:   toLeg.Account,
			Replayed:    fromLeg.Replayed,
		}

		return nil
	})
	if err != nil {
		return domain.TransferResult{}, err
	}

	if !res.Replayed {
		s.Publish(ctx, domain.BalanceChanged(res.FromEntry), domain.BalanceChanged(res.ToEntry))
	}

	return res, nil
}

// Reconcile compares the account balance with the sum of its completed entries.
//
// On mismatch the account is halted and domain.ErrDataIntegrityViolation is returned.
// A halted account whose ledger matches again is resumed.
func (s *Service) Reconcile(ctx context.Context, accountID int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	var (
		account  domain.Account
		sum      decimal.Decimal
		mismatch bool
	)

	err := s.store.ExecTx(ctx, func(q *ledgerstore.Queries) error {
		a, err := q.Accounts.Lock(ctx, accountID)
		if err != nil {
			return err
		}

		sum, err = q.Entries.SumCompleted(ctx, accountID)
		if err != nil {
			return err
		}

		mismatch = !sum.Equal(a.Balance)

		if mismatch != a.Halted {
			a, err = q.Accounts.SetHalted(ctx, accountID, mismatch)
			if err != nil {
				return err
			}
		}

		account = a

		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	if mismatch {
		metricspkg.IntegrityViolation()
		l.Error().
			Bool("alert", true).
			Int64("account_id", accountID).
			Str("balance", account.Balance.String()).
			Str("entries_sum", sum.String()).
			Msg("ledger does not reconcile, account halted")

		return account, domain.ErrDataIntegrityViolation
	}

	return account, nil
}

// OpenAccount creates an empty account of the currency for the owner.
func (s *Service) OpenAccount(ctx context.Context, owner, currency string) (domain.Account, error) {
	if !currencypkg.IsSupportedCurrency(currency) {
		return domain.Account{}, domain.ErrUnsupportedCurrency
	}

	return s.store.Accounts.Create(ctx, owner, currency)
}

// ListAccounts returns the wallet accounts of the owner.
func (s *Service) ListAccounts(ctx context.Context, owner string) ([]domain.Account, error) {
	return s.store.Accounts.List(ctx, owner)
}

// GetAccount returns the account, checking ownership when owner is not empty.
func (s *Service) GetAccount(ctx context.Context, owner string, id int64) (domain.Account, error) {
	a, err := s.store.Accounts.Get(ctx, id)
	if err != nil {
		return a, err
	}

	if owner != "" && a.Owner != owner {
		return domain.Account{}, domain.ErrInvalidOwner
	}

	return a, nil
}

// GetBalance returns the total, available and frozen balance of the account.
func (s *Service) GetBalance(ctx context.Context, owner string, id int64) (domain.Balance, error) {
	if _, err := s.GetAccount(ctx, owner, id); err != nil {
		return domain.Balance{}, err
	}

	return s.store.Accounts.GetBalance(ctx, id, time.Now())
}

// ListEntries returns a page of the account entries, newest first.
func (s *Service) ListEntries(ctx context.Context, owner string, id int64, pageSize, pageID int32) ([]domain.Entry, error) {
	if _, err := s.GetAccount(ctx, owner, id); err != nil {
		return nil, err
	}

	limit := pageSize
	offset := (pageID - 1) * pageSize

	return s.store.Entries.List(ctx, id, limit, offset)
}
