package entryrepo

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/test"
	"github.com/go-petr/carmarket-wallet/pkg/currencypkg"
	"github.com/go-petr/carmarket-wallet/pkg/errorspkg"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*RepoPGS, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return NewRepoPGS(db), mock
}

func TestCreate(t *testing.T) {
	counterparty := int64(9)

	arg := domain.CreateEntryParams{
		AccountID:             4,
		CounterpartyAccountID: &counterparty,
		Amount:                decimal.RequireFromString("-12.50"),
		Currency:              currencypkg.USD,
		Kind:                  domain.KindTransfer,
		Reference:             "order-1",
		Description:           "car deposit",
	}

	expect := func(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
		return mock.ExpectQuery(regexp.QuoteMeta(createQuery)).
			WithArgs(arg.AccountID, arg.CounterpartyAccountID, arg.Amount, arg.Currency,
				arg.Kind, domain.EntryCompleted, arg.Reference, arg.Description)
	}

	testCases := []struct {
		name       string
		buildStubs func(mock sqlmock.Sqlmock)
		wantErr    error
	}{
		{
			name: "OK",
			buildStubs: func(mock sqlmock.Sqlmock) {
				expect(mock).WillReturnRows(test.EntryRows(test.EntryFor(1, arg)))
			},
		},
		{
			name: "ErrDuplicateReference",
			buildStubs: func(mock sqlmock.Sqlmock) {
				expect(mock).WillReturnError(&pq.Error{Code: "23505", Constraint: "entries_account_id_reference_key"})
			},
			wantErr: domain.ErrDuplicateReference,
		},
		{
			name: "ErrAccountNotFound",
			buildStubs: func(mock sqlmock.Sqlmock) {
				expect(mock).WillReturnError(&pq.Error{Code: "23503", Constraint: "entries_account_id_fkey"})
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "AmountOutOfRange",
			buildStubs: func(mock sqlmock.Sqlmock) {
				expect(mock).WillReturnError(&pq.Error{Code: "22003", Message: "numeric field overflow"})
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "ErrInternal",
			buildStubs: func(mock sqlmock.Sqlmock) {
				expect(mock).WillReturnError(sql.ErrConnDone)
			},
			wantErr: errorspkg.ErrInternal,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tc.buildStubs(mock)

			got, err := repo.Create(context.Background(), arg)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)

			want := test.EntryFor(1, arg)
			ignoreFields := cmpopts.IgnoreFields(domain.Entry{}, "CreatedAt")
			if diff := cmp.Diff(want, got, ignoreFields); diff != "" {
				t.Errorf("repo.Create(%+v) returned unexpected difference (-want +got):\n%s", arg, diff)
			}
		})
	}
}

func TestGetByReference(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		want := test.EntryFor(3, domain.CreateEntryParams{
			AccountID: 1,
			Amount:    decimal.RequireFromString("5"),
			Currency:  currencypkg.LYD,
			Kind:      domain.KindDeposit,
			Reference: "topup-1",
		})

		mock.ExpectQuery(regexp.QuoteMeta(getByReferenceQuery)).
			WithArgs(int64(1), "topup-1").
			WillReturnRows(test.EntryRows(want))

		got, err := repo.GetByReference(context.Background(), 1, "topup-1")
		require.NoError(t, err)
		require.Nil(t, got.CounterpartyAccountID)

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("repo.GetByReference() returned unexpected difference (-want +got):\n%s", diff)
		}
	})

	t.Run("ErrEntryNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(regexp.QuoteMeta(getByReferenceQuery)).
			WithArgs(int64(1), "missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByReference(context.Background(), 1, "missing")
		require.ErrorIs(t, err, domain.ErrEntryNotFound)
	})
}

func TestList(t *testing.T) {
	repo, mock := newMockRepo(t)

	entries := make([]domain.Entry, 3)
	for i := range entries {
		entries[i] = test.EntryFor(int64(3-i), domain.CreateEntryParams{
			AccountID: 2,
			Amount:    decimal.NewFromInt(int64(i + 1)),
			Currency:  currencypkg.USD,
			Kind:      domain.KindDeposit,
		})
	}

	mock.ExpectQuery(regexp.QuoteMeta(listQuery)).
		WithArgs(int64(2), int32(3), int32(0)).
		WillReturnRows(test.EntryRows(entries...))

	got, err := repo.List(context.Background(), 2, 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, int64(3), got[0].ID)
}

func TestSumCompleted(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(sumCompletedQuery)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("150.75"))

	got, err := repo.SumCompleted(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "150.75", got.String())
}
