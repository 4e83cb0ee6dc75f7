package holdrepo

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-petr/carmarket-wallet/internal/domain"
	"github.com/go-petr/carmarket-wallet/internal/test"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/lib/pq"
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
	hold := test.RandomHold(5, "300", time.Hour)

	arg := domain.CreateHoldParams{
		ID:        hold.ID,
		AccountID: hold.AccountID,
		Amount:    hold.Amount,
		Reference: hold.Reference,
		ExpiresAt: hold.ExpiresAt,
	}

	testCases := []struct {
		name       string
		buildStubs func(mock sqlmock.Sqlmock)
		wantErr    error
	}{
		{
			name: "OK",
			buildStubs: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(createQuery)).
					WithArgs(arg.ID, arg.AccountID, arg.Amount, arg.Reference, arg.ExpiresAt).
					WillReturnRows(test.HoldRows(hold))
			},
		},
		{
			name: "ErrDuplicateReference",
			buildStubs: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(createQuery)).
					WithArgs(arg.ID, arg.AccountID, arg.Amount, arg.Reference, arg.ExpiresAt).
					WillReturnError(&pq.Error{Code: "23505", Constraint: "escrow_holds_active_reference_key"})
			},
			wantErr: domain.ErrDuplicateReference,
		},
		{
			name: "ErrAccountNotFound",
			buildStubs: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(createQuery)).
					WithArgs(arg.ID, arg.AccountID, arg.Amount, arg.Reference, arg.ExpiresAt).
					WillReturnError(&pq.Error{Code: "23503", Constraint: "escrow_holds_account_id_fkey"})
			},
			wantErr: domain.ErrAccountNotFound,
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

			if diff := cmp.Diff(hold, got); diff != "" {
				t.Errorf("repo.Create(%+v) returned unexpected difference (-want +got):\n%s", arg, diff)
			}
		})
	}
}

func TestLock(t *testing.T) {
	t.Run("ErrHoldNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Lock(context.Background(), id)
		require.ErrorIs(t, err, domain.ErrHoldNotFound)
	})

	t.Run("ActiveByReference", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		hold := test.RandomHold(5, "10", time.Hour)

		mock.ExpectQuery(regexp.QuoteMeta(lockActiveByReferenceQuery)).
			WithArgs(hold.AccountID, hold.Reference).
			WillReturnRows(test.HoldRows(hold))

		got, err := repo.LockActiveByReference(context.Background(), hold.AccountID, hold.Reference)
		require.NoError(t, err)
		require.Equal(t, hold.ID, got.ID)
	})
}

func TestSumActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(sumActiveQuery)).
		WithArgs(int64(5), now).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("400.00"))

	got, err := repo.SumActive(context.Background(), 5, now)
	require.NoError(t, err)
	require.Equal(t, "400", got.String())
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	hold := test.RandomHold(5, "10", time.Hour)
	hold.Status = domain.HoldReleased

	mock.ExpectQuery(regexp.QuoteMeta(updateStatusQuery)).
		WithArgs(domain.HoldReleased, hold.ID).
		WillReturnRows(test.HoldRows(hold))

	got, err := repo.UpdateStatus(context.Background(), hold.ID, domain.HoldReleased)
	require.NoError(t, err)
	require.Equal(t, domain.HoldReleased, got.Status)
}

func TestListDue(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	h1 := test.RandomHold(1, "5", -time.Hour)
	h2 := test.RandomHold(2, "7", -time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(listDueQuery)).
		WithArgs(now, 10).
		WillReturnRows(test.HoldRows(h1, h2))

	got, err := repo.ListDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, h2.ID, got[1].ID)
}
