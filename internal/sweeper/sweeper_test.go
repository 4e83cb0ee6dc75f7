package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"
)

const leaseTTL = 30 * time.Second

func TestRedisLeaseAcquire(t *testing.T) {
	testCases := []struct {
		name       string
		buildStubs func(mock redismock.ClientMock)
		wantOK     bool
		wantErr    bool
	}{
		{
			name: "Free",
			buildStubs: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(LeaseKey, "node-1", leaseTTL).SetVal(true)
			},
			wantOK: true,
		},
		{
			name: "HeldBySelfIsExtended",
			buildStubs: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(LeaseKey, "node-1", leaseTTL).SetVal(false)
				mock.ExpectGet(LeaseKey).SetVal("node-1")
				mock.ExpectExpire(LeaseKey, leaseTTL).SetVal(true)
			},
			wantOK: true,
		},
		{
			name: "HeldByOther",
			buildStubs: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(LeaseKey, "node-1", leaseTTL).SetVal(false)
				mock.ExpectGet(LeaseKey).SetVal("node-2")
			},
		},
		{
			name: "ExpiredBetweenCalls",
			buildStubs: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(LeaseKey, "node-1", leaseTTL).SetVal(false)
				mock.ExpectGet(LeaseKey).RedisNil()
			},
		},
		{
			name: "RedisDown",
			buildStubs: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(LeaseKey, "node-1", leaseTTL).SetErr(errors.New("dial tcp: connection refused"))
			},
			wantErr: true,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			tc.buildStubs(mock)

			ok, err := NewRedisLease(client, "node-1", leaseTTL).Acquire(context.Background())

			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.wantErr, err != nil)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisLeaseWithoutClient(t *testing.T) {
	ok, err := NewRedisLease(nil, "node-1", leaseTTL).Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

type fakeExpirer struct {
	mu      sync.Mutex
	batches []int
	calls   int
	err     error
}

func (f *fakeExpirer) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls >= len(f.batches) {
		f.calls++
		return 0, f.err
	}

	n := f.batches[f.calls]
	f.calls++

	return n, nil
}

func (f *fakeExpirer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type staticLease struct {
	ok  bool
	err error
}

func (l staticLease) Acquire(context.Context) (bool, error) {
	return l.ok, l.err
}

func TestSweep(t *testing.T) {
	testCases := []struct {
		name      string
		expirer   *fakeExpirer
		lease     Lease
		wantN     int
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "DrainsFullBatches",
			expirer:   &fakeExpirer{batches: []int{10, 10, 3}},
			lease:     staticLease{ok: true},
			wantN:     23,
			wantCalls: 3,
		},
		{
			name:      "NothingDue",
			expirer:   &fakeExpirer{},
			lease:     staticLease{ok: true},
			wantCalls: 1,
		},
		{
			name:      "LeaseHeldElsewhere",
			expirer:   &fakeExpirer{batches: []int{10}},
			lease:     staticLease{ok: false},
			wantCalls: 0,
		},
		{
			name:      "LeaseError",
			expirer:   &fakeExpirer{batches: []int{10}},
			lease:     staticLease{err: errors.New("redis down")},
			wantCalls: 0,
			wantErr:   true,
		},
		{
			name:      "ExpirerErrorKeepsCount",
			expirer:   &fakeExpirer{batches: []int{10}, err: errors.New("transient")},
			lease:     staticLease{ok: true},
			wantN:     10,
			wantCalls: 2,
			wantErr:   true,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.expirer, tc.lease, time.Minute, 10)
			require.NoError(t, err)

			n, err := s.Sweep(context.Background())

			require.Equal(t, tc.wantN, n)
			require.Equal(t, tc.wantCalls, tc.expirer.Calls())
			require.Equal(t, tc.wantErr, err != nil)
		})
	}
}

func TestNewRejectsNonPositiveSettings(t *testing.T) {
	testCases := []struct {
		name     string
		interval time.Duration
		batch    int
	}{
		{name: "ZeroBatch", interval: time.Minute, batch: 0},
		{name: "NegativeBatch", interval: time.Minute, batch: -1},
		{name: "ZeroInterval", interval: 0, batch: 10},
		{name: "NegativeInterval", interval: -time.Second, batch: 10},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			s, err := New(&fakeExpirer{}, staticLease{ok: true}, tc.interval, tc.batch)
			require.ErrorIs(t, err, ErrInvalidSettings)
			require.Nil(t, s)
		})
	}
}

func TestRunStopsWithContext(t *testing.T) {
	expirer := &fakeExpirer{}
	s, err := New(expirer, staticLease{ok: true}, 5*time.Millisecond, 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return expirer.Calls() >= 2 }, time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
