package txtrack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// fakeTx records what happened to it and observes the slot while the
// backend operation runs.
type fakeTx struct {
	ctx         context.Context
	commitErr   error
	rollbackErr error
	committed   bool
	rolledBack  bool
	seenOnRB    Token
	seenOnRBOK  bool
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.seenOnRB, tx.seenOnRBOK = CurrentToken(tx.ctx)
	tx.rolledBack = true
	return tx.rollbackErr
}

type fakeBackend struct {
	mu       sync.Mutex
	beginErr error
	txs      []*fakeTx
	next     *fakeTx
}

func (b *fakeBackend) Begin(ctx context.Context, _ Definition) (context.Context, Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.beginErr != nil {
		return nil, nil, b.beginErr
	}
	tx := b.next
	if tx == nil {
		tx = &fakeTx{}
	}
	b.next = nil
	tx.ctx = ctx
	b.txs = append(b.txs, tx)
	return ctx, tx, nil
}

func TestTracker_BeginCommit(t *testing.T) {
	sink := &recordingSink{}
	backend := &fakeBackend{}
	tr := New(backend, WithSink(sink), WithName("orders"))

	txCtx, st, err := tr.Begin(context.Background(), Definition{})
	require.NoError(t, err)

	t0, ok := CurrentToken(txCtx)
	require.True(t, ok)
	require.Regexp(t, `^transaction-[0-9a-f-]{36}$`, t0.String())

	require.NoError(t, tr.Commit(txCtx, st))

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, KindBegin, events[0].Kind)
	assert.Equal(t, t0, events[0].Token)
	assert.Equal(t, KindCommit, events[1].Kind)
	assert.Equal(t, t0, events[1].Token, "commit must report the begin token")
	assert.Equal(t, "orders", events[1].Target)

	t1, ok := CurrentToken(txCtx)
	require.True(t, ok, "slot stays observable after commit")
	assert.NotEqual(t, t0, t1)
	assert.Equal(t, t0, t1.Base())
	assert.True(t, backend.txs[0].committed)

	// a later transaction gets a brand new token
	txCtx2, st2, err := tr.Begin(context.Background(), Definition{})
	require.NoError(t, err)
	t2, _ := CurrentToken(txCtx2)
	assert.NotEqual(t, t0, t2)
	assert.NotEqual(t, t1, t2)
	require.NoError(t, tr.Commit(txCtx2, st2))
}

func TestTracker_BeginRollback(t *testing.T) {
	sink := &recordingSink{}
	backend := &fakeBackend{}
	tr := New(backend, WithSink(sink))

	txCtx, st, err := tr.Begin(context.Background(), Definition{})
	require.NoError(t, err)
	t0, _ := CurrentToken(txCtx)

	require.NoError(t, tr.Rollback(txCtx, st))

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, KindRollback, events[1].Kind)
	assert.Equal(t, t0, events[1].Token)

	_, ok := CurrentToken(txCtx)
	assert.False(t, ok)
	assert.False(t, backend.txs[0].seenOnRBOK, "backend rollback must run with an empty slot")
}

func TestTracker_RollbackFailureStillEmptiesSlot(t *testing.T) {
	rbErr := errors.New("connection reset")
	backend := &fakeBackend{next: &fakeTx{rollbackErr: rbErr}}
	tr := New(backend)

	txCtx, st, err := tr.Begin(context.Background(), Definition{})
	require.NoError(t, err)

	err = tr.Rollback(txCtx, st)
	require.ErrorIs(t, err, rbErr)

	_, ok := CurrentToken(txCtx)
	assert.False(t, ok)
}

func TestTracker_CommitFailureKeepsToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	tx := NewMockTx(ctrl)
	commitErr := errors.New("deadlock detected")

	backend.EXPECT().Begin(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ Definition) (context.Context, Tx, error) {
			return ctx, tx, nil
		})
	tx.EXPECT().Commit(gomock.Any()).Return(commitErr)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	tr := New(backend)
	txCtx, st, err := tr.Begin(context.Background(), Definition{})
	require.NoError(t, err)
	t0, _ := CurrentToken(txCtx)

	err = tr.Commit(txCtx, st)
	require.Same(t, commitErr, err, "backend error must propagate unchanged")

	got, ok := CurrentToken(txCtx)
	require.True(t, ok)
	assert.Equal(t, t0, got, "failed commit must not change the slot")

	// a failed commit can still be rolled back
	require.NoError(t, tr.Rollback(txCtx, st))
	_, ok = CurrentToken(txCtx)
	assert.False(t, ok)
}

func TestTracker_BeginFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)
	beginErr := errors.New("too many connections")

	var seen Token
	backend.EXPECT().Begin(gomock.Any(), Definition{ReadOnly: true}).
		DoAndReturn(func(ctx context.Context, _ Definition) (context.Context, Tx, error) {
			seen, _ = CurrentToken(ctx)
			return nil, nil, beginErr
		})

	sink := &recordingSink{}
	tr := New(backend, WithSink(sink))
	ctx := context.Background()

	gotCtx, st, err := tr.Begin(ctx, Definition{ReadOnly: true})
	require.Same(t, beginErr, err)
	assert.Nil(t, st)
	assert.Equal(t, ctx, gotCtx)
	assert.NotEmpty(t, seen, "backend sees the token already installed")

	_, ok := CurrentToken(gotCtx)
	assert.False(t, ok)
	require.Len(t, sink.all(), 1)
}

func TestTracker_BeginNilTx(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockBackend(ctrl)

	var slotCtx context.Context
	backend.EXPECT().Begin(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ Definition) (context.Context, Tx, error) {
			slotCtx = ctx
			return ctx, nil, nil
		})

	tr := New(backend)
	ctx := context.Background()

	gotCtx, st, err := tr.Begin(ctx, Definition{})
	require.ErrorIs(t, err, ErrNilTx)
	assert.Nil(t, st)
	assert.Equal(t, ctx, gotCtx)

	_, ok := CurrentToken(slotCtx)
	assert.False(t, ok, "slot must be emptied when the backend returns no Tx")
}

func TestTracker_StatusReuse(t *testing.T) {
	tr := New(&fakeBackend{})

	require.ErrorIs(t, tr.Commit(context.Background(), nil), ErrNilStatus)
	require.ErrorIs(t, tr.Rollback(context.Background(), nil), ErrNilStatus)

	txCtx, st, err := tr.Begin(context.Background(), Definition{})
	require.NoError(t, err)
	require.NoError(t, tr.Commit(txCtx, st))

	require.ErrorIs(t, tr.Commit(txCtx, st), ErrTxDone)
	require.ErrorIs(t, tr.Rollback(txCtx, st), ErrTxDone)

	_, ok := CurrentToken(txCtx)
	assert.True(t, ok, "rejected rollback must leave the committed token alone")
}

func TestTracker_FailingSink(t *testing.T) {
	sinks := map[string]Sink{
		"error": SinkFunc(func(context.Context, Event) error { return errors.New("sink down") }),
		"panic": SinkFunc(func(context.Context, Event) error { panic("sink exploded") }),
	}

	for name, sink := range sinks {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{}
			tr := New(backend, WithSink(sink), WithLogger(log.DefaultLogger))

			txCtx, st, err := tr.Begin(context.Background(), Definition{})
			require.NoError(t, err)
			t0, ok := CurrentToken(txCtx)
			require.True(t, ok)

			require.NoError(t, tr.Commit(txCtx, st))
			t1, ok := CurrentToken(txCtx)
			require.True(t, ok)
			assert.Equal(t, t0.next(), t1)

			txCtx, st, err = tr.Begin(context.Background(), Definition{})
			require.NoError(t, err)
			require.NoError(t, tr.Rollback(txCtx, st))
			_, ok = CurrentToken(txCtx)
			assert.False(t, ok)
			assert.True(t, backend.txs[1].rolledBack)
		})
	}
}

func TestTracker_ConcurrentIsolation(t *testing.T) {
	tr := New(&fakeBackend{})

	const workers = 32
	tokens := make([]Token, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			txCtx, st, err := tr.Begin(context.Background(), Definition{})
			if err != nil {
				t.Error(err)
				return
			}
			mine, _ := CurrentToken(txCtx)
			tokens[i] = mine
			time.Sleep(time.Millisecond)
			if got, _ := CurrentToken(txCtx); got != mine {
				t.Errorf("worker %d observed %s, want %s", i, got, mine)
			}
			if i%2 == 0 {
				_ = tr.Commit(txCtx, st)
			} else {
				_ = tr.Rollback(txCtx, st)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[Token]struct{}, workers)
	for _, token := range tokens {
		_, dup := seen[token]
		require.False(t, dup, "token %s observed twice", token)
		seen[token] = struct{}{}
	}
}

func TestTracker_EventTime(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink := &recordingSink{}
	tr := New(&fakeBackend{}, WithSink(sink), WithClock(func() time.Time { return at }))

	_, _, err := tr.Begin(context.Background(), Definition{})
	require.NoError(t, err)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, at, events[0].Time)
	assert.Equal(t, DefaultName, events[0].Target)
}
