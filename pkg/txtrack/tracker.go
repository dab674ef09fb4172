package txtrack

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// DefaultName is the Target reported in events when no name is configured.
const DefaultName = "txtrack.Tracker"

var (
	// ErrNilStatus is returned by Commit and Rollback for a nil status.
	ErrNilStatus = errors.New("txtrack: nil transaction status")
	// ErrTxDone is returned when a status was already committed or rolled back.
	ErrTxDone = errors.New("txtrack: transaction has already been committed or rolled back")
	// ErrNilTx is returned by Begin when the backend reports success without
	// a transaction.
	ErrNilTx = errors.New("txtrack: backend returned nil Tx")
)

// Propagation controls how InTxWith treats an already active transaction.
type Propagation int

const (
	// PropagationRequired joins the active transaction when there is one.
	PropagationRequired Propagation = iota
	// PropagationRequiresNew always begins a new transaction.
	PropagationRequiresNew
)

// Definition describes the transaction to begin. Apart from Propagation it
// is passed through to the backend untouched.
type Definition struct {
	Isolation   sql.IsolationLevel
	ReadOnly    bool
	Timeout     time.Duration
	Propagation Propagation
}

// Backend is the relational transaction implementation a Tracker wraps.
// Begin returns a context the transaction's work must run with and a non-nil
// Tx unless it fails.
type Backend interface {
	Begin(ctx context.Context, def Definition) (context.Context, Tx, error)
}

// Tx is a transaction started by a Backend.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Status is the handle returned by Begin and consumed by Commit or Rollback.
type Status struct {
	ctx  context.Context
	tx   Tx
	slot *Slot
	def  Definition
	done atomic.Bool
}

// Context returns the context the transaction's work must run with.
func (s *Status) Context() context.Context { return s.ctx }

// Token returns the token currently held by the transaction's slot.
func (s *Status) Token() (Token, bool) { return s.slot.Get() }

// Definition returns the definition the transaction was started with.
func (s *Status) Definition() Definition { return s.def }

// Tx returns the backend transaction.
func (s *Status) Tx() Tx { return s.tx }

// Option is a Tracker option.
type Option func(*Tracker)

// WithName sets the Target reported in events.
func WithName(name string) Option {
	return func(t *Tracker) { t.name = name }
}

// WithSink sets the event sink.
func WithSink(s Sink) Option {
	return func(t *Tracker) { t.sink = s }
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(logger log.Logger) Option {
	return func(t *Tracker) { t.log = log.NewHelper(log.With(logger, "module", "pkg/txtrack")) }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker decorates a Backend with token minting, event emission and slot
// lifecycle management.
type Tracker struct {
	backend Backend
	sink    Sink
	name    string
	log     *log.Helper
	now     func() time.Time
}

// New creates a Tracker around backend.
func New(backend Backend, opts ...Option) *Tracker {
	t := &Tracker{
		backend: backend,
		sink:    nopSink{},
		name:    DefaultName,
		log:     log.NewHelper(log.With(log.DefaultLogger, "module", "pkg/txtrack")),
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	if t.sink == nil {
		t.sink = nopSink{}
	}
	return t
}

// Begin mints a token, emits a begin event, installs the token in a new slot
// and delegates to the backend. The returned context carries both the slot and
// whatever the backend attached to it. A backend failure is returned as is and
// ctx is left without a token.
func (t *Tracker) Begin(ctx context.Context, def Definition) (context.Context, *Status, error) {
	token := NewToken()
	t.emit(ctx, KindBegin, token)

	slot := &Slot{}
	slot.Set(token)
	slotCtx := WithSlot(ctx, slot)

	txCtx, tx, err := t.backend.Begin(slotCtx, def)
	if err != nil {
		slot.Remove()
		return ctx, nil, err
	}
	if tx == nil {
		slot.Remove()
		return ctx, nil, ErrNilTx
	}
	if txCtx == nil {
		txCtx = slotCtx
	}
	return txCtx, &Status{ctx: txCtx, tx: tx, slot: slot, def: def}, nil
}

// Commit emits a commit event with the token held before delegation and
// commits the backend transaction. Only a successful commit changes the slot;
// on failure it keeps the pre-commit token and the status may still be
// rolled back.
func (t *Tracker) Commit(ctx context.Context, st *Status) error {
	if st == nil {
		return ErrNilStatus
	}
	if !st.done.CompareAndSwap(false, true) {
		return ErrTxDone
	}

	token, _ := st.slot.Get()
	t.emit(ctx, KindCommit, token)

	if err := st.tx.Commit(ctx); err != nil {
		st.done.Store(false)
		return err
	}
	st.slot.Change()
	return nil
}

// Rollback emits a rollback event, empties the slot and then rolls the
// backend transaction back. The slot is empty on return whatever the backend
// reported.
func (t *Tracker) Rollback(ctx context.Context, st *Status) error {
	if st == nil {
		return ErrNilStatus
	}
	if !st.done.CompareAndSwap(false, true) {
		return ErrTxDone
	}

	token, _ := st.slot.Get()
	t.emit(ctx, KindRollback, token)

	st.slot.Remove()
	return st.tx.Rollback(ctx)
}

func (t *Tracker) emit(ctx context.Context, kind Kind, token Token) {
	ev := Event{Kind: kind, Token: token, Target: t.name, Time: t.now()}
	defer func() {
		if r := recover(); r != nil {
			t.log.WithContext(ctx).Warnf("%s event sink panicked, token=%s: %v", kind, token, r)
		}
	}()
	if err := t.sink.Emit(ctx, ev); err != nil {
		t.log.WithContext(ctx).Warnf("%s event sink failed, token=%s: %v", kind, token, err)
	}
}
