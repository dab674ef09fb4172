package txtrack

import (
	"context"
	"sync/atomic"
)

// Slot holds at most one token for a single transaction context.
//
// The zero value is an empty slot. Only the Tracker writes to a slot;
// goroutines spawned from the transaction's context may read it.
type Slot struct {
	v atomic.Pointer[Token]
}

// Set installs token unconditionally.
func (s *Slot) Set(token Token) {
	s.v.Store(&token)
}

// Get returns the current token, or false when the slot is empty.
func (s *Slot) Get() (Token, bool) {
	p := s.v.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// Change replaces the current token with its committed successor and
// returns it. An empty slot stays empty.
func (s *Slot) Change() (Token, bool) {
	for {
		old := s.v.Load()
		if old == nil {
			return "", false
		}
		next := old.next()
		if s.v.CompareAndSwap(old, &next) {
			return next, true
		}
	}
}

// Remove empties the slot.
func (s *Slot) Remove() {
	s.v.Store(nil)
}

type slotKey struct{}

// WithSlot returns a child context carrying s. A slot already present in
// ctx is shadowed, not modified.
func WithSlot(ctx context.Context, s *Slot) context.Context {
	return context.WithValue(ctx, slotKey{}, s)
}

// SlotFromContext returns the innermost slot carried by ctx.
func SlotFromContext(ctx context.Context) (*Slot, bool) {
	s, ok := ctx.Value(slotKey{}).(*Slot)
	return s, ok && s != nil
}

// CurrentToken returns the token of the transaction ctx belongs to.
// It reports false outside a transaction and after rollback.
func CurrentToken(ctx context.Context) (Token, bool) {
	s, ok := SlotFromContext(ctx)
	if !ok {
		return "", false
	}
	return s.Get()
}

// ActiveToken is like CurrentToken but ignores tokens that already went
// through commit.
func ActiveToken(ctx context.Context) (Token, bool) {
	token, ok := CurrentToken(ctx)
	if !ok || token.Committed() {
		return "", false
	}
	return token, true
}
