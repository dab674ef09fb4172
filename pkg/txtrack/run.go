package txtrack

import (
	"context"
	"errors"
)

// InTx runs fn inside a transaction with the default Definition.
func (t *Tracker) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.InTxWith(ctx, Definition{}, fn)
}

// InTxWith runs fn inside a transaction described by def.
//
// fn gets the transactional context. A nil return commits; an error or a
// panic rolls back, and the panic is re-raised afterwards. A failed commit is
// rolled back as well so the backend transaction and the slot never outlive
// the call. With
// PropagationRequired, fn joins a transaction already active in ctx instead
// of starting a new one.
func (t *Tracker) InTxWith(ctx context.Context, def Definition, fn func(ctx context.Context) error) (err error) {
	if def.Propagation == PropagationRequired {
		if _, ok := ActiveToken(ctx); ok {
			return fn(ctx)
		}
	}

	txCtx, st, err := t.Begin(ctx, def)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := t.Rollback(txCtx, st); rbErr != nil {
				t.log.WithContext(ctx).Errorf("rollback after panic failed: %v", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := t.Rollback(txCtx, st); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := t.Commit(txCtx, st); err != nil {
		if rbErr := t.Rollback(txCtx, st); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}
