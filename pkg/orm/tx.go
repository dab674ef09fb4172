package orm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/guoxiaopeng875/txcorrelation/pkg/txtrack"
)

var _ txtrack.Backend = (*TxBackend)(nil)

// contextTxKey is the context key for storing a GORM transaction.
type contextTxKey struct{}

// TxBackend begins GORM transactions on behalf of a txtrack.Tracker.
type TxBackend struct {
	db *gorm.DB
}

// NewTxBackend creates a TxBackend over db.
func NewTxBackend(db *gorm.DB) *TxBackend {
	return &TxBackend{db: db}
}

// Begin starts a transaction honoring the isolation level, read-only flag and
// timeout of def. The transaction is stored in the returned context.
func (b *TxBackend) Begin(ctx context.Context, def txtrack.Definition) (context.Context, txtrack.Tx, error) {
	cancel := context.CancelFunc(func() {})
	if def.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
	}

	tx := b.db.WithContext(ctx).Begin(&sql.TxOptions{
		Isolation: def.Isolation,
		ReadOnly:  def.ReadOnly,
	})
	if tx.Error != nil {
		cancel()
		return nil, nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}

	return context.WithValue(ctx, contextTxKey{}, tx), &gormTx{db: tx, cancel: cancel}, nil
}

// TxFromContext returns the GORM transaction begun by TxBackend, if any.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB)
	return tx, ok
}

type gormTx struct {
	db     *gorm.DB
	cancel context.CancelFunc
}

func (t *gormTx) Commit(context.Context) error {
	defer t.cancel()
	return t.db.Commit().Error
}

func (t *gormTx) Rollback(context.Context) error {
	defer t.cancel()
	return t.db.Rollback().Error
}
