package biz

import "context"

// Transaction is the interface for managing database transactions.
// Defined in biz layer, implemented by data/infra layer.
//
// fn receives the transactional context; the correlation token of the
// transaction is available from it through txtrack.CurrentToken.
type Transaction interface {
	InTx(context.Context, func(ctx context.Context) error) error
}
