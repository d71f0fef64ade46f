package ports

import "context"

// Tx is an opaque transaction handle for repositories. Infrastructure
// controls the concrete type (*gorm.DB).
type Tx interface{}

// UnitOfWork groups wallet writes that must commit together, such as
// debiting several currencies for one paid revival. Returning an error from
// fn rolls back.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
