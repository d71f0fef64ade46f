package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"hardcore/internal/errs"
	"hardcore/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. Nested calls reuse the
// outer transaction.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if fn == nil {
		return errors.New("tx func is required")
	}
	if ports.TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	})
	if err != nil {
		return errs.Wrap(err, "run tx")
	}
	return nil
}
