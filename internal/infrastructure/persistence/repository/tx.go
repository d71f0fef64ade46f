package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
)

func dbFromContext(base *gorm.DB, ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return base.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func storeError(err error, msg string) error {
	return errs.Mark(errs.Wrap(err, msg), revival.ErrStoreUnavailable)
}
