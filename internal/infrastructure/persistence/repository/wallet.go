package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hardcore/internal/domain/revival"
	"hardcore/internal/infrastructure/persistence/model"
)

// Wallet keeps per-currency point balances. Spend is a conditional update,
// so a balance never goes negative even under concurrent spends.
type Wallet struct {
	db  *gorm.DB
	now func() time.Time
}

func NewWallet(db *gorm.DB) *Wallet {
	return &Wallet{db: db, now: time.Now}
}

func (w *Wallet) Balance(ctx context.Context, participantID uuid.UUID, currency string) (int64, error) {
	db, err := dbFromContext(w.db, ctx)
	if err != nil {
		return 0, err
	}
	return balance(db, participantID, currency)
}

func (w *Wallet) Spend(ctx context.Context, participantID uuid.UUID, currency string, amount int64) error {
	if err := validateWalletArgs(participantID, currency, amount); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}

	db, err := dbFromContext(w.db, ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.PointBalance{}).
		Where("participant_id = ? AND currency = ? AND balance >= ?", participantID.String(), currency, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": w.now().UTC(),
		})
	if result.Error != nil {
		return storeError(result.Error, "spend balance")
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s needs %d", revival.ErrInsufficientBalance, currency, amount)
	}
	return nil
}

// Grant credits amount and returns the new balance.
func (w *Wallet) Grant(ctx context.Context, participantID uuid.UUID, currency string, amount int64) (int64, error) {
	if err := validateWalletArgs(participantID, currency, amount); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, errors.New("grant amount must be positive")
	}

	db, err := dbFromContext(w.db, ctx)
	if err != nil {
		return 0, err
	}

	now := w.now().UTC()
	row := model.PointBalance{
		ParticipantID: participantID.String(),
		Currency:      currency,
		Balance:       amount,
		UpdatedAt:     now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "participant_id"}, {Name: "currency"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": now,
		}),
	}).Create(&row).Error; err != nil {
		return 0, storeError(err, "grant balance")
	}
	return balance(db, participantID, currency)
}

func balance(db *gorm.DB, participantID uuid.UUID, currency string) (int64, error) {
	var row model.PointBalance
	err := db.Where("participant_id = ? AND currency = ?", participantID.String(), currency).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storeError(err, "query balance")
	}
	return row.Balance, nil
}

func validateWalletArgs(participantID uuid.UUID, currency string, amount int64) error {
	if participantID == uuid.Nil {
		return revival.ErrParticipantRequired
	}
	if strings.TrimSpace(currency) == "" {
		return errors.New("currency is required")
	}
	if amount < 0 {
		return errors.New("amount must not be negative")
	}
	return nil
}
