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
	"hardcore/internal/errs"
	"hardcore/internal/infrastructure/persistence/model"
)

// Directory remembers the last display name seen for each participant so
// administrators can address offline participants by name.
type Directory struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db, now: time.Now}
}

func (d *Directory) Remember(ctx context.Context, participantID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if participantID == uuid.Nil {
		return revival.ErrParticipantRequired
	}
	if name == "" {
		return errors.New("name is required")
	}

	db, err := dbFromContext(d.db, ctx)
	if err != nil {
		return err
	}

	row := model.Participant{
		ParticipantID: participantID.String(),
		Name:          name,
		NameLower:     strings.ToLower(name),
		UpdatedAt:     d.now().UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "name_lower", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return storeError(err, "remember participant")
	}
	return nil
}

// LookupByName is case-insensitive. When a name was reused the most recently
// seen participant wins.
func (d *Directory) LookupByName(ctx context.Context, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, errors.New("name is required")
	}

	db, err := dbFromContext(d.db, ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var row model.Participant
	err = db.Where("name_lower = ?", strings.ToLower(name)).Order("updated_at DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, fmt.Errorf("%w: %s", revival.ErrNotFound, name)
	}
	if err != nil {
		return uuid.Nil, storeError(err, "lookup participant")
	}

	participantID, err := uuid.Parse(row.ParticipantID)
	if err != nil {
		return uuid.Nil, errs.Mark(errs.Wrapf(err, "parse participant id %q", row.ParticipantID), revival.ErrParse)
	}
	return participantID, nil
}
