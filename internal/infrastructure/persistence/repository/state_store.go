package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hardcore/internal/domain/revival"
	"hardcore/internal/errs"
	"hardcore/internal/infrastructure/persistence/model"
)

// StateStore is the gorm-backed records table. It never locks: every read
// resolves the newest row for the key and every write either appends or
// touches only that newest row.
type StateStore struct {
	db    *gorm.DB
	table string
	now   func() time.Time
}

func NewStateStore(db *gorm.DB, table string) *StateStore {
	table = strings.TrimSpace(table)
	if table == "" {
		table = model.DefaultRecordTable
	}
	return &StateStore{db: db, table: table, now: time.Now}
}

func (s *StateStore) Table() string {
	return s.table
}

func (s *StateStore) SelectLatest(ctx context.Context, participantID uuid.UUID, groupKey string) (revival.Record, bool, error) {
	db, err := dbFromContext(s.db, ctx)
	if err != nil {
		return revival.Record{}, false, err
	}

	var row model.IncapacitationRecord
	err = s.latest(db, participantID, groupKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return revival.Record{}, false, nil
	}
	if err != nil {
		return revival.Record{}, false, storeError(err, "select latest record")
	}

	record, err := mapRecord(row)
	if err != nil {
		return revival.Record{}, false, err
	}
	return record, true, nil
}

func (s *StateStore) Insert(ctx context.Context, record revival.Record) error {
	if record.ParticipantID == uuid.Nil {
		return revival.ErrParticipantRequired
	}

	db, err := dbFromContext(s.db, ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	row := model.IncapacitationRecord{
		ParticipantID: record.ParticipantID.String(),
		GroupKey:      record.GroupKey,
		EventData:     record.EventData,
		RestoreMethod: record.RestoreMethod,
		Completed:     record.Completed,
		UpdatedAt:     record.UpdatedAt.UTC(),
		CreatedAt:     record.CreatedAt.UTC(),
	}
	if record.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	if record.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}

	if err := db.Table(s.table).Create(&row).Error; err != nil {
		return storeError(err, "insert record")
	}
	return nil
}

// UpdateLatestRestoreMethod runs as one statement. The latest id is read
// through a derived table so MySQL accepts a subquery on the updated table.
func (s *StateStore) UpdateLatestRestoreMethod(
	ctx context.Context,
	participantID uuid.UUID,
	groupKey string,
	method string,
	completed bool,
) (int64, error) {
	if strings.TrimSpace(method) == "" {
		return 0, revival.ErrMethodRequired
	}

	db, err := dbFromContext(s.db, ctx)
	if err != nil {
		return 0, err
	}

	updates := map[string]any{
		"restore_method": method,
		"updated_at":     s.now().UTC(),
	}
	if completed {
		updates["completed"] = true
	}

	latestID := db.Table("(?) AS newest", s.latest(db, participantID, groupKey).Select("id")).Select("newest.id")
	result := db.Table(s.table).Where("id = (?)", latestID).Updates(updates)
	if result.Error != nil {
		return 0, storeError(result.Error, "update latest restore method")
	}
	return result.RowsAffected, nil
}

func (s *StateStore) ListHistory(ctx context.Context, participantID uuid.UUID, groupKey string, limit int) ([]revival.Record, error) {
	db, err := dbFromContext(s.db, ctx)
	if err != nil {
		return nil, err
	}

	query := s.latest(db, participantID, groupKey)
	if limit > 0 {
		query = query.Limit(limit)
	} else {
		query = query.Limit(-1)
	}

	var rows []model.IncapacitationRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, storeError(err, "list history")
	}

	records := make([]revival.Record, 0, len(rows))
	for _, row := range rows {
		record, err := mapRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteAll removes every row for the key. Only the purge command uses it;
// no lifecycle transition deletes history.
func (s *StateStore) DeleteAll(ctx context.Context, participantID uuid.UUID, groupKey string) (int64, error) {
	db, err := dbFromContext(s.db, ctx)
	if err != nil {
		return 0, err
	}

	result := db.Table(s.table).
		Where("participant_id = ? AND group_key = ?", participantID.String(), groupKey).
		Delete(&model.IncapacitationRecord{})
	if result.Error != nil {
		return 0, storeError(result.Error, "delete records")
	}
	return result.RowsAffected, nil
}

// latest orders newest first; id breaks ties between rows written within
// the store's timestamp precision.
func (s *StateStore) latest(db *gorm.DB, participantID uuid.UUID, groupKey string) *gorm.DB {
	return db.Table(s.table).
		Where("participant_id = ? AND group_key = ?", participantID.String(), groupKey).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(1)
}

func mapRecord(row model.IncapacitationRecord) (revival.Record, error) {
	participantID, err := uuid.Parse(row.ParticipantID)
	if err != nil {
		return revival.Record{}, errs.Mark(errs.Wrapf(err, "parse participant id %q", row.ParticipantID), revival.ErrParse)
	}
	return revival.Record{
		ID:            row.ID,
		ParticipantID: participantID,
		GroupKey:      row.GroupKey,
		EventData:     row.EventData,
		RestoreMethod: row.RestoreMethod,
		Completed:     row.Completed,
		UpdatedAt:     row.UpdatedAt.UTC(),
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}
