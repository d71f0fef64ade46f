package model

import "time"

// DefaultRecordTable is used when no table name is configured. The records
// table name is configurable, so repositories always address it through
// db.Table rather than a TableName method.
const DefaultRecordTable = "hardcore_records"

type IncapacitationRecord struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ParticipantID string    `gorm:"column:participant_id;type:varchar(36);not null"`
	GroupKey      string    `gorm:"column:group_key;type:varchar(64);not null"`
	EventData     string    `gorm:"column:event_data;type:text"`
	RestoreMethod *string   `gorm:"column:restore_method;type:varchar(128)"`
	Completed     bool      `gorm:"column:completed;not null;default:false"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// RecordColumns lists the columns every records table must carry.
var RecordColumns = []string{
	"id",
	"participant_id",
	"group_key",
	"event_data",
	"restore_method",
	"completed",
	"updated_at",
	"created_at",
}
