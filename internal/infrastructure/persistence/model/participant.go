package model

import "time"

type Participant struct {
	ParticipantID string    `gorm:"column:participant_id;type:varchar(36);primaryKey"`
	Name          string    `gorm:"column:name;type:varchar(64);not null"`
	NameLower     string    `gorm:"column:name_lower;type:varchar(64);not null;index"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Participant) TableName() string {
	return "hardcore_participants"
}
