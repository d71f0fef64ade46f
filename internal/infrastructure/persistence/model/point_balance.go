package model

import "time"

type PointBalance struct {
	ParticipantID string    `gorm:"column:participant_id;type:varchar(36);primaryKey"`
	Currency      string    `gorm:"column:currency;type:varchar(64);primaryKey"`
	Balance       int64     `gorm:"column:balance;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (PointBalance) TableName() string {
	return "hardcore_point_balances"
}
