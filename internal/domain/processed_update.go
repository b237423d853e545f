package domain

import "time"

// ProcessedUpdate records a Telegram update id that has already been handed
// to the dispatcher, so webhook redeliveries are not handled twice.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"type:INTEGER NOT NULL;primaryKey;autoIncrement:false"`
	ChatID    int64     `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
