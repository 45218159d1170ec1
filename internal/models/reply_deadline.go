package models

import "time"

// ReplyDeadline persists an armed reply timeout so it can be re-armed after a restart.
type ReplyDeadline struct {
	DialogID     string    `gorm:"primaryKey;size:36"`
	AwaitedID    int64     `gorm:"primaryKey;autoIncrement:false"`
	MessageID    string    `gorm:"size:36;not null"`
	LastSenderID int64     `gorm:"not null"`
	DueAt        time.Time `gorm:"index;not null"`
	CreatedAt    time.Time
}
