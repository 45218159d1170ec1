package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a message pushed to a user by the service. It is persisted so
// offline users can read it later, and edited in place for consent placeholders.
type Notification struct {
	BaseModel
	UserID  int64          `gorm:"index;not null" json:"-"`
	Text    string         `gorm:"type:text;not null" json:"text"`
	Buttons datatypes.JSON `json:"buttons,omitempty"`
	ReadAt  *time.Time     `json:"readAt,omitempty"`
}
