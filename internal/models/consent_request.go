package models

import (
	"fmt"
	"time"
)

// ConsentRequest gates delivery of one held message until the recipient accepts or rejects.
type ConsentRequest struct {
	BaseModel
	DialogID      string        `gorm:"size:36;index;not null" json:"dialogId"`
	RecipientID   int64         `gorm:"index;not null" json:"-"`
	MessageID     string        `gorm:"size:36;not null" json:"-"`
	PlaceholderID string        `gorm:"size:36" json:"-"`
	Status        ConsentStatus `gorm:"size:10;default:'pending'" json:"status"`
	// PendingKey is set only while Status is pending; its unique index allows a
	// single pending request per (dialog, recipient).
	PendingKey *string    `gorm:"uniqueIndex;size:64" json:"-"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// PendingConsentKey builds the uniqueness key for a pending request.
func PendingConsentKey(dialogID string, recipientID int64) string {
	return fmt.Sprintf("%s:%d", dialogID, recipientID)
}
