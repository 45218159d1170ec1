package models

import "time"

// PublicStatus is the moderation state of a public post.
type PublicStatus string

const (
	PublicPending  PublicStatus = "pending"
	PublicApproved PublicStatus = "approved"
	PublicRejected PublicStatus = "rejected"
	PublicFailed   PublicStatus = "failed"
)

// PublicRequest is an anonymous post waiting for an admin to publish or reject it.
type PublicRequest struct {
	BaseModel
	AuthorID    int64        `gorm:"index;not null" json:"-"`
	Text        string       `gorm:"type:text;not null" json:"text"`
	Status      PublicStatus `gorm:"size:10;index;default:'pending'" json:"status"`
	ModeratorID int64        `json:"-"`
	Reason      string       `gorm:"size:255" json:"reason,omitempty"`
	ResolvedAt  *time.Time   `json:"resolvedAt,omitempty"`
}
