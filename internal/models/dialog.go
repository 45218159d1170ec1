package models

import (
	"time"
)

// DialogKind distinguishes user-to-user dialogs from admin inbox dialogs.
type DialogKind string

const (
	DialogKindUser  DialogKind = "user"
	DialogKindAdmin DialogKind = "admin"
)

// DialogStatus represents the lifecycle state of a dialog.
type DialogStatus string

const (
	DialogStatusActive DialogStatus = "active"
	DialogStatusClosed DialogStatus = "closed"
)

// ConsentStatus is shared by the per-party consent fields and consent requests.
type ConsentStatus string

const (
	ConsentApproved ConsentStatus = "approved"
	ConsentPending  ConsentStatus = "pending"
	ConsentRejected ConsentStatus = "rejected"
)

// Party names one side of a dialog.
type Party string

const (
	PartyInitiator Party = "initiator"
	PartyTarget    Party = "target"
)

// Dialog is an anonymous conversation between two users, addressed publicly by Code.
// Dialogs are never deleted; closing only flips Status.
type Dialog struct {
	BaseModel
	Code                string        `gorm:"uniqueIndex;size:16;not null" json:"code"`
	Kind                DialogKind    `gorm:"size:10;index;not null" json:"kind"`
	InitiatorID         int64         `gorm:"index;not null" json:"-"`
	TargetID            int64         `gorm:"index;not null" json:"-"`
	Status              DialogStatus  `gorm:"size:10;index;default:'active'" json:"status"`
	InitiatorConsent    ConsentStatus `gorm:"size:10;default:'approved'" json:"-"`
	TargetConsent       ConsentStatus `gorm:"size:10;default:'approved'" json:"-"`
	InitiatorHeaderSent bool          `gorm:"default:false" json:"-"`
	TargetHeaderSent    bool          `gorm:"default:false" json:"-"`
	ClosedAt            *time.Time    `json:"closedAt,omitempty"`
}

// ActiveDialogSlot reserves a user for at most one active user-kind dialog.
// The primary key on UserID is the store-level guard for that invariant.
type ActiveDialogSlot struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	DialogID  string `gorm:"size:36;index;not null"`
	CreatedAt time.Time
}

// IsActive reports whether the dialog still accepts messages.
func (d *Dialog) IsActive() bool {
	return d.Status == DialogStatusActive
}

// IsParticipant reports whether userID is one of the two parties.
func (d *Dialog) IsParticipant(userID int64) bool {
	return userID == d.InitiatorID || userID == d.TargetID
}

// RoleOf returns the party role of userID. Non-participants are reported as the target,
// so callers must check IsParticipant first.
func (d *Dialog) RoleOf(userID int64) Party {
	if userID == d.InitiatorID {
		return PartyInitiator
	}
	return PartyTarget
}

// Counterpart returns the other party's ID.
func (d *Dialog) Counterpart(userID int64) int64 {
	if userID == d.InitiatorID {
		return d.TargetID
	}
	return d.InitiatorID
}

// ConsentOf returns the consent field for role.
func (d *Dialog) ConsentOf(role Party) ConsentStatus {
	if role == PartyInitiator {
		return d.InitiatorConsent
	}
	return d.TargetConsent
}

// SetConsent updates the in-memory consent field for role.
func (d *Dialog) SetConsent(role Party, status ConsentStatus) {
	if role == PartyInitiator {
		d.InitiatorConsent = status
		return
	}
	d.TargetConsent = status
}

// HeaderSent reports whether the introductory header was already shown to role.
func (d *Dialog) HeaderSent(role Party) bool {
	if role == PartyInitiator {
		return d.InitiatorHeaderSent
	}
	return d.TargetHeaderSent
}

// SetHeaderSent marks the header as shown for role in memory.
func (d *Dialog) SetHeaderSent(role Party) {
	if role == PartyInitiator {
		d.InitiatorHeaderSent = true
		return
	}
	d.TargetHeaderSent = true
}
