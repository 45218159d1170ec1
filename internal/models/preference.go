package models

import "time"

// PreferenceMode is a user's policy for incoming anonymous dialogs.
type PreferenceMode string

const (
	ModeAuto    PreferenceMode = "auto"
	ModeConfirm PreferenceMode = "confirm"
	ModeReject  PreferenceMode = "reject"
)

// Valid reports whether m is one of the known modes.
func (m PreferenceMode) Valid() bool {
	switch m {
	case ModeAuto, ModeConfirm, ModeReject:
		return true
	}
	return false
}

// Preference stores the consent mode of a single user. A missing row means ModeAuto.
type Preference struct {
	UserID    int64          `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	Mode      PreferenceMode `gorm:"size:10;not null;default:'auto'" json:"mode"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
