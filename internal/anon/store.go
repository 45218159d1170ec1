package anon

import (
	"context"
	"time"

	"anon-dialog-server/internal/models"
)

// Store is the persistent store the engine relies on. Each method is a single
// atomic write or read; uniqueness invariants are enforced by the store itself.
type Store interface {
	// CreateDialog inserts d. For user dialogs it also reserves both parties and
	// fails with ErrActiveDialogExists when either already holds an active dialog.
	// A code collision fails with ErrDuplicateCode.
	CreateDialog(ctx context.Context, d *models.Dialog) error
	GetDialog(ctx context.Context, id string) (*models.Dialog, error)
	GetDialogByCode(ctx context.Context, code string) (*models.Dialog, error)
	// GetActiveDialog returns nil, nil when userID has no active dialog of that kind.
	GetActiveDialog(ctx context.Context, userID int64, kind models.DialogKind) (*models.Dialog, error)
	// CloseDialog reports whether this call performed the active->closed transition.
	CloseDialog(ctx context.Context, id string) (bool, error)
	SetPartyConsent(ctx context.Context, id string, role models.Party, status models.ConsentStatus) error
	MarkHeaderSent(ctx context.Context, id string, role models.Party) error

	AddMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	SetMessageDelivered(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, id string) error
	// HasReplySince reports whether awaitedID sent anything in the dialog at or after sinceMessageID.
	HasReplySince(ctx context.Context, dialogID, sinceMessageID string, awaitedID int64) (bool, error)

	// CreateConsentRequest fails with ErrPendingConsentExists if a pending request
	// already exists for the same dialog and recipient.
	CreateConsentRequest(ctx context.Context, r *models.ConsentRequest) error
	GetConsentRequest(ctx context.Context, id string) (*models.ConsentRequest, error)
	// GetPendingConsentRequest returns nil, nil when nothing is pending.
	GetPendingConsentRequest(ctx context.Context, dialogID string, recipientID int64) (*models.ConsentRequest, error)
	SetConsentPlaceholder(ctx context.Context, id, placeholderID string) error
	// UpdateConsentRequestStatus moves a pending request to status and reports
	// false when the request was no longer pending.
	UpdateConsentRequestStatus(ctx context.Context, id string, status models.ConsentStatus) (bool, error)

	// GetPreference returns "" when the user never chose a mode.
	GetPreference(ctx context.Context, userID int64) (models.PreferenceMode, error)
	SetPreference(ctx context.Context, userID int64, mode models.PreferenceMode) error

	CreatePublicRequest(ctx context.Context, r *models.PublicRequest) error
	GetPublicRequest(ctx context.Context, id string) (*models.PublicRequest, error)
	// TransitionPublicRequest moves a request from one status to another and
	// reports false when it no longer holds from.
	TransitionPublicRequest(ctx context.Context, id string, from, to models.PublicStatus, moderatorID int64, reason string) (bool, error)

	SaveDeadline(ctx context.Context, d *models.ReplyDeadline) error
	DeleteDeadline(ctx context.Context, dialogID string, awaitedID int64) error
	// DeleteDeadlineFor deletes the deadline only while it still waits on messageID,
	// so a deadline re-armed for a newer message survives.
	DeleteDeadlineFor(ctx context.Context, dialogID string, awaitedID int64, messageID string) error
	DeleteDialogDeadlines(ctx context.Context, dialogID string) error
	ListDeadlines(ctx context.Context) ([]models.ReplyDeadline, error)
}

// Button is an action offered alongside a notification.
type Button struct {
	Label  string `json:"label"`
	Action Action `json:"action"`
	Ref    string `json:"ref"`
}

// Notifier delivers notifications to users.
type Notifier interface {
	// Send delivers text to userID and returns the notification identifier.
	Send(ctx context.Context, userID int64, text string, buttons ...Button) (string, error)
	// Edit replaces the text and buttons of a previously sent notification.
	Edit(ctx context.Context, userID int64, notificationID, text string, buttons ...Button) error
}

// Resolver maps a user handle (numeric id or username) to a user id.
type Resolver interface {
	// Resolve fails with ErrNotFound for handles that match nobody.
	Resolve(ctx context.Context, handle string) (int64, error)
	// AdminIDs lists users holding the admin role.
	AdminIDs(ctx context.Context) ([]int64, error)
}

// Clock abstracts time for the rate limiter and scheduler.
type Clock func() time.Time
