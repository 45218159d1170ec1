package anon

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so callers can branch without type switches.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindRateLimited      Kind = "rate_limited"
	KindValidation       Kind = "validation"
	KindAlreadyInDialog  Kind = "already_in_dialog"
	KindUserNotFound     Kind = "user_not_found"
	KindSelfBlocked      Kind = "self_blocked"
	KindRecipientBlocked Kind = "recipient_blocked"
	KindDialogClosed     Kind = "dialog_closed"
	KindNotParticipant   Kind = "not_participant"
	KindAlreadyProcessed Kind = "already_processed"
	KindAwaitingConsent  Kind = "awaiting_consent"
	KindConsentDeclined  Kind = "consent_declined"
	KindNotFound         Kind = "not_found"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
)

// Error is the single error type returned by the engine's public operations.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// RetryAfter is the wait in seconds for KindRateLimited.
	RetryAfter int   `json:"retryAfter,omitempty"`
	Cause      error `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches two engine errors by kind, so errors.Is(err, &Error{Kind: KindDialogClosed}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, KindInternal for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// RateLimitExceeded builds the error returned while a user is throttled.
func RateLimitExceeded(seconds int) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("Too fast. Try again in %d sec.", seconds),
		RetryAfter: seconds,
	}
}

var (
	ErrTextTooShort     = newError(KindValidation, "Message is too short.")
	ErrTextTooLong      = newError(KindValidation, "Message is too long.")
	ErrSelfDialog       = newError(KindValidation, "You cannot start a dialog with yourself.")
	ErrInvalidMode      = newError(KindValidation, "Unknown preference mode.")
	ErrInvalidDecision  = newError(KindValidation, "Unknown consent decision.")
	ErrAlreadyInDialog  = newError(KindAlreadyInDialog, "Please close your current dialog first.")
	ErrTargetBusy       = newError(KindAlreadyInDialog, "The recipient is already in a dialog. Try again later.")
	ErrUserNotFound     = newError(KindUserNotFound, "Could not resolve the recipient.")
	ErrSelfBlocked      = newError(KindSelfBlocked, "You disabled anonymous chats. Change settings to continue.")
	ErrRecipientBlocked = newError(KindRecipientBlocked, "The user disabled anonymous chats.")
	ErrDialogClosed     = newError(KindDialogClosed, "This dialog is closed.")
	ErrDialogNotFound   = newError(KindNotFound, "Dialog not found.")
	ErrNoActiveDialog   = newError(KindNotFound, "No active dialog.")
	ErrConsentNotFound  = newError(KindNotFound, "Consent request not found.")
	ErrNotParticipant   = newError(KindNotParticipant, "You are not a participant of this dialog.")
	ErrNotRecipient     = newError(KindNotParticipant, "This request is not addressed to you.")
	ErrAlreadyProcessed = newError(KindAlreadyProcessed, "This request was already processed.")
	ErrAwaitingConsent  = newError(KindAwaitingConsent, "Waiting for the recipient to confirm.")
	ErrConsentDeclined  = newError(KindConsentDeclined, "The recipient declined this chat.")
	ErrNoResponder      = newError(KindUnavailable, "The main admin is not configured.")
	ErrDeliveryFailed   = newError(KindUnavailable, "Failed to deliver the message.")
	ErrNoPublicChannel  = newError(KindUnavailable, "Public posting is not configured.")
	ErrPublishFailed    = newError(KindUnavailable, "Failed to publish the post.")
	ErrPublicNotFound   = newError(KindNotFound, "Public post request not found.")
	ErrNotModerator     = newError(KindNotParticipant, "Only administrators may moderate posts.")
)

// Store-level sentinel errors. Implementations wrap them with %w.
var (
	ErrNotFound             = errors.New("anon: record not found")
	ErrActiveDialogExists   = errors.New("anon: user already has an active dialog")
	ErrPendingConsentExists = errors.New("anon: pending consent request already exists")
	ErrDuplicateCode        = errors.New("anon: dialog code already taken")
)
