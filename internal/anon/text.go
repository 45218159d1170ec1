package anon

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinLength      = 5
	DefaultMaxLength      = 1500
	DefaultAdminMaxLength = 1200
)

// ValidateText trims text and checks its length in characters.
func ValidateText(text string, minLen, maxLen int) (string, error) {
	payload := strings.TrimSpace(text)
	n := utf8.RuneCountInString(payload)
	if n < minLen {
		return "", ErrTextTooShort
	}
	if n > maxLen {
		return "", ErrTextTooLong
	}
	return payload, nil
}

func formatDialogText(code, text string, withHeader bool) string {
	body := strings.TrimSpace(text)
	if body == "" {
		body = "-"
	}
	if !withHeader {
		return body
	}
	return fmt.Sprintf("Anonymous chat #%s\n\n%s\n\nTap \"Reply\" to respond.", code, body)
}

func consentPromptText(code string) string {
	return fmt.Sprintf("Anonymous chat #%s\n\nYou have a pending message. Accept the chat?", code)
}

func adminInboxText(code, text string, authorID int64) string {
	return fmt.Sprintf("Anonymous request #%s\n\n%s\n\nAuthor ID: %d\nOnly the main admin may reply.",
		code, strings.TrimSpace(text), authorID)
}

func publicRequestText(requestID, text string, authorID int64) string {
	return fmt.Sprintf("Anonymous post request #%s\n\n%s\n\nAuthor ID: %d\nApprove to publish or reject.",
		requestID, strings.TrimSpace(text), authorID)
}

func publicPostText(text string) string {
	body := strings.TrimSpace(text)
	if body == "" {
		body = "-"
	}
	return "Anonymous message\n\n" + body
}

func dialogClosedText(code string) string {
	return fmt.Sprintf("Dialog #%s has been closed.", code)
}

func dialogExpiredText(code string) string {
	return fmt.Sprintf("Dialog #%s was closed: no reply within the time limit.", code)
}

const (
	consentDeclinedText = "Chat declined."
	senderDeclinedText  = "The user declined the anonymous chat."
	unansweredText      = "Dialog closed: the user did not reply to your message."
	undeliveredText     = "Your message could not be delivered. The dialog has been closed."

	publicQueuedText    = "Your text was sent for moderation. We'll notify you once it's processed."
	publicPublishedText = "Your message was published."
	publicFailedText    = "Failed to post your message. Try later."
	publicRejectedText  = "Your message was not approved."
)
