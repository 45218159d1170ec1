package anon

import (
	"context"

	"go.uber.org/zap"

	"anon-dialog-server/internal/models"
)

// Relay formats dialog messages and hands them to the notifier. Transport
// failures never escape: they are logged and reported as false.
type Relay struct {
	notifier Notifier
	store    Store
	log      *zap.Logger
}

// NewRelay creates a relay.
func NewRelay(notifier Notifier, store Store, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{notifier: notifier, store: store, log: log.Named("relay")}
}

// Deliver sends text to recipientID, prefixed with the dialog header the first
// time that recipient's role sees the dialog.
func (r *Relay) Deliver(ctx context.Context, d *models.Dialog, recipientID int64, text string) bool {
	role := d.RoleOf(recipientID)
	withHeader := !d.HeaderSent(role)
	payload := formatDialogText(d.Code, text, withHeader)

	if _, err := r.notifier.Send(ctx, recipientID, payload, ReplyButtons(d.Code)...); err != nil {
		r.log.Warn("failed to deliver dialog message",
			zap.String("code", d.Code), zap.Int64("recipient", recipientID), zap.Error(err))
		return false
	}
	if withHeader {
		r.markHeader(ctx, d, role)
	}
	return true
}

// Reveal turns a consent placeholder into the held message.
func (r *Relay) Reveal(ctx context.Context, d *models.Dialog, recipientID int64, placeholderID, text string) bool {
	role := d.RoleOf(recipientID)
	withHeader := !d.HeaderSent(role)
	payload := formatDialogText(d.Code, text, withHeader)

	err := r.notifier.Edit(ctx, recipientID, placeholderID, payload, ReplyButtons(d.Code)...)
	if err != nil {
		// The placeholder may be gone; fall back to a fresh notification.
		r.log.Debug("placeholder edit failed, sending new message", zap.String("code", d.Code), zap.Error(err))
		if _, err := r.notifier.Send(ctx, recipientID, payload, ReplyButtons(d.Code)...); err != nil {
			r.log.Warn("failed to reveal held message",
				zap.String("code", d.Code), zap.Int64("recipient", recipientID), zap.Error(err))
			return false
		}
	}
	if withHeader {
		r.markHeader(ctx, d, role)
	}
	return true
}

// Placeholder sends the consent prompt and returns its notification id.
func (r *Relay) Placeholder(ctx context.Context, d *models.Dialog, recipientID int64, requestID string) (string, bool) {
	id, err := r.notifier.Send(ctx, recipientID, consentPromptText(d.Code), ConsentButtons(requestID)...)
	if err != nil {
		r.log.Warn("failed to send consent prompt",
			zap.String("code", d.Code), zap.Int64("recipient", recipientID), zap.Error(err))
		return "", false
	}
	return id, true
}

// Replace edits a previously sent notification, ignoring failures.
func (r *Relay) Replace(ctx context.Context, userID int64, notificationID, text string) {
	if notificationID == "" {
		return
	}
	if err := r.notifier.Edit(ctx, userID, notificationID, text); err != nil {
		r.log.Debug("failed to edit notification", zap.String("notification", notificationID), zap.Error(err))
	}
}

// Notify sends a plain notice to a single user.
func (r *Relay) Notify(ctx context.Context, userID int64, text string) bool {
	if _, err := r.notifier.Send(ctx, userID, text); err != nil {
		r.log.Warn("failed to notify user", zap.Int64("user", userID), zap.Error(err))
		return false
	}
	return true
}

// Broadcast sends text to every recipient, skipping individual failures, and
// returns how many deliveries succeeded.
func (r *Relay) Broadcast(ctx context.Context, recipients []int64, text string, buttons ...Button) int {
	delivered := 0
	for _, id := range recipients {
		if _, err := r.notifier.Send(ctx, id, text, buttons...); err != nil {
			r.log.Warn("broadcast delivery failed", zap.Int64("recipient", id), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Relay) markHeader(ctx context.Context, d *models.Dialog, role models.Party) {
	if err := r.store.MarkHeaderSent(ctx, d.ID, role); err != nil {
		r.log.Error("failed to mark header sent", zap.String("code", d.Code), zap.Error(err))
		return
	}
	d.SetHeaderSent(role)
}
