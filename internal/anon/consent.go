package anon

import (
	"context"
	"errors"
	"fmt"

	"anon-dialog-server/internal/models"
)

// Decision is a recipient's answer to a consent request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionReject
}

// Resolution is what the caller needs after a consent request was answered.
// On approval the held message must be revealed and a reply timeout armed; on
// rejection the dialog must be closed.
type Resolution struct {
	Request  *models.ConsentRequest
	Dialog   *models.Dialog
	Message  *models.Message
	Approved bool
}

// ConsentCoordinator decides whether messages wait for recipient approval and
// drives consent requests through pending -> approved|rejected.
type ConsentCoordinator struct {
	store Store
	prefs *PreferenceStore
}

// NewConsentCoordinator creates a coordinator.
func NewConsentCoordinator(store Store, prefs *PreferenceStore) *ConsentCoordinator {
	return &ConsentCoordinator{store: store, prefs: prefs}
}

// ShouldHoldForConsent is true iff the recipient is in confirm mode and has not
// yet approved this dialog.
func (c *ConsentCoordinator) ShouldHoldForConsent(ctx context.Context, d *models.Dialog, recipientID int64) (bool, error) {
	mode, err := c.prefs.GetMode(ctx, recipientID)
	if err != nil {
		return false, err
	}
	if mode != models.ModeConfirm {
		return false, nil
	}
	return d.ConsentOf(d.RoleOf(recipientID)) != models.ConsentApproved, nil
}

// PendingRequest returns the outstanding request for recipientID on d, if any.
func (c *ConsentCoordinator) PendingRequest(ctx context.Context, d *models.Dialog, recipientID int64) (*models.ConsentRequest, error) {
	req, err := c.store.GetPendingConsentRequest(ctx, d.ID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("get pending consent request: %w", err)
	}
	return req, nil
}

// BeginConsent opens a consent request for the held message and marks the
// recipient's consent field pending. A concurrent request for the same pair
// surfaces as ErrAwaitingConsent.
func (c *ConsentCoordinator) BeginConsent(ctx context.Context, d *models.Dialog, recipientID int64, msg *models.Message) (*models.ConsentRequest, error) {
	key := models.PendingConsentKey(d.ID, recipientID)
	req := &models.ConsentRequest{
		DialogID:    d.ID,
		RecipientID: recipientID,
		MessageID:   msg.ID,
		Status:      models.ConsentPending,
		PendingKey:  &key,
	}
	if err := c.store.CreateConsentRequest(ctx, req); err != nil {
		if errors.Is(err, ErrPendingConsentExists) {
			return nil, ErrAwaitingConsent
		}
		return nil, fmt.Errorf("create consent request: %w", err)
	}

	role := d.RoleOf(recipientID)
	if err := c.store.SetPartyConsent(ctx, d.ID, role, models.ConsentPending); err != nil {
		return nil, fmt.Errorf("set %s consent pending: %w", role, err)
	}
	d.SetConsent(role, models.ConsentPending)
	return req, nil
}

// Resolve answers a consent request exactly once. Repeated calls fail with
// ErrAlreadyProcessed; a request whose dialog is no longer active is rejected
// and reported as ErrDialogClosed.
func (c *ConsentCoordinator) Resolve(ctx context.Context, requestID string, decision Decision) (*Resolution, error) {
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}

	req, err := c.store.GetConsentRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrConsentNotFound
		}
		return nil, fmt.Errorf("get consent request: %w", err)
	}
	if req.Status != models.ConsentPending {
		return nil, ErrAlreadyProcessed
	}

	dialog, err := c.store.GetDialog(ctx, req.DialogID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get dialog: %w", err)
	}
	msg, err := c.store.GetMessage(ctx, req.MessageID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get held message: %w", err)
	}
	if dialog == nil || msg == nil || !dialog.IsActive() {
		if _, err := c.store.UpdateConsentRequestStatus(ctx, req.ID, models.ConsentRejected); err != nil {
			return nil, fmt.Errorf("reject stale consent request: %w", err)
		}
		return nil, ErrDialogClosed
	}

	status := models.ConsentRejected
	if decision == DecisionAccept {
		status = models.ConsentApproved
	}
	ok, err := c.store.UpdateConsentRequestStatus(ctx, req.ID, status)
	if err != nil {
		return nil, fmt.Errorf("update consent request: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}
	req.Status = status

	role := dialog.RoleOf(req.RecipientID)
	if err := c.store.SetPartyConsent(ctx, dialog.ID, role, status); err != nil {
		return nil, fmt.Errorf("set %s consent %s: %w", role, status, err)
	}
	dialog.SetConsent(role, status)

	return &Resolution{
		Request:  req,
		Dialog:   dialog,
		Message:  msg,
		Approved: status == models.ConsentApproved,
	}, nil
}
