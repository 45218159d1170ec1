package anon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"anon-dialog-server/internal/models"
)

// Status tells the caller what an accepted operation did.
type Status string

const (
	StatusDelivered       Status = "delivered"
	StatusAwaitingConsent Status = "awaiting_consent"
	StatusSent            Status = "sent"
	StatusAccepted        Status = "accepted"
	StatusDeclined        Status = "declined"
	StatusClosed          Status = "closed"
	StatusUpdated         Status = "updated"
	StatusPublished       Status = "published"
)

// Submission is the result of an accepted message.
type Submission struct {
	Dialog    *models.Dialog
	MessageID string
	Status    Status
}

// ManagerConfig holds the limits the manager enforces.
type ManagerConfig struct {
	MinLength int
	MaxLength int
	// PrimaryResponderID may act on every admin dialog.
	PrimaryResponderID int64
}

// Manager owns the dialog state machine: active -> closed.
type Manager struct {
	cfg      ManagerConfig
	store    Store
	prefs    *PreferenceStore
	consent  *ConsentCoordinator
	timeouts *Scheduler
	relay    *Relay
	log      *zap.Logger

	codes func() []string
}

// NewManager wires a manager and registers it as the scheduler's expiry handler.
func NewManager(cfg ManagerConfig, store Store, prefs *PreferenceStore, consent *ConsentCoordinator,
	timeouts *Scheduler, relay *Relay, log *zap.Logger) *Manager {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		prefs:    prefs,
		consent:  consent,
		timeouts: timeouts,
		relay:    relay,
		log:      log.Named("dialogs"),
		codes:    func() []string { return codeSequence(nil) },
	}
	timeouts.handler = m
	return m
}

// Create opens a dialog. The initiator's consent starts approved; the target's
// is pending when they require confirmation at this moment and approved
// otherwise, so a later preference change does not re-gate an open dialog.
func (m *Manager) Create(ctx context.Context, initiatorID, targetID int64, kind models.DialogKind) (*models.Dialog, error) {
	if initiatorID == targetID {
		return nil, ErrSelfDialog
	}
	targetConsent := models.ConsentApproved
	if kind == models.DialogKindUser {
		existing, err := m.store.GetActiveDialog(ctx, initiatorID, models.DialogKindUser)
		if err != nil {
			return nil, fmt.Errorf("get active dialog: %w", err)
		}
		if existing != nil {
			return nil, ErrAlreadyInDialog
		}
		mode, err := m.prefs.GetMode(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if mode == models.ModeConfirm {
			targetConsent = models.ConsentPending
		}
	}

	var lastErr error
	for _, code := range m.codes() {
		d := &models.Dialog{
			Code:             code,
			Kind:             kind,
			InitiatorID:      initiatorID,
			TargetID:         targetID,
			Status:           models.DialogStatusActive,
			InitiatorConsent: models.ConsentApproved,
			TargetConsent:    targetConsent,
		}
		err := m.store.CreateDialog(ctx, d)
		switch {
		case err == nil:
			m.log.Debug("dialog created", zap.String("code", d.Code), zap.String("kind", string(kind)))
			return d, nil
		case errors.Is(err, ErrDuplicateCode):
			lastErr = err
			continue
		case errors.Is(err, ErrActiveDialogExists):
			return nil, m.busyError(ctx, initiatorID)
		default:
			return nil, fmt.Errorf("create dialog: %w", err)
		}
	}
	return nil, fmt.Errorf("create dialog: no free code: %w", lastErr)
}

// busyError tells the initiator whether they or the target hold the conflicting dialog.
func (m *Manager) busyError(ctx context.Context, initiatorID int64) error {
	mine, err := m.store.GetActiveDialog(ctx, initiatorID, models.DialogKindUser)
	if err == nil && mine == nil {
		return ErrTargetBusy
	}
	return ErrAlreadyInDialog
}

// Authorize checks that actorID may act on d: one of the parties, or the
// primary responder on admin dialogs.
func (m *Manager) Authorize(d *models.Dialog, actorID int64) error {
	if d.IsParticipant(actorID) {
		return nil
	}
	if d.Kind == models.DialogKindAdmin && m.cfg.PrimaryResponderID != 0 && actorID == m.cfg.PrimaryResponderID {
		return nil
	}
	return ErrNotParticipant
}

// recipientFor returns who receives a message sent by senderID on d.
func (m *Manager) recipientFor(d *models.Dialog, senderID int64) int64 {
	if !d.IsParticipant(senderID) {
		// Primary responder answering an admin dialog it is not a party of.
		return d.InitiatorID
	}
	return d.Counterpart(senderID)
}

// SubmitMessage validates and delivers text from senderID, or holds it behind a
// consent request when the recipient requires confirmation.
func (m *Manager) SubmitMessage(ctx context.Context, d *models.Dialog, senderID int64, text string) (*Submission, error) {
	if err := m.Authorize(d, senderID); err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, ErrDialogClosed
	}
	payload, err := ValidateText(text, m.cfg.MinLength, m.cfg.MaxLength)
	if err != nil {
		return nil, err
	}
	recipientID := m.recipientFor(d, senderID)

	if d.Kind == models.DialogKindAdmin {
		return m.deliver(ctx, d, senderID, recipientID, payload)
	}
	if err := m.checkModes(ctx, d, senderID, recipientID); err != nil {
		return nil, err
	}

	hold, err := m.consent.ShouldHoldForConsent(ctx, d, recipientID)
	if err != nil {
		return nil, err
	}
	if hold {
		return m.hold(ctx, d, senderID, recipientID, payload)
	}
	return m.deliver(ctx, d, senderID, recipientID, payload)
}

// checkModes applies both parties' preferences. A reject on either side closes
// the dialog.
func (m *Manager) checkModes(ctx context.Context, d *models.Dialog, senderID, recipientID int64) error {
	senderMode, err := m.prefs.GetMode(ctx, senderID)
	if err != nil {
		return err
	}
	if senderMode == models.ModeReject {
		if _, err := m.Close(ctx, d, senderID); err != nil {
			return err
		}
		return ErrSelfBlocked
	}
	recipientMode, err := m.prefs.GetMode(ctx, recipientID)
	if err != nil {
		return err
	}
	switch recipientMode {
	case models.ModeReject:
		if _, err := m.Close(ctx, d, senderID); err != nil {
			return err
		}
		return ErrRecipientBlocked
	case models.ModeConfirm:
		if d.ConsentOf(d.RoleOf(recipientID)) == models.ConsentRejected {
			return ErrConsentDeclined
		}
		pending, err := m.consent.PendingRequest(ctx, d, recipientID)
		if err != nil {
			return err
		}
		if pending != nil {
			return ErrAwaitingConsent
		}
	}
	return nil
}

func (m *Manager) hold(ctx context.Context, d *models.Dialog, senderID, recipientID int64, text string) (*Submission, error) {
	msg := &models.Message{DialogID: d.ID, SenderID: senderID, RecipientID: recipientID, Text: text, Delivered: false}
	if err := m.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store held message: %w", err)
	}
	req, err := m.consent.BeginConsent(ctx, d, recipientID, msg)
	if err != nil {
		// The message never reached a request, so nothing will ever reveal it.
		if derr := m.store.DeleteMessage(ctx, msg.ID); derr != nil {
			m.log.Warn("failed to drop held message", zap.String("message", msg.ID), zap.Error(derr))
		}
		return nil, err
	}
	placeholderID, ok := m.relay.Placeholder(ctx, d, recipientID, req.ID)
	if !ok {
		// The recipient cannot answer a prompt they never saw: withdraw the
		// request and end the dialog before it starts.
		if _, err := m.store.UpdateConsentRequestStatus(ctx, req.ID, models.ConsentRejected); err != nil {
			return nil, fmt.Errorf("withdraw consent request: %w", err)
		}
		if _, err := m.closeDialog(ctx, d, senderID, false); err != nil {
			return nil, err
		}
		return nil, ErrDeliveryFailed
	}
	if err := m.store.SetConsentPlaceholder(ctx, req.ID, placeholderID); err != nil {
		m.log.Error("failed to record placeholder", zap.String("request", req.ID), zap.Error(err))
	}
	m.cancelTimeout(ctx, d, senderID)
	m.log.Debug("message held for consent", zap.String("code", d.Code), zap.String("request", req.ID))
	return &Submission{Dialog: d, MessageID: msg.ID, Status: StatusAwaitingConsent}, nil
}

func (m *Manager) deliver(ctx context.Context, d *models.Dialog, senderID, recipientID int64, text string) (*Submission, error) {
	msg := &models.Message{DialogID: d.ID, SenderID: senderID, RecipientID: recipientID, Text: text, Delivered: false}
	if err := m.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	// The sender just answered, so nothing waits on them any more.
	m.cancelTimeout(ctx, d, senderID)

	if !m.relay.Deliver(ctx, d, recipientID, text) {
		return nil, ErrDeliveryFailed
	}
	if err := m.store.SetMessageDelivered(ctx, msg.ID); err != nil {
		m.log.Error("failed to mark message delivered", zap.String("message", msg.ID), zap.Error(err))
	}
	msg.Delivered = true
	if err := m.timeouts.Arm(ctx, d, recipientID, msg.ID, senderID); err != nil {
		m.log.Error("failed to arm reply timeout", zap.String("code", d.Code), zap.Error(err))
	}
	return &Submission{Dialog: d, MessageID: msg.ID, Status: StatusDelivered}, nil
}

// RespondToConsent applies recipientID's decision to a pending consent request.
// Approval reveals the held message and arms a reply timeout; rejection closes
// the dialog and tells the original sender.
func (m *Manager) RespondToConsent(ctx context.Context, requestID string, recipientID int64, decision Decision) (*Resolution, error) {
	req, err := m.store.GetConsentRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrConsentNotFound
		}
		return nil, fmt.Errorf("get consent request: %w", err)
	}
	if req.RecipientID != recipientID {
		return nil, ErrNotRecipient
	}

	res, err := m.consent.Resolve(ctx, requestID, decision)
	if err != nil {
		return nil, err
	}
	d, msg := res.Dialog, res.Message

	if !res.Approved {
		m.relay.Replace(ctx, recipientID, res.Request.PlaceholderID, consentDeclinedText)
		if _, err := m.closeDialog(ctx, d, recipientID, false); err != nil {
			return nil, err
		}
		m.relay.Notify(ctx, msg.SenderID, senderDeclinedText)
		m.log.Info("consent rejected", zap.String("code", d.Code))
		return res, nil
	}

	if !m.relay.Reveal(ctx, d, recipientID, res.Request.PlaceholderID, msg.Text) {
		// The request is already approved and cannot be answered again, so the
		// dialog ends here and the sender learns their message was lost.
		if _, err := m.closeDialog(ctx, d, recipientID, false); err != nil {
			return nil, err
		}
		m.relay.Notify(ctx, msg.SenderID, undeliveredText)
		m.log.Warn("approved message could not be revealed", zap.String("code", d.Code))
		return nil, ErrDeliveryFailed
	}
	if err := m.store.SetMessageDelivered(ctx, msg.ID); err != nil {
		m.log.Error("failed to mark message delivered", zap.String("message", msg.ID), zap.Error(err))
	}
	msg.Delivered = true
	if err := m.timeouts.Arm(ctx, d, recipientID, msg.ID, msg.SenderID); err != nil {
		m.log.Error("failed to arm reply timeout", zap.String("code", d.Code), zap.Error(err))
	}
	m.log.Info("consent approved", zap.String("code", d.Code))
	return res, nil
}

// Close closes d on behalf of closedBy and notifies the other party. It is a
// no-op returning false when the dialog is already closed.
func (m *Manager) Close(ctx context.Context, d *models.Dialog, closedBy int64) (bool, error) {
	return m.closeDialog(ctx, d, closedBy, true)
}

func (m *Manager) closeDialog(ctx context.Context, d *models.Dialog, closedBy int64, notify bool) (bool, error) {
	closed, err := m.store.CloseDialog(ctx, d.ID)
	if err != nil {
		return false, fmt.Errorf("close dialog: %w", err)
	}
	if err := m.timeouts.CancelAll(ctx, d.ID); err != nil {
		m.log.Warn("failed to cancel reply timeouts", zap.String("code", d.Code), zap.Error(err))
	}
	if !closed {
		return false, nil
	}
	d.Status = models.DialogStatusClosed
	if notify {
		m.relay.Notify(ctx, m.recipientFor(d, closedBy), dialogClosedText(d.Code))
	}
	m.log.Info("dialog closed", zap.String("code", d.Code), zap.Int64("closed_by", closedBy))
	return true, nil
}

// ForceCloseActive closes userID's active user dialog, if any.
func (m *Manager) ForceCloseActive(ctx context.Context, userID int64) (*models.Dialog, error) {
	d, err := m.store.GetActiveDialog(ctx, userID, models.DialogKindUser)
	if err != nil {
		return nil, fmt.Errorf("get active dialog: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	if _, err := m.Close(ctx, d, userID); err != nil {
		return nil, err
	}
	return d, nil
}

// handleExpiry closes an unanswered dialog. The last sender learns it went
// unanswered; the silent party learns it was closed.
func (m *Manager) handleExpiry(ctx context.Context, d *models.Dialog, lastSenderID int64) error {
	closed, err := m.closeDialog(ctx, d, lastSenderID, false)
	if err != nil || !closed {
		return err
	}
	m.relay.Notify(ctx, lastSenderID, unansweredText)
	m.relay.Notify(ctx, d.Counterpart(lastSenderID), dialogExpiredText(d.Code))
	return nil
}

func (m *Manager) cancelTimeout(ctx context.Context, d *models.Dialog, responderID int64) {
	if err := m.timeouts.Cancel(ctx, d.ID, responderID); err != nil {
		m.log.Warn("failed to cancel reply timeout", zap.String("code", d.Code), zap.Error(err))
	}
}
