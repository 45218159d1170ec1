package anon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"anon-dialog-server/internal/models"
)

// Config holds the engine's tunables.
type Config struct {
	ReplyTimeout   time.Duration
	RateLimit      RateLimiterConfig
	MinLength      int
	MaxLength      int
	AdminMaxLength int
	// PrimaryResponderID owns the admin inbox and is the target of every admin dialog.
	PrimaryResponderID int64
	// AdminIDs receive admin inbox broadcasts in addition to users with the admin role.
	AdminIDs []int64
	// PublicChannelID receives approved public posts. Zero disables public posting.
	PublicChannelID int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ReplyTimeout:   DefaultReplyTimeout,
		RateLimit:      DefaultRateLimiterConfig(),
		MinLength:      DefaultMinLength,
		MaxLength:      DefaultMaxLength,
		AdminMaxLength: DefaultAdminMaxLength,
	}
}

// Outcome is what a successful operation reports back to its caller.
type Outcome struct {
	Code    string `json:"code,omitempty"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// ActiveDialog is the public view of a user's current dialog.
type ActiveDialog struct {
	Code   string              `json:"code"`
	Kind   models.DialogKind   `json:"kind"`
	Status models.DialogStatus `json:"status"`
}

// Service is the entry point used by outer layers. It owns the rate limiter, the
// timer registry and the dialog manager for the lifetime of the process.
type Service struct {
	cfg      Config
	store    Store
	resolver Resolver
	limiter  *RateLimiter
	prefs    *PreferenceStore
	timeouts *Scheduler
	relay    *Relay
	manager  *Manager
	log      *zap.Logger
	actions  map[Action]actionFunc
}

// New wires the engine. A nil clock uses time.Now.
func New(cfg Config, store Store, notifier Notifier, resolver Resolver, log *zap.Logger, now Clock) *Service {
	def := DefaultConfig()
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.AdminMaxLength <= 0 {
		cfg.AdminMaxLength = def.AdminMaxLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("anon")

	prefs := NewPreferenceStore(store)
	consent := NewConsentCoordinator(store, prefs)
	timeouts := NewScheduler(store, cfg.ReplyTimeout, now, log)
	relay := NewRelay(notifier, store, log)
	manager := NewManager(ManagerConfig{
		MinLength:          cfg.MinLength,
		MaxLength:          cfg.MaxLength,
		PrimaryResponderID: cfg.PrimaryResponderID,
	}, store, prefs, consent, timeouts, relay, log)

	s := &Service{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		limiter:  NewRateLimiter(cfg.RateLimit, now),
		prefs:    prefs,
		timeouts: timeouts,
		relay:    relay,
		manager:  manager,
		log:      log,
	}
	s.actions = s.actionTable()
	return s
}

// Recover re-arms reply timeouts persisted by a previous process.
func (s *Service) Recover(ctx context.Context) (int, error) {
	return s.timeouts.Recover(ctx)
}

// Close stops all timers and waits for in-flight expiries.
func (s *Service) Close() {
	s.timeouts.Stop()
}

// SubmitDirectMessage starts (or continues) an anonymous dialog with the user
// behind targetHandle and submits text into it.
func (s *Service) SubmitDirectMessage(ctx context.Context, senderID int64, targetHandle, text string) (*Outcome, error) {
	targetID, err := s.resolver.Resolve(ctx, targetHandle)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.fail("resolve target", err)
	}
	if err := s.limiter.Check(senderID); err != nil {
		return nil, err
	}
	if _, err := ValidateText(text, s.cfg.MinLength, s.cfg.MaxLength); err != nil {
		return nil, err
	}
	if senderID == targetID {
		return nil, ErrSelfDialog
	}
	if err := s.checkDirectModes(ctx, senderID, targetID); err != nil {
		return nil, err
	}

	d, err := s.store.GetActiveDialog(ctx, senderID, models.DialogKindUser)
	if err != nil {
		return nil, s.fail("get active dialog", err)
	}
	created := false
	if d != nil && d.Counterpart(senderID) != targetID {
		return nil, ErrAlreadyInDialog
	}
	if d == nil {
		if d, err = s.manager.Create(ctx, senderID, targetID, models.DialogKindUser); err != nil {
			return nil, s.fail("create dialog", err)
		}
		created = true
	}

	sub, err := s.manager.SubmitMessage(ctx, d, senderID, text)
	if err != nil {
		if created && errors.Is(err, ErrDeliveryFailed) {
			// Nobody saw the dialog; free both parties.
			if _, cerr := s.manager.closeDialog(ctx, d, senderID, false); cerr != nil {
				s.log.Error("failed to close undelivered dialog", zap.String("code", d.Code), zap.Error(cerr))
			}
		}
		return nil, s.fail("submit message", err)
	}
	return submissionOutcome(sub), nil
}

// checkDirectModes refuses a new message before any dialog exists when either
// side disabled anonymous chats.
func (s *Service) checkDirectModes(ctx context.Context, senderID, targetID int64) error {
	mode, err := s.prefs.GetMode(ctx, senderID)
	if err != nil {
		return s.fail("get sender mode", err)
	}
	if mode == models.ModeReject {
		return ErrSelfBlocked
	}
	if mode, err = s.prefs.GetMode(ctx, targetID); err != nil {
		return s.fail("get target mode", err)
	}
	if mode == models.ModeReject {
		return ErrRecipientBlocked
	}
	return nil
}

// ReplyInDialog submits text into the dialog addressed by code.
func (s *Service) ReplyInDialog(ctx context.Context, senderID int64, code, text string) (*Outcome, error) {
	if err := s.limiter.Check(senderID); err != nil {
		return nil, err
	}
	d, err := s.dialogByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Authorize(d, senderID); err != nil {
		return nil, err
	}
	sub, err := s.manager.SubmitMessage(ctx, d, senderID, text)
	if err != nil {
		return nil, s.fail("submit message", err)
	}
	return submissionOutcome(sub), nil
}

// RespondToConsent accepts or rejects a pending consent request addressed to recipientID.
func (s *Service) RespondToConsent(ctx context.Context, requestID string, recipientID int64, decision Decision) (*Outcome, error) {
	res, err := s.manager.RespondToConsent(ctx, requestID, recipientID, decision)
	if err != nil {
		return nil, s.fail("respond to consent", err)
	}
	if res.Approved {
		return &Outcome{Code: res.Dialog.Code, Status: StatusAccepted, Message: "Chat accepted."}, nil
	}
	return &Outcome{Code: res.Dialog.Code, Status: StatusDeclined, Message: consentDeclinedText}, nil
}

// GetPreference returns userID's consent mode.
func (s *Service) GetPreference(ctx context.Context, userID int64) (models.PreferenceMode, error) {
	mode, err := s.prefs.GetMode(ctx, userID)
	if err != nil {
		return "", s.fail("get preference", err)
	}
	return mode, nil
}

// SetPreference stores userID's mode. Switching to reject closes the user's
// active dialog; its code is reported in the outcome.
func (s *Service) SetPreference(ctx context.Context, userID int64, mode models.PreferenceMode) (*Outcome, error) {
	if err := s.prefs.SetMode(ctx, userID, mode); err != nil {
		return nil, s.fail("set preference", err)
	}
	out := &Outcome{Status: StatusUpdated, Message: fmt.Sprintf("Anonymous chats: %s.", mode)}
	if mode != models.ModeReject {
		return out, nil
	}
	d, err := s.manager.ForceCloseActive(ctx, userID)
	if err != nil {
		return nil, s.fail("close active dialog", err)
	}
	if d != nil {
		out.Code = d.Code
		out.Message += " Your active dialog was closed."
	}
	return out, nil
}

// CloseDialog closes the dialog addressed by code. Closing an already closed
// dialog succeeds without side effects.
func (s *Service) CloseDialog(ctx context.Context, userID int64, code string) (*Outcome, error) {
	d, err := s.dialogByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Authorize(d, userID); err != nil {
		return nil, err
	}
	if _, err := s.manager.Close(ctx, d, userID); err != nil {
		return nil, s.fail("close dialog", err)
	}
	return &Outcome{Code: d.Code, Status: StatusClosed, Message: "Dialog closed."}, nil
}

// ExitDialog closes whatever dialog userID is currently in.
func (s *Service) ExitDialog(ctx context.Context, userID int64) (*Outcome, error) {
	d, err := s.activeDialog(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.manager.Close(ctx, d, userID); err != nil {
		return nil, s.fail("close dialog", err)
	}
	return &Outcome{Code: d.Code, Status: StatusClosed, Message: "Dialog closed."}, nil
}

// ActiveDialog describes userID's current dialog without revealing the counterpart.
func (s *Service) ActiveDialog(ctx context.Context, userID int64) (*ActiveDialog, error) {
	d, err := s.activeDialog(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ActiveDialog{Code: d.Code, Kind: d.Kind, Status: d.Status}, nil
}

// ContactAdmins opens (or reuses) senderID's admin dialog and broadcasts text
// to every administrator. Only the primary responder may answer.
func (s *Service) ContactAdmins(ctx context.Context, senderID int64, text string) (*Outcome, error) {
	if err := s.limiter.Check(senderID); err != nil {
		return nil, err
	}
	payload, err := ValidateText(text, s.cfg.MinLength, s.cfg.AdminMaxLength)
	if err != nil {
		return nil, err
	}
	primary := s.cfg.PrimaryResponderID
	if primary == 0 {
		return nil, ErrNoResponder
	}

	d, err := s.store.GetActiveDialog(ctx, senderID, models.DialogKindAdmin)
	if err != nil {
		return nil, s.fail("get admin dialog", err)
	}
	if d != nil && (d.InitiatorID != senderID || d.TargetID != primary) {
		// The responder changed since this request was opened.
		if d.InitiatorID == senderID {
			if _, err := s.manager.closeDialog(ctx, d, senderID, false); err != nil {
				return nil, s.fail("close stale admin dialog", err)
			}
		}
		d = nil
	}
	if d == nil {
		if d, err = s.manager.Create(ctx, senderID, primary, models.DialogKindAdmin); err != nil {
			return nil, s.fail("create admin dialog", err)
		}
	}

	msg := &models.Message{DialogID: d.ID, SenderID: senderID, RecipientID: primary, Text: payload}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, s.fail("store admin message", err)
	}
	recipients, err := s.adminRecipients(ctx, senderID)
	if err != nil {
		return nil, s.fail("list admins", err)
	}
	delivered := s.relay.Broadcast(ctx, recipients, adminInboxText(d.Code, payload, senderID), ReplyButtons(d.Code)...)
	if delivered == 0 {
		return nil, ErrDeliveryFailed
	}
	if err := s.store.SetMessageDelivered(ctx, msg.ID); err != nil {
		s.log.Error("failed to mark admin message delivered", zap.String("message", msg.ID), zap.Error(err))
	}
	s.log.Info("admin request broadcast", zap.String("code", d.Code), zap.Int("delivered", delivered))
	return &Outcome{Code: d.Code, Status: StatusSent, Message: "Your message was sent to the administrators."}, nil
}

// adminRecipients merges configured admins, admin-role users and the primary
// responder, without duplicates and without the sender.
func (s *Service) adminRecipients(ctx context.Context, senderID int64) ([]int64, error) {
	roleAdmins, err := s.resolver.AdminIDs(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int64]bool{senderID: true}
	var out []int64
	for _, group := range [][]int64{{s.cfg.PrimaryResponderID}, s.cfg.AdminIDs, roleAdmins} {
		for _, id := range group {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Service) dialogByCode(ctx context.Context, code string) (*models.Dialog, error) {
	d, err := s.store.GetDialogByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrDialogNotFound
		}
		return nil, s.fail("get dialog", err)
	}
	return d, nil
}

// activeDialog prefers the user dialog over an open admin request.
func (s *Service) activeDialog(ctx context.Context, userID int64) (*models.Dialog, error) {
	for _, kind := range []models.DialogKind{models.DialogKindUser, models.DialogKindAdmin} {
		d, err := s.store.GetActiveDialog(ctx, userID, kind)
		if err != nil {
			return nil, s.fail("get active dialog", err)
		}
		if d != nil {
			return d, nil
		}
	}
	return nil, ErrNoActiveDialog
}

// fail passes engine errors through and hides everything else behind KindInternal.
func (s *Service) fail(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	s.log.Error(op+" failed", zap.Error(err))
	return wrapError(KindInternal, "Something went wrong. Try again later.", err)
}

func submissionOutcome(sub *Submission) *Outcome {
	out := &Outcome{Code: sub.Dialog.Code, Status: sub.Status, Message: "Message sent."}
	if sub.Status == StatusAwaitingConsent {
		out.Message = "Message saved. It will be delivered once the recipient accepts the chat."
	}
	return out
}
