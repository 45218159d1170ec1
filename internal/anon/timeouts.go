package anon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"anon-dialog-server/internal/models"
)

// DefaultReplyTimeout is how long a party may stay silent before the dialog closes.
const DefaultReplyTimeout = 15 * time.Minute

// expiryHandler closes a dialog whose awaited party never replied.
type expiryHandler interface {
	handleExpiry(ctx context.Context, d *models.Dialog, lastSenderID int64) error
}

type timerKey struct {
	dialogID  string
	awaitedID int64
}

type armedTimer struct {
	seq    uint64
	cancel context.CancelFunc
}

// Scheduler arms and cancels reply timeouts keyed by (dialog, awaited party).
// Deadlines are persisted so Recover can re-arm them after a restart; the timers
// themselves live in this process only.
type Scheduler struct {
	store   Store
	timeout time.Duration
	now     Clock
	log     *zap.Logger
	handler expiryHandler

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu     sync.Mutex
	seq    uint64
	timers map[timerKey]armedTimer
}

// NewScheduler creates a scheduler. Zero timeout means DefaultReplyTimeout.
func NewScheduler(store Store, timeout time.Duration, now Clock, log *zap.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		store:   store,
		timeout: timeout,
		now:     now,
		log:     log.Named("timeouts"),
		base:    base,
		stop:    stop,
		timers:  make(map[timerKey]armedTimer),
	}
}

// Arm starts the reply timeout for awaitedID on d, replacing any timer for the
// same key. Admin dialogs are never armed.
func (s *Scheduler) Arm(ctx context.Context, d *models.Dialog, awaitedID int64, messageID string, lastSenderID int64) error {
	if d.Kind != models.DialogKindUser {
		return nil
	}
	deadline := models.ReplyDeadline{
		DialogID:     d.ID,
		AwaitedID:    awaitedID,
		MessageID:    messageID,
		LastSenderID: lastSenderID,
		DueAt:        s.now().Add(s.timeout),
	}
	if err := s.store.SaveDeadline(ctx, &deadline); err != nil {
		return fmt.Errorf("save reply deadline: %w", err)
	}
	s.start(deadline)
	return nil
}

// Cancel stops the timer waiting on responderID, if any.
func (s *Scheduler) Cancel(ctx context.Context, dialogID string, responderID int64) error {
	key := timerKey{dialogID: dialogID, awaitedID: responderID}
	s.mu.Lock()
	if t, ok := s.timers[key]; ok {
		t.cancel()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if err := s.store.DeleteDeadline(ctx, dialogID, responderID); err != nil {
		return fmt.Errorf("delete reply deadline: %w", err)
	}
	return nil
}

// CancelAll stops every timer of a dialog.
func (s *Scheduler) CancelAll(ctx context.Context, dialogID string) error {
	s.mu.Lock()
	for key, t := range s.timers {
		if key.dialogID == dialogID {
			t.cancel()
			delete(s.timers, key)
		}
	}
	s.mu.Unlock()

	if err := s.store.DeleteDialogDeadlines(ctx, dialogID); err != nil {
		return fmt.Errorf("delete reply deadlines: %w", err)
	}
	return nil
}

// Recover re-arms every persisted deadline. Overdue ones fire immediately.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	deadlines, err := s.store.ListDeadlines(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reply deadlines: %w", err)
	}
	for _, d := range deadlines {
		s.start(d)
	}
	if len(deadlines) > 0 {
		s.log.Info("recovered reply timeouts", zap.Int("count", len(deadlines)))
	}
	return len(deadlines), nil
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Armed reports whether a timer is waiting on awaitedID in the dialog.
func (s *Scheduler) Armed(dialogID string, awaitedID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[timerKey{dialogID: dialogID, awaitedID: awaitedID}]
	return ok
}

// Stop cancels all timers and waits for running expiry handlers to finish.
// Persisted deadlines are kept for the next Recover.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stop()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) start(d models.ReplyDeadline) {
	key := timerKey{dialogID: d.DialogID, awaitedID: d.AwaitedID}

	s.mu.Lock()
	if s.base.Err() != nil {
		s.mu.Unlock()
		return
	}
	if old, ok := s.timers[key]; ok {
		old.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(s.base)
	s.timers[key] = armedTimer{seq: seq, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			if t, ok := s.timers[key]; ok && t.seq == seq {
				delete(s.timers, key)
			}
			s.mu.Unlock()
		}()

		timer := time.NewTimer(d.DueAt.Sub(s.now()))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.expire(d)
	}()
}

// expire runs detached from the timer's own context: closing the dialog cancels
// every timer of that dialog, including the one that fired.
func (s *Scheduler) expire(d models.ReplyDeadline) {
	ctx, cancel := context.WithTimeout(s.base, 30*time.Second)
	defer cancel()
	log := s.log.With(zap.String("dialog_id", d.DialogID), zap.Int64("awaited", d.AwaitedID))

	// Re-check under the store: a reply recorded at the same instant wins.
	replied, err := s.store.HasReplySince(ctx, d.DialogID, d.MessageID, d.AwaitedID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The awaited message is gone, so this deadline can never be met.
			s.release(ctx, d, log)
			return
		}
		log.Error("reply check failed", zap.Error(err))
		return
	}
	s.release(ctx, d, log)
	if replied {
		return
	}

	dialog, err := s.store.GetDialog(ctx, d.DialogID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error("load dialog failed", zap.Error(err))
		}
		return
	}
	if !dialog.IsActive() || dialog.Kind != models.DialogKindUser || s.handler == nil {
		return
	}
	if err := s.handler.handleExpiry(ctx, dialog, d.LastSenderID); err != nil {
		log.Error("expire dialog failed", zap.Error(err))
		return
	}
	log.Info("dialog expired unanswered", zap.String("code", dialog.Code))
}

// release drops the fired deadline unless it was re-armed for a newer message
// while this one was firing.
func (s *Scheduler) release(ctx context.Context, d models.ReplyDeadline, log *zap.Logger) {
	if err := s.store.DeleteDeadlineFor(ctx, d.DialogID, d.AwaitedID, d.MessageID); err != nil {
		log.Warn("failed to delete fired deadline", zap.Error(err))
	}
}
