package anon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon-dialog-server/internal/models"
)

func TestDirectMessageAutoMode(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, out.Status)
	require.NotEmpty(t, out.Code)

	got := h.notifier.to(bob)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "#"+out.Code)
	assert.Contains(t, got[0].Text, "hello bob")
	assert.Equal(t, ReplyButtons(out.Code), got[0].Buttons)

	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)
	assert.True(t, h.svc.timeouts.Armed(d.ID, bob))
	assert.False(t, h.svc.timeouts.Armed(d.ID, alice))

	// Second message from the same sender carries no header.
	_, err = h.svc.ReplyInDialog(ctx, alice, out.Code, "still there?")
	require.NoError(t, err)
	got = h.notifier.to(bob)
	require.Len(t, got, 2)
	assert.Equal(t, "still there?", got[1].Text)

	// Bob replies: his timer goes away, Alice's is armed, and Alice sees the header once.
	_, err = h.svc.ReplyInDialog(ctx, bob, out.Code, "hi alice")
	require.NoError(t, err)
	assert.False(t, h.svc.timeouts.Armed(d.ID, bob))
	assert.True(t, h.svc.timeouts.Armed(d.ID, alice))
	toAlice := h.notifier.to(alice)
	require.Len(t, toAlice, 1)
	assert.Contains(t, toAlice[0].Text, "#"+out.Code)
}

func TestDirectMessageReusesDialogWithSameTarget(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	second, err := h.svc.SubmitDirectMessage(ctx, alice, "2", "hello again")
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, 1, h.store.dialogCount())

	_, err = h.svc.SubmitDirectMessage(ctx, alice, "carol", "hello carol")
	assert.ErrorIs(t, err, ErrAlreadyInDialog)
}

func TestDirectMessageTargetBusy(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)

	_, err = h.svc.SubmitDirectMessage(ctx, carol, "bob", "hello bob")
	require.Error(t, err)
	assert.Equal(t, KindAlreadyInDialog, KindOf(err))
	assert.ErrorIs(t, err, ErrTargetBusy)
}

func TestDirectMessageRejections(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.SubmitDirectMessage(ctx, alice, "nobody", "hello there")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = h.svc.SubmitDirectMessage(ctx, alice, "alice", "hello me")
	assert.ErrorIs(t, err, ErrSelfDialog)

	_, err = h.svc.SubmitDirectMessage(ctx, alice, "bob", "hey")
	assert.ErrorIs(t, err, ErrTextTooShort)

	h.setMode(t, bob, "reject")
	_, err = h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	assert.ErrorIs(t, err, ErrRecipientBlocked)

	h.setMode(t, alice, "reject")
	_, err = h.svc.SubmitDirectMessage(ctx, alice, "carol", "hello carol")
	assert.ErrorIs(t, err, ErrSelfBlocked)

	assert.Zero(t, h.store.dialogCount())
	assert.Zero(t, h.store.messageCount())
}

func TestRateLimitHasNoSideEffects(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "message 1")
	require.NoError(t, err)
	for i := 2; i <= 10; i++ {
		_, err := h.svc.ReplyInDialog(ctx, alice, out.Code, "message n")
		require.NoError(t, err, "message %d", i)
	}
	before := h.store.messageCount()

	_, err = h.svc.ReplyInDialog(ctx, alice, out.Code, "message 11")
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindRateLimited, e.Kind)
	assert.Equal(t, 300, e.RetryAfter)
	assert.Equal(t, before, h.store.messageCount())
	assert.Equal(t, 1, h.store.dialogCount())
}

func TestConsentRejectClosesDialog(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.setMode(t, bob, "confirm")

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingConsent, out.Status)
	assert.Equal(t, 1, h.store.messageCount())

	prompt := h.notifier.to(bob)
	require.Len(t, prompt, 1)
	assert.NotContains(t, prompt[0].Text, "hello bob")
	require.Len(t, prompt[0].Buttons, 2)
	requestID := prompt[0].Buttons[0].Ref

	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentPending, d.TargetConsent)
	assert.False(t, h.svc.timeouts.Armed(d.ID, bob))

	// Alice cannot pile up more messages while Bob decides.
	_, err = h.svc.ReplyInDialog(ctx, alice, out.Code, "are you there?")
	assert.ErrorIs(t, err, ErrAwaitingConsent)

	// Only Bob can answer.
	_, err = h.svc.RespondToConsent(ctx, requestID, carol, DecisionReject)
	assert.ErrorIs(t, err, ErrNotRecipient)

	res, err := h.svc.RespondToConsent(ctx, requestID, bob, DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, res.Status)

	text, ok := h.notifier.edited(prompt[0].ID)
	require.True(t, ok)
	assert.Equal(t, consentDeclinedText, text)

	toAlice := h.notifier.to(alice)
	require.Len(t, toAlice, 1)
	assert.Equal(t, senderDeclinedText, toAlice[0].Text)

	d, err = h.store.GetDialog(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, d.IsActive())
	active, err := h.store.GetActiveDialog(ctx, alice, models.DialogKindUser)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = h.svc.RespondToConsent(ctx, requestID, bob, DecisionAccept)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestConsentAcceptRevealsMessage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.setMode(t, bob, "confirm")

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	prompt := h.notifier.to(bob)
	require.Len(t, prompt, 1)
	requestID := prompt[0].Buttons[0].Ref

	res, err := h.svc.RespondToConsent(ctx, requestID, bob, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)

	revealed, ok := h.notifier.edited(prompt[0].ID)
	require.True(t, ok)
	assert.Contains(t, revealed, "#"+out.Code)
	assert.Contains(t, revealed, "hello bob")

	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentApproved, d.TargetConsent)
	assert.True(t, d.TargetHeaderSent)
	assert.True(t, h.svc.timeouts.Armed(d.ID, bob))

	msg, err := h.store.GetMessage(ctx, h.store.messages[0].ID)
	require.NoError(t, err)
	assert.True(t, msg.Delivered)

	// Approved once: later messages are delivered directly without a header.
	_, err = h.svc.ReplyInDialog(ctx, alice, out.Code, "thanks for accepting")
	require.NoError(t, err)
	got := h.notifier.to(bob)
	require.Len(t, got, 2)
	assert.Equal(t, "thanks for accepting", got[1].Text)

	_, err = h.svc.RespondToConsent(ctx, requestID, bob, DecisionAccept)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestConsentOnClosedDialog(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.setMode(t, bob, "confirm")

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	requestID := h.notifier.to(bob)[0].Buttons[0].Ref

	_, err = h.svc.CloseDialog(ctx, alice, out.Code)
	require.NoError(t, err)

	_, err = h.svc.RespondToConsent(ctx, requestID, bob, DecisionAccept)
	assert.ErrorIs(t, err, ErrDialogClosed)
	_, err = h.svc.RespondToConsent(ctx, requestID, bob, DecisionAccept)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestConsentAcceptWithUnreachableRecipient(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.setMode(t, bob, "confirm")

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	requestID := h.notifier.to(bob)[0].Buttons[0].Ref

	h.notifier.setDown(bob)
	_, err = h.svc.RespondToConsent(ctx, requestID, bob, DecisionAccept)
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, KindUnavailable, KindOf(err))

	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)
	assert.False(t, d.IsActive())
	assert.Zero(t, h.svc.timeouts.Pending())
	assert.Zero(t, h.store.deadlineCount())

	toAlice := h.notifier.to(alice)
	require.Len(t, toAlice, 1)
	assert.Equal(t, undeliveredText, toAlice[0].Text)

	for _, id := range []int64{alice, bob} {
		active, err := h.store.GetActiveDialog(ctx, id, models.DialogKindUser)
		require.NoError(t, err)
		assert.Nil(t, active, "user %d", id)
	}

	_, err = h.svc.RespondToConsent(ctx, requestID, bob, DecisionAccept)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// Alice is free to start over.
	_, err = h.svc.SubmitDirectMessage(ctx, alice, "carol", "hello carol")
	assert.NoError(t, err)
}

func TestConsentPromptUndelivered(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.setMode(t, bob, "confirm")
	h.notifier.setDown(bob)

	_, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Zero(t, h.svc.timeouts.Pending())

	for _, id := range []int64{alice, bob} {
		active, err := h.store.GetActiveDialog(ctx, id, models.DialogKindUser)
		require.NoError(t, err)
		assert.Nil(t, active, "user %d", id)
	}

	// Once Bob is reachable again a fresh dialog goes to consent as usual.
	h.notifier.setUp(bob)
	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello again bob")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingConsent, out.Status)
	assert.Equal(t, 2, h.store.dialogCount())
	require.Len(t, h.notifier.to(bob), 1)
}

func TestHeldMessageDroppedWhenConsentAlreadyPending(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.setMode(t, bob, "confirm")

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	require.Equal(t, 1, h.store.messageCount())
	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)

	// A second submission that slipped past the pending check loses the race.
	_, err = h.svc.manager.hold(ctx, d, alice, bob, "second message")
	assert.ErrorIs(t, err, ErrAwaitingConsent)
	assert.Equal(t, 1, h.store.messageCount())
	require.Len(t, h.notifier.to(bob), 1)
}

func TestRecipientRejectModeClosesExistingDialog(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)

	// Bob switches to reject behind the service's back; the next message closes the dialog.
	h.setMode(t, bob, "reject")
	_, err = h.svc.ReplyInDialog(ctx, alice, out.Code, "hello again")
	assert.ErrorIs(t, err, ErrRecipientBlocked)

	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)
	assert.False(t, d.IsActive())
	assert.Zero(t, h.store.deadlineCount())

	_, err = h.svc.ReplyInDialog(ctx, alice, out.Code, "hello again")
	assert.ErrorIs(t, err, ErrDialogClosed)
}

func TestSetPreferenceRejectForceCloses(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)

	res, err := h.svc.SetPreference(ctx, bob, models.ModeReject)
	require.NoError(t, err)
	assert.Equal(t, out.Code, res.Code)

	mode, err := h.svc.GetPreference(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, models.ModeReject, mode)

	toAlice := h.notifier.to(alice)
	require.Len(t, toAlice, 1)
	assert.Equal(t, dialogClosedText(out.Code), toAlice[0].Text)

	_, err = h.svc.SetPreference(ctx, bob, "never")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCloseDialogIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)

	_, err = h.svc.CloseDialog(ctx, carol, out.Code)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = h.svc.CloseDialog(ctx, bob, out.Code)
	require.NoError(t, err)
	_, err = h.svc.CloseDialog(ctx, alice, out.Code)
	require.NoError(t, err)

	// Alice was notified exactly once; Bob never, since he closed it.
	toAlice := h.notifier.to(alice)
	require.Len(t, toAlice, 1)
	assert.Equal(t, dialogClosedText(out.Code), toAlice[0].Text)
	assert.Len(t, h.notifier.to(bob), 1)
	assert.Zero(t, h.svc.timeouts.Pending())

	_, err = h.svc.CloseDialog(ctx, alice, "nope")
	assert.ErrorIs(t, err, ErrDialogNotFound)
}

func TestExitAndActiveDialog(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.ActiveDialog(ctx, alice)
	assert.ErrorIs(t, err, ErrNoActiveDialog)

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)

	active, err := h.svc.ActiveDialog(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, out.Code, active.Code)
	assert.Equal(t, models.DialogKindUser, active.Kind)

	_, err = h.svc.ExitDialog(ctx, bob)
	require.NoError(t, err)
	_, err = h.svc.ExitDialog(ctx, bob)
	assert.ErrorIs(t, err, ErrNoActiveDialog)

	// Both are free again.
	_, err = h.svc.SubmitDirectMessage(ctx, carol, "alice", "hello alice")
	assert.NoError(t, err)
}

func TestFailedFirstDeliveryFreesParties(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.notifier.setDown(bob)

	_, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	active, err := h.store.GetActiveDialog(ctx, alice, models.DialogKindUser)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStoreFailureIsInternal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.store.failAddMessage = assert.AnError

	_, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestReplyTimeoutClosesDialog(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ReplyTimeout = 30 * time.Millisecond })
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)

	waitFor(t, func() bool {
		d, err := h.store.GetDialogByCode(ctx, out.Code)
		return err == nil && !d.IsActive()
	})
	waitFor(t, func() bool { return len(h.notifier.to(alice)) == 1 && len(h.notifier.to(bob)) == 2 })

	assert.Equal(t, unansweredText, h.notifier.to(alice)[0].Text)
	assert.Equal(t, dialogExpiredText(out.Code), h.notifier.to(bob)[1].Text)
	assert.Zero(t, h.store.deadlineCount())
}

func TestReplyCancelsTimeout(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ReplyTimeout = 100 * time.Millisecond })
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)
	require.True(t, h.svc.timeouts.Armed(d.ID, bob))

	_, err = h.svc.ReplyInDialog(ctx, bob, out.Code, "hello alice")
	require.NoError(t, err)
	assert.False(t, h.svc.timeouts.Armed(d.ID, bob))
	assert.True(t, h.svc.timeouts.Armed(d.ID, alice))
	_, ok := h.store.deadline(d.ID, bob)
	assert.False(t, ok)

	// Now Alice is the silent one, so the expiry notices are addressed accordingly.
	waitFor(t, func() bool {
		got, err := h.store.GetDialog(ctx, d.ID)
		return err == nil && !got.IsActive()
	})
	waitFor(t, func() bool { return len(h.notifier.to(alice)) == 2 && len(h.notifier.to(bob)) == 2 })
	assert.Equal(t, unansweredText, h.notifier.to(bob)[1].Text)
	assert.Equal(t, dialogExpiredText(out.Code), h.notifier.to(alice)[1].Text)
}

func TestExpiryRechecksForReply(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.ReplyTimeout = 80 * time.Millisecond })
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)

	// Bob's reply lands in the store without going through the service, so
	// his timer is still armed when it fires.
	require.NoError(t, h.store.AddMessage(ctx, &models.Message{DialogID: d.ID, SenderID: bob, RecipientID: alice, Text: "hello alice"}))

	waitFor(t, func() bool { return h.svc.timeouts.Pending() == 0 && h.store.deadlineCount() == 0 })

	d, err = h.store.GetDialog(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, d.IsActive())
	assert.Empty(t, h.notifier.to(alice))
	assert.Len(t, h.notifier.to(bob), 1)
}

func TestRecoverRearmsPersistedDeadlines(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)

	// Simulate a restart: a fresh service over the same store with an overdue deadline.
	h.svc.Close()
	h.store.mu.Lock()
	for key, dl := range h.store.deadlines {
		dl.DueAt = time.Now().Add(-time.Second)
		h.store.deadlines[key] = dl
	}
	h.store.mu.Unlock()

	restarted := New(DefaultConfig(), h.store, h.notifier, h.resolver, nil, nil)
	defer restarted.Close()
	n, err := restarted.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	waitFor(t, func() bool {
		got, err := h.store.GetDialog(ctx, d.ID)
		return err == nil && !got.IsActive()
	})
}

func TestRecoverDropsDeadlineWithoutMessage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	d, err := h.store.GetDialogByCode(ctx, out.Code)
	require.NoError(t, err)

	require.NoError(t, h.store.SaveDeadline(ctx, &models.ReplyDeadline{
		DialogID:     d.ID,
		AwaitedID:    alice,
		MessageID:    "gone",
		LastSenderID: bob,
		DueAt:        time.Now().Add(-time.Second),
	}))
	n, err := h.svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	waitFor(t, func() bool {
		_, ok := h.store.deadline(d.ID, alice)
		return !ok
	})
	_, ok := h.store.deadline(d.ID, bob)
	assert.True(t, ok)

	d, err = h.store.GetDialog(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, d.IsActive())
}

func TestContactAdmins(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.AdminIDs = []int64{carol, root} })
	ctx := context.Background()

	out, err := h.svc.ContactAdmins(ctx, alice, "I need help please")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.Status)

	for _, id := range []int64{root, carol} {
		got := h.notifier.to(id)
		require.Len(t, got, 1, "admin %d", id)
		assert.Contains(t, got[0].Text, "I need help please")
	}

	// A secondary admin cannot answer; the primary responder can.
	_, err = h.svc.ReplyInDialog(ctx, carol, out.Code, "let me see")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = h.svc.ReplyInDialog(ctx, root, out.Code, "how can I help?")
	require.NoError(t, err)
	toAlice := h.notifier.to(alice)
	require.Len(t, toAlice, 1)
	assert.Contains(t, toAlice[0].Text, "how can I help?")
	assert.Zero(t, h.svc.timeouts.Pending())

	// The admin request does not occupy the user-dialog slot.
	_, err = h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	assert.NoError(t, err)

	again, err := h.svc.ContactAdmins(ctx, alice, "one more thing")
	require.NoError(t, err)
	assert.Equal(t, out.Code, again.Code)
}

func TestContactAdminsWithoutResponder(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.PrimaryResponderID = 0 })
	_, err := h.svc.ContactAdmins(context.Background(), alice, "I need help please")
	assert.ErrorIs(t, err, ErrNoResponder)
}

func TestPerformDispatchesActions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.setMode(t, bob, "confirm")

	out, err := h.svc.SubmitDirectMessage(ctx, alice, "bob", "hello bob")
	require.NoError(t, err)
	requestID := h.notifier.to(bob)[0].Buttons[0].Ref

	res, err := h.svc.Perform(ctx, ActionRequest{UserID: bob, Action: ActionAccept, Ref: requestID})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, res.Status)

	res, err = h.svc.Perform(ctx, ActionRequest{UserID: bob, Action: ActionReply, Ref: out.Code, Text: "hi alice"})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, res.Status)

	res, err = h.svc.Perform(ctx, ActionRequest{UserID: alice, Action: ActionClose, Ref: out.Code})
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, res.Status)

	_, err = h.svc.Perform(ctx, ActionRequest{UserID: alice, Action: "explode"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}
