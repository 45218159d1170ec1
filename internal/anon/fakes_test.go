package anon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"anon-dialog-server/internal/models"
)

// memStore is an in-memory Store with the same uniqueness rules as the SQL one.
type memStore struct {
	mu        sync.Mutex
	dialogs   map[string]*models.Dialog
	slots     map[int64]string
	messages  []*models.Message
	requests  map[string]*models.ConsentRequest
	prefs     map[int64]models.PreferenceMode
	deadlines map[timerKey]models.ReplyDeadline
	public    map[string]*models.PublicRequest

	failAddMessage error
}

func newMemStore() *memStore {
	return &memStore{
		dialogs:   make(map[string]*models.Dialog),
		slots:     make(map[int64]string),
		requests:  make(map[string]*models.ConsentRequest),
		prefs:     make(map[int64]models.PreferenceMode),
		deadlines: make(map[timerKey]models.ReplyDeadline),
		public:    make(map[string]*models.PublicRequest),
	}
}

func (s *memStore) CreateDialog(_ context.Context, d *models.Dialog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.dialogs {
		if other.Code == d.Code {
			return ErrDuplicateCode
		}
	}
	if d.Kind == models.DialogKindUser {
		if _, ok := s.slots[d.InitiatorID]; ok {
			return ErrActiveDialogExists
		}
		if _, ok := s.slots[d.TargetID]; ok {
			return ErrActiveDialogExists
		}
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.CreatedAt = time.Now()
	cp := *d
	s.dialogs[d.ID] = &cp
	if d.Kind == models.DialogKindUser {
		s.slots[d.InitiatorID] = d.ID
		s.slots[d.TargetID] = d.ID
	}
	return nil
}

func (s *memStore) GetDialog(_ context.Context, id string) (*models.Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) GetDialogByCode(_ context.Context, code string) (*models.Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dialogs {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) GetActiveDialog(_ context.Context, userID int64, kind models.DialogKind) (*models.Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Dialog
	for _, d := range s.dialogs {
		if d.Kind == kind && d.IsActive() && d.IsParticipant(userID) {
			if found == nil || d.CreatedAt.After(found.CreatedAt) {
				found = d
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (s *memStore) CloseDialog(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialogs[id]
	if !ok {
		return false, ErrNotFound
	}
	if !d.IsActive() {
		return false, nil
	}
	now := time.Now()
	d.Status = models.DialogStatusClosed
	d.ClosedAt = &now
	for user, dialogID := range s.slots {
		if dialogID == id {
			delete(s.slots, user)
		}
	}
	return true, nil
}

func (s *memStore) SetPartyConsent(_ context.Context, id string, role models.Party, status models.ConsentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialogs[id]
	if !ok {
		return ErrNotFound
	}
	d.SetConsent(role, status)
	return nil
}

func (s *memStore) MarkHeaderSent(_ context.Context, id string, role models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dialogs[id]
	if !ok {
		return ErrNotFound
	}
	d.SetHeaderSent(role)
	return nil
}

func (s *memStore) AddMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAddMessage != nil {
		return s.failAddMessage
	}
	m.ID = uuid.New().String()
	cp := *m
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *memStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) SetMessageDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			m.Delivered = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *memStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) HasReplySince(_ context.Context, dialogID, sinceMessageID string, awaitedID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := false
	for _, m := range s.messages {
		if m.ID == sinceMessageID {
			seen = true
			continue
		}
		if seen && m.DialogID == dialogID && m.SenderID == awaitedID {
			return true, nil
		}
	}
	if !seen {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *memStore) CreateConsentRequest(_ context.Context, r *models.ConsentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.PendingKey != nil {
		for _, other := range s.requests {
			if other.PendingKey != nil && *other.PendingKey == *r.PendingKey {
				return ErrPendingConsentExists
			}
		}
	}
	r.ID = uuid.New().String()
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *memStore) GetConsentRequest(_ context.Context, id string) (*models.ConsentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) GetPendingConsentRequest(_ context.Context, dialogID string, recipientID int64) (*models.ConsentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.DialogID == dialogID && r.RecipientID == recipientID && r.Status == models.ConsentPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) SetConsentPlaceholder(_ context.Context, id, placeholderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	r.PlaceholderID = placeholderID
	return nil
}

func (s *memStore) UpdateConsentRequestStatus(_ context.Context, id string, status models.ConsentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != models.ConsentPending {
		return false, nil
	}
	now := time.Now()
	r.Status = status
	r.PendingKey = nil
	r.ResolvedAt = &now
	return true, nil
}

func (s *memStore) GetPreference(_ context.Context, userID int64) (models.PreferenceMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs[userID], nil
}

func (s *memStore) SetPreference(_ context.Context, userID int64, mode models.PreferenceMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = mode
	return nil
}

func (s *memStore) CreatePublicRequest(_ context.Context, r *models.PublicRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.New().String()
	r.CreatedAt = time.Now()
	cp := *r
	s.public[r.ID] = &cp
	return nil
}

func (s *memStore) GetPublicRequest(_ context.Context, id string) (*models.PublicRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.public[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) TransitionPublicRequest(_ context.Context, id string, from, to models.PublicStatus, moderatorID int64, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.public[id]
	if !ok || r.Status != from {
		return false, nil
	}
	now := time.Now()
	r.Status = to
	r.ModeratorID = moderatorID
	r.Reason = reason
	r.ResolvedAt = &now
	return true, nil
}

func (s *memStore) SaveDeadline(_ context.Context, d *models.ReplyDeadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[timerKey{dialogID: d.DialogID, awaitedID: d.AwaitedID}] = *d
	return nil
}

func (s *memStore) DeleteDeadline(_ context.Context, dialogID string, awaitedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadlines, timerKey{dialogID: dialogID, awaitedID: awaitedID})
	return nil
}

func (s *memStore) DeleteDeadlineFor(_ context.Context, dialogID string, awaitedID int64, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := timerKey{dialogID: dialogID, awaitedID: awaitedID}
	if d, ok := s.deadlines[key]; ok && d.MessageID == messageID {
		delete(s.deadlines, key)
	}
	return nil
}

func (s *memStore) DeleteDialogDeadlines(_ context.Context, dialogID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.deadlines {
		if key.dialogID == dialogID {
			delete(s.deadlines, key)
		}
	}
	return nil
}

func (s *memStore) ListDeadlines(_ context.Context) ([]models.ReplyDeadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReplyDeadline, 0, len(s.deadlines))
	for _, d := range s.deadlines {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *memStore) deadlineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadlines)
}

func (s *memStore) deadline(dialogID string, awaitedID int64) (models.ReplyDeadline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deadlines[timerKey{dialogID: dialogID, awaitedID: awaitedID}]
	return d, ok
}

func (s *memStore) dialogCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}

// sent is one notification recorded by fakeNotifier.
type sent struct {
	ID      string
	UserID  int64
	Text    string
	Buttons []Button
}

type fakeNotifier struct {
	mu    sync.Mutex
	seq   int
	sent  []sent
	down  map[int64]bool
	edits map[string]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{down: make(map[int64]bool), edits: make(map[string]string)}
}

func (n *fakeNotifier) Send(_ context.Context, userID int64, text string, buttons ...Button) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down[userID] {
		return "", fmt.Errorf("user %d unreachable", userID)
	}
	n.seq++
	id := "n" + strconv.Itoa(n.seq)
	n.sent = append(n.sent, sent{ID: id, UserID: userID, Text: text, Buttons: buttons})
	return id, nil
}

func (n *fakeNotifier) Edit(_ context.Context, userID int64, notificationID, text string, _ ...Button) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down[userID] {
		return fmt.Errorf("user %d unreachable", userID)
	}
	for _, s := range n.sent {
		if s.ID == notificationID {
			n.edits[notificationID] = text
			return nil
		}
	}
	return errors.New("notification not found")
}

func (n *fakeNotifier) to(userID int64) []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sent
	for _, s := range n.sent {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (n *fakeNotifier) edited(notificationID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	text, ok := n.edits[notificationID]
	return text, ok
}

func (n *fakeNotifier) setDown(userID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down[userID] = true
}

func (n *fakeNotifier) setUp(userID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.down, userID)
}

type fakeResolver struct {
	users  map[string]int64
	admins []int64
}

func (r *fakeResolver) Resolve(_ context.Context, handle string) (int64, error) {
	if id, ok := r.users[handle]; ok {
		return id, nil
	}
	if id, err := strconv.ParseInt(handle, 10, 64); err == nil {
		for _, known := range r.users {
			if known == id {
				return id, nil
			}
		}
	}
	return 0, ErrNotFound
}

func (r *fakeResolver) AdminIDs(context.Context) ([]int64, error) {
	return r.admins, nil
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
