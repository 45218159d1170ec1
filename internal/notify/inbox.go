package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"anon-dialog-server/internal/anon"
	"anon-dialog-server/internal/models"
)

// ErrNotificationNotFound is returned for ids that do not belong to the user.
var ErrNotificationNotFound = errors.New("notification not found")

// Inbox persists notifications and pushes them through the hub. It is the
// anon.Notifier used in production.
type Inbox struct {
	DB  *gorm.DB
	hub *Hub
	log *zap.Logger
}

var _ anon.Notifier = (*Inbox)(nil)

// NewInbox creates an inbox. A nil hub disables live delivery.
func NewInbox(db *gorm.DB, hub *Hub, log *zap.Logger) *Inbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Inbox{DB: db, hub: hub, log: log.Named("inbox")}
}

func encodeButtons(buttons []anon.Button) (datatypes.JSON, error) {
	if len(buttons) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(buttons)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// Send stores a notification for userID and pushes it to live connections.
func (i *Inbox) Send(ctx context.Context, userID int64, text string, buttons ...anon.Button) (string, error) {
	encoded, err := encodeButtons(buttons)
	if err != nil {
		return "", fmt.Errorf("encode buttons: %w", err)
	}
	n := models.Notification{UserID: userID, Text: text, Buttons: encoded}
	if err := i.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return "", fmt.Errorf("store notification: %w", err)
	}
	i.push(userID, EventCreated, &n)
	return n.ID, nil
}

// Edit replaces the text and buttons of one of userID's notifications.
func (i *Inbox) Edit(ctx context.Context, userID int64, notificationID, text string, buttons ...anon.Button) error {
	encoded, err := encodeButtons(buttons)
	if err != nil {
		return fmt.Errorf("encode buttons: %w", err)
	}
	var n models.Notification
	err = i.DB.WithContext(ctx).First(&n, "id = ? AND user_id = ?", notificationID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	if err := i.DB.WithContext(ctx).Model(&n).Updates(map[string]any{"text": text, "buttons": encoded}).Error; err != nil {
		return fmt.Errorf("edit notification: %w", err)
	}
	n.Text = text
	n.Buttons = encoded
	i.push(userID, EventUpdated, &n)
	return nil
}

func (i *Inbox) push(userID int64, typ EventType, n *models.Notification) {
	if i.hub == nil {
		return
	}
	if live := i.hub.Push(userID, Event{Type: typ, Notification: n}); live > 0 {
		i.log.Debug("notification pushed", zap.Int64("user", userID), zap.Int("connections", live))
	}
}

// List returns userID's newest notifications first.
func (i *Inbox) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := i.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var out []models.Notification
	if err := query.Order("created_at desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// ListSince returns userID's notifications created after since, oldest first.
// Clients without a websocket poll with it.
func (i *Inbox) ListSince(ctx context.Context, userID int64, since time.Time, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []models.Notification
	// Timestamps are written in local time; compare in the same zone.
	err := i.DB.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, since.Local()).
		Order("created_at asc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications since: %w", err)
	}
	return out, nil
}

// MarkRead marks one of userID's notifications as read.
func (i *Inbox) MarkRead(ctx context.Context, userID int64, notificationID string) error {
	res := i.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := i.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).Count(&count).Error; err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
