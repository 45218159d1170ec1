package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anon-dialog-server/internal/models"
	"anon-dialog-server/internal/notify"
	"anon-dialog-server/internal/utils"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	Inbox *notify.Inbox
	Log   *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(inbox *notify.Inbox, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{Inbox: inbox, Log: log.Named("notifications")}
}

// ListNotificationsRequest represents the query params for listing notifications.
type ListNotificationsRequest struct {
	Unread bool   `form:"unread"`
	Since  string `form:"since"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// List returns the caller's notifications. With since it returns only newer
// ones, oldest first, for polling clients.
func (h *NotificationHandler) List(c *gin.Context) {
	var req ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequest(c, "Invalid request: "+utils.FormatValidationError(err))
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var (
		items []models.Notification
		err   error
	)
	if req.Since != "" {
		since, perr := time.Parse(time.RFC3339, req.Since)
		if perr != nil {
			utils.BadRequest(c, "Invalid timestamp format. Use RFC3339 format (e.g., 2006-01-02T15:04:05Z07:00)")
			return
		}
		items, err = h.Inbox.ListSince(c.Request.Context(), userID, since, req.Limit)
	} else {
		items, err = h.Inbox.List(c.Request.Context(), userID, req.Unread, req.Limit)
	}
	if err != nil {
		h.Log.Error("list notifications", zap.Int64("user", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch notifications")
		return
	}

	utils.Success(c, "Notifications fetched successfully", items)
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	err := h.Inbox.MarkRead(c.Request.Context(), userID, c.Param("id"))
	switch {
	case errors.Is(err, notify.ErrNotificationNotFound):
		utils.NotFound(c, "Notification not found")
	case err != nil:
		h.Log.Error("mark notification read", zap.Int64("user", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to update notification")
	default:
		utils.Success(c, "Notification marked as read", nil)
	}
}
