package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anon-dialog-server/internal/anon"
	"anon-dialog-server/internal/middleware"
	"anon-dialog-server/internal/models"
	"anon-dialog-server/internal/utils"
)

// AnonHandler exposes the anonymous dialog engine over HTTP.
type AnonHandler struct {
	Service *anon.Service
	Log     *zap.Logger
}

// NewAnonHandler creates a new AnonHandler.
func NewAnonHandler(service *anon.Service, log *zap.Logger) *AnonHandler {
	return &AnonHandler{Service: service, Log: log.Named("anon-http")}
}

// DirectMessageRequest starts or continues a dialog with target, which is a
// numeric user ID or a username with an optional leading "@".
type DirectMessageRequest struct {
	Target string `json:"target" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// TextRequest carries the text of a reply or an admin inbox message.
type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// ConsentRequest answers a consent request.
type ConsentRequest struct {
	Decision string `json:"decision" binding:"required,oneof=accept reject"`
}

// ModerationRequest approves or rejects a public post.
type ModerationRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
}

// PreferenceRequest changes the caller's preference mode.
type PreferenceRequest struct {
	Mode string `json:"mode" binding:"required,oneof=auto confirm reject"`
}

// ActionRequest is a button press forwarded by a client.
type ActionRequest struct {
	Action string `json:"action" binding:"required,oneof=reply close accept reject approve decline"`
	Ref    string `json:"ref" binding:"required"`
	Text   string `json:"text"`
}

// SendDirect handles submit_direct_message.
func (h *AnonHandler) SendDirect(c *gin.Context) {
	var req DirectMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.SubmitDirectMessage(c.Request.Context(), userID, req.Target, req.Text)
	h.respond(c, out, err)
}

// ContactAdmins handles a message to the admin inbox.
func (h *AnonHandler) ContactAdmins(c *gin.Context) {
	var req TextRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.ContactAdmins(c.Request.Context(), userID, req.Text)
	h.respond(c, out, err)
}

// SubmitPublic queues a post for moderation.
func (h *AnonHandler) SubmitPublic(c *gin.Context) {
	var req TextRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.SubmitPublic(c.Request.Context(), userID, req.Text)
	h.respond(c, out, err)
}

// ModeratePublic publishes or rejects a queued post.
func (h *AnonHandler) ModeratePublic(c *gin.Context) {
	var req ModerationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.ModeratePublic(c.Request.Context(), userID, c.Param("id"), req.Decision == "approve")
	h.respond(c, out, err)
}

// Reply handles reply_in_dialog.
func (h *AnonHandler) Reply(c *gin.Context) {
	var req TextRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.ReplyInDialog(c.Request.Context(), userID, c.Param("code"), req.Text)
	h.respond(c, out, err)
}

// Close handles close_dialog.
func (h *AnonHandler) Close(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.CloseDialog(c.Request.Context(), userID, c.Param("code"))
	h.respond(c, out, err)
}

// Exit closes whatever dialog the caller is in.
func (h *AnonHandler) Exit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.ExitDialog(c.Request.Context(), userID)
	h.respond(c, out, err)
}

// ActiveDialog returns the caller's current dialog.
func (h *AnonHandler) ActiveDialog(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	active, err := h.Service.ActiveDialog(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "Active dialog fetched successfully", active)
}

// Consent handles respond_to_consent.
func (h *AnonHandler) Consent(c *gin.Context) {
	var req ConsentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.RespondToConsent(c.Request.Context(), c.Param("id"), userID, anon.Decision(req.Decision))
	h.respond(c, out, err)
}

// GetPreference returns the caller's preference mode.
func (h *AnonHandler) GetPreference(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	mode, err := h.Service.GetPreference(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "Preference fetched successfully", gin.H{"mode": mode})
}

// SetPreference handles set_preference.
func (h *AnonHandler) SetPreference(c *gin.Context) {
	var req PreferenceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.SetPreference(c.Request.Context(), userID, models.PreferenceMode(req.Mode))
	h.respond(c, out, err)
}

// Action dispatches a notification button press.
func (h *AnonHandler) Action(c *gin.Context) {
	var req ActionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	out, err := h.Service.Perform(c.Request.Context(), anon.ActionRequest{
		UserID: userID,
		Action: anon.Action(req.Action),
		Ref:    req.Ref,
		Text:   req.Text,
	})
	h.respond(c, out, err)
}

func (h *AnonHandler) respond(c *gin.Context, out *anon.Outcome, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, out.Message, out)
}

// respondError maps engine error kinds onto HTTP statuses.
func (h *AnonHandler) respondError(c *gin.Context, err error) {
	var e *anon.Error
	if !errors.As(err, &e) {
		h.Log.Error("unexpected error", zap.Error(err))
		utils.InternalServerError(c, "Something went wrong. Try again later.")
		return
	}

	switch e.Kind {
	case anon.KindRateLimited:
		utils.TooManyRequests(c, e.Message, e.RetryAfter)
	case anon.KindValidation:
		utils.BadRequest(c, e.Message)
	case anon.KindUserNotFound, anon.KindNotFound:
		utils.NotFound(c, e.Message)
	case anon.KindNotParticipant:
		utils.Forbidden(c, e.Message)
	case anon.KindAlreadyProcessed:
		// A repeated button press is not a failure from the client's point of view.
		utils.Success(c, e.Message, gin.H{"status": e.Kind})
	case anon.KindUnavailable:
		utils.ServiceUnavailable(c, e.Message)
	case anon.KindAlreadyInDialog, anon.KindAwaitingConsent, anon.KindConsentDeclined,
		anon.KindDialogClosed, anon.KindSelfBlocked, anon.KindRecipientBlocked:
		utils.Conflict(c, e.Message)
	default:
		h.Log.Error("internal error", zap.Error(err))
		utils.InternalServerError(c, e.Message)
	}
}

func requireUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
	}
	return userID, ok
}
