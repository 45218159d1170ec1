package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anon-dialog-server/internal/models"
	"anon-dialog-server/internal/utils"
)

// UserHandler handles admin user management. Promoting a user to admin adds
// them to the admin inbox broadcast.
type UserHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB, log *zap.Logger) *UserHandler {
	return &UserHandler{DB: db, Log: log.Named("users")}
}

// GetUsers handles fetching all users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	var users []models.User
	if err := h.DB.Order("id").Find(&users).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch users: "+err.Error())
		return
	}

	sanitizedUsers := make([]models.UserSanitized, len(users))
	for i, u := range users {
		sanitizedUsers[i] = u.Sanitize()
	}

	utils.Success(c, "Users fetched successfully", sanitizedUsers)
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateRoleRequest represents the request body for changing a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin user"`
}

// UpdateUserRole changes a user's role (admin).
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	var req UpdateRoleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	if err := h.DB.Model(user).Update("role", models.Role(req.Role)).Error; err != nil {
		utils.InternalServerError(c, "Failed to update user: "+err.Error())
		return
	}
	user.Role = models.Role(req.Role)

	h.Log.Info("user role changed", zap.Int64("user", user.ID), zap.String("role", req.Role))
	utils.Success(c, "User updated successfully", user.Sanitize())
}

func (h *UserHandler) loadUser(c *gin.Context) (*models.User, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.BadRequest(c, "Invalid user ID")
		return nil, false
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &user, true
}
