package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vetrai/auth-service/internal/middleware"
	"github.com/vetrai/auth-service/internal/services"
	"github.com/vetrai/auth-service/pkg/response"
)

// UserHandler exposes admin user management. Rank is gated by route
// middleware; organization scope is enforced in the service layer.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid_request", "invalid user id")
		return 0, false
	}
	return uint(id), true
}

// List handles GET /api/users.
func (h *UserHandler) List(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		response.Unauthorized(c, "invalid_token")
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	users, total, err := h.userService.List(c.Request.Context(), *userCtx, offset, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.OK(c, gin.H{
		"total": total,
		"items": users,
	})
}

// Get handles GET /api/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		response.Unauthorized(c, "invalid_token")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), *userCtx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, user)
}

// Update handles PUT /api/users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		response.Unauthorized(c, "invalid_token")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err.Error())
		return
	}

	user, err := h.userService.AdminUpdate(c.Request.Context(), *userCtx, id, &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, user)
}

// Deactivate handles DELETE /api/users/:id. Accounts are soft-deactivated
// and their tokens revoked; records are never physically removed.
func (h *UserHandler) Deactivate(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		response.Unauthorized(c, "invalid_token")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.userService.Deactivate(c.Request.Context(), *userCtx, id, c.ClientIP(), c.Request.UserAgent()); err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "user_deactivated"})
}

func (h *UserHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		response.Error(c, response.NewNotFound("user_not_found"))
	case errors.Is(err, services.ErrInsufficientRole):
		response.Forbidden(c, "insufficient_role")
	default:
		response.Error(c, err)
	}
}
