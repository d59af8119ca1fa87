package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vetrai/auth-service/internal/middleware"
	"github.com/vetrai/auth-service/internal/models"
	"github.com/vetrai/auth-service/internal/services"
	"github.com/vetrai/auth-service/pkg/logger"
	"github.com/vetrai/auth-service/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
}

func NewAuthHandler(authService *services.AuthService, userService *services.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

type tokenPairResponse struct {
	AccessToken     string       `json:"access_token"`
	AccessExpireAt  time.Time    `json:"access_expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	response.Created(c, tokenPairResponse{
		AccessToken:     result.AccessToken,
		AccessExpireAt:  result.AccessExpireAt,
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt,
		User:            result.User,
	})
}

// Refresh handles POST /api/auth/refresh: single-use rotation of the
// presented refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err.Error())
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	response.OK(c, tokenPairResponse{
		AccessToken:     result.AccessToken,
		AccessExpireAt:  result.AccessExpireAt,
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt,
	})
}

// Logout handles POST /api/auth/logout. Idempotent: a second logout with the
// same token still answers 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err.Error())
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent()); err != nil {
		h.writeAuthError(c, err)
		return
	}

	response.OK(c, gin.H{"message": "logged_out"})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			response.Error(c, response.NewConflict("email_taken", "email already registered"))
		case errors.Is(err, services.ErrWeakPassword):
			response.BadRequest(c, "weak_password", "password must be at least 8 characters with upper, lower and digit")
		default:
			logger.Error().Err(err).Msg("registration failed")
			response.Error(c, err)
		}
		return
	}

	response.Created(c, user)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		response.Unauthorized(c, "invalid_token")
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), *userCtx, userCtx.UserID)
	if err != nil {
		response.Error(c, response.NewNotFound("user_not_found"))
		return
	}
	response.OK(c, user)
}

// UpdateMe handles PUT /api/auth/me.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		response.Unauthorized(c, "invalid_token")
		return
	}

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// ChangePassword handles POST /api/auth/change-password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		response.Unauthorized(c, "invalid_token")
		return
	}

	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err.Error())
		return
	}

	err := h.userService.ChangePassword(c.Request.Context(), userCtx.UserID, &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			response.BadRequest(c, "invalid_credentials", "incorrect old password")
		case errors.Is(err, services.ErrWeakPassword):
			response.BadRequest(c, "weak_password", "password must be at least 8 characters with upper, lower and digit")
		default:
			response.Error(c, err)
		}
		return
	}

	response.OK(c, gin.H{"message": "password_changed"})
}

// writeAuthError maps the service error taxonomy to its external shape.
// Invalid credentials and invalid tokens stay generic; an ambiguous store
// outage is a 503, never a 401.
func (h *AuthHandler) writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Unauthorized(c, "invalid_credentials")
	case errors.Is(err, services.ErrTokenInvalid):
		response.Unauthorized(c, "invalid_token")
	case errors.Is(err, services.ErrStoreUnavailable):
		logger.Error().Err(err).Msg("auth store unavailable")
		c.JSON(503, response.ErrorBody{Error: "service_unavailable"})
	default:
		logger.Error().Err(err).Msg("auth request failed")
		response.Error(c, err)
	}
}
