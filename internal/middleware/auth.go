package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vetrai/auth-service/internal/services"
	"github.com/vetrai/auth-service/pkg/logger"
	"github.com/vetrai/auth-service/pkg/response"
)

const contextUser = "auth_user_context"

// AuthRequired validates the Bearer access token against the token store and
// binds the resolved UserContext to the request. Every failure shape —
// missing header, unknown hash, expired, revoked — answers the same 401; a
// store outage answers 503 instead, because it is not a verdict.
func AuthRequired(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}

		userCtx, err := auth.Validate(c.Request.Context(), parts[1])
		if err != nil {
			if errors.Is(err, services.ErrStoreUnavailable) {
				logger.Error().Err(err).Msg("token validation unavailable")
				c.JSON(http.StatusServiceUnavailable, response.ErrorBody{Error: "service_unavailable"})
			} else {
				response.Unauthorized(c, "invalid_token")
			}
			c.Abort()
			return
		}

		c.Set(contextUser, userCtx)
		c.Next()
	}
}

// RequireRole gates a route group on a minimum role rank. Must run after
// AuthRequired.
func RequireRole(minimum services.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, ok := GetUserContext(c)
		if !ok {
			response.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}
		if err := services.RequireRole(*userCtx, minimum); err != nil {
			response.Forbidden(c, "insufficient_role")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserContext returns the authenticated identity bound by AuthRequired.
func GetUserContext(c *gin.Context) (*services.UserContext, bool) {
	v, exists := c.Get(contextUser)
	if !exists {
		return nil, false
	}
	userCtx, ok := v.(*services.UserContext)
	return userCtx, ok
}
