package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vetrai/auth-service/internal/services"
)

// AuditWrites records admin write operations (POST/PUT/DELETE) to the audit
// sink after the handler runs. Request bodies are never captured: on this
// service they carry passwords and tokens.
func AuditWrites(sink services.AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "DELETE" {
			c.Next()
			return
		}

		c.Next()

		event := services.AuditEvent{
			Action:    "admin_" + methodAction(method),
			Details:   method + " " + c.FullPath() + " -> " + strconv.Itoa(c.Writer.Status()),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if userCtx, ok := GetUserContext(c); ok {
			event.UserID = &userCtx.UserID
			event.OrganizationID = &userCtx.OrganizationID
		}
		sink.Emit(c.Request.Context(), event)
	}
}

func methodAction(method string) string {
	switch method {
	case "POST":
		return "create"
	case "PUT":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return method
	}
}
