package httptransport

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"inkwell-server-go/internal/domain/auth"
	"inkwell-server-go/internal/platform/logging"
)

// SessionIDKey is the context key holding the verified session id.
const SessionIDKey = "session_id"

// BearerAuth validates the Authorization header against the session
// token helper and stores the verified session id on the context.
func BearerAuth(tokens *auth.SessionToken, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			RespondError(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}

		valid, sessionID, err := tokens.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || !valid {
			if logger != nil {
				logger.WarnTag("HTTP", "bearer token rejected: %v", err)
			}
			RespondError(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}

		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}
