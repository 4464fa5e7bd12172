package auth

import (
	"log/slog"
	"strings"

	apierrors "github.com/eternisai/status-notifier/internal/errors"
	"github.com/eternisai/status-notifier/internal/logger"
	"github.com/gin-gonic/gin"
)

// CallerKey is the gin context key holding the authenticated caller.
const CallerKey = "caller"

// RequireBearer rejects requests without a valid bearer token.
func RequireBearer(validator TokenValidator, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apierrors.AbortWithUnauthorized(c, "Authorization header is required", nil)
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			apierrors.AbortWithUnauthorized(c, "Authorization header must be a Bearer token", nil)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			apierrors.AbortWithUnauthorized(c, "Bearer token is empty", nil)
			return
		}

		caller, err := validator.ValidateToken(token)
		if err != nil {
			log.WithContext(c.Request.Context()).WithComponent("trigger-auth").Warn("rejected trigger request",
				slog.String("error", err.Error()))
			apierrors.AbortWithUnauthorized(c, "Invalid or expired token", nil)
			return
		}

		c.Set(CallerKey, caller)
		c.Next()
	}
}

// GetCaller returns the authenticated caller from the gin context.
func GetCaller(c *gin.Context) (string, bool) {
	caller, exists := c.Get(CallerKey)
	if !exists {
		return "", false
	}
	s, ok := caller.(string)
	return s, ok
}
