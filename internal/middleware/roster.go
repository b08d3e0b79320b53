package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/chravel/chravel-backend/internal/config"
)

// RosterToken returns a Gin handler that gates the roster sync endpoint with
// a shared machine token. The raw token is never stored server-side; only its
// bcrypt hash lives in configuration, so a leaked config file does not leak
// the credential.
//
// An empty configured hash disables roster sync entirely. The roster path is
// system-privileged, so it uses this token instead of a user JWT; no user
// actor is attached to the request.
func RosterToken(cfg *config.AuthConfig) gin.HandlerFunc {
	hash := []byte(cfg.RosterTokenHash)

	return func(c *gin.Context) {
		if len(hash) == 0 {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": "Roster sync is not enabled",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing sync token",
			})
			return
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid sync token",
			})
			return
		}

		c.Next()
	}
}
