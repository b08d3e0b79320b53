package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/chravel/chravel-backend/internal/config"
)

const (
	// UserIDKey is the gin.Context key under which the authenticated user's
	// ID is stored for handlers.
	UserIDKey = "user_id"
)

// Claims is the JWT claim set carried by Chravel bearer tokens. The subject
// is the user ID; trips, roles, and channel access are never encoded in the
// token because they change server-side between issuance and use.
type Claims struct {
	jwt.RegisteredClaims
}

// Auth returns a Gin handler that validates the Authorization bearer token
// and stores the authenticated user ID in the request context.
//
// Tokens are HS256 JWTs signed with auth.jwt_secret. The token carries only
// identity; every authorization decision is evaluated against the live ledger
// on each request.
func Auth(cfg *config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	issuer := cfg.JWTIssuer

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		userID, err := validateToken(token, secret, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func validateToken(tokenString string, secret []byte, issuer string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return claims.Subject, nil
}

// CurrentUserID returns the authenticated user ID set by Auth, or "" when the
// request was not authenticated.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
