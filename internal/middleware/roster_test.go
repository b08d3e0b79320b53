package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/chravel/chravel-backend/internal/config"
)

func newRosterRouter(t *testing.T, rawToken string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AuthConfig{}
	if rawToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt: %v", err)
		}
		cfg.RosterTokenHash = string(hash)
	}

	r := gin.New()
	r.Use(RosterToken(cfg))
	r.POST("/sync", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doSync(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRosterToken_ValidTokenPasses(t *testing.T) {
	r := newRosterRouter(t, "machine-token-123")

	if w := doSync(r, "Bearer machine-token-123"); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRosterToken_WrongTokenRejected(t *testing.T) {
	r := newRosterRouter(t, "machine-token-123")

	if w := doSync(r, "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRosterToken_MissingTokenRejected(t *testing.T) {
	r := newRosterRouter(t, "machine-token-123")

	if w := doSync(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRosterToken_DisabledWhenNoHashConfigured(t *testing.T) {
	r := newRosterRouter(t, "")

	if w := doSync(r, "Bearer anything"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when roster sync is disabled, got %d", w.Code)
	}
}
