package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "standard config",
			cfg: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "chravel",
				Password: "secret",
				Name:     "chravel",
				SSLMode:  "require",
			},
			want: "host=localhost port=5432 user=chravel password=secret dbname=chravel sslmode=require",
		},
		{
			name: "empty password",
			cfg: DatabaseConfig{
				Host:     "db.example.com",
				Port:     5433,
				User:     "admin",
				Password: "",
				Name:     "mydb",
				SSLMode:  "disable",
			},
			want: "host=db.example.com port=5433 user=admin password= dbname=mydb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetDSN(); got != tt.want {
				t.Errorf("GetDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAddress(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if got := cfg.GetAddress(); got != "0.0.0.0:8080" {
		t.Errorf("GetAddress() = %q, want 0.0.0.0:8080", got)
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_DefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("CHRV_AUTH_JWT_SECRET", "env-secret")

	cfg, err := Load(writeTempConfig(t, "{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("expected default ssl_mode require, got %s", cfg.Database.SSLMode)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Logging.Level)
	}
	if cfg.Engine.AutoProvisionMembership {
		t.Error("auto-provisioning must default to off")
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected env-provided secret, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CHRV_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("CHRV_SERVER_PORT", "9191")
	t.Setenv("CHRV_LOGGING_LEVEL", "debug")

	path := writeTempConfig(t, "server:\n  port: 8081\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("expected env port 9191 to win over file, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level from env, got %s", cfg.Logging.Level)
	}
}

func TestLoad_FileValues(t *testing.T) {
	t.Setenv("CHRV_AUTH_JWT_SECRET", "env-secret")

	path := writeTempConfig(t, `
engine:
  super_admins:
    - user-root
  auto_provision_membership: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Engine.SuperAdmins) != 1 || cfg.Engine.SuperAdmins[0] != "user-root" {
		t.Errorf("super_admins not loaded: %v", cfg.Engine.SuperAdmins)
	}
	if !cfg.Engine.AutoProvisionMembership {
		t.Error("auto_provision_membership not loaded")
	}
}

func TestLoad_SecretExpansion(t *testing.T) {
	t.Setenv("CHRV_AUTH_JWT_SECRET", "${REAL_SECRET}")
	t.Setenv("REAL_SECRET", "expanded-value")

	cfg, err := Load(writeTempConfig(t, "{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.JWTSecret != "expanded-value" {
		t.Errorf("expected ${REAL_SECRET} to expand, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_MissingJWTSecretRejected(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "{}")); err == nil {
		t.Error("expected validation error without auth.jwt_secret")
	}
}

func TestLoad_InvalidLoggingLevelRejected(t *testing.T) {
	t.Setenv("CHRV_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("CHRV_LOGGING_LEVEL", "verbose")

	if _, err := Load(writeTempConfig(t, "{}")); err == nil {
		t.Error("expected validation error for bogus logging level")
	}
}

func TestLoad_InvalidPortRejected(t *testing.T) {
	t.Setenv("CHRV_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("CHRV_SERVER_PORT", "99999")

	if _, err := Load(writeTempConfig(t, "{}")); err == nil {
		t.Error("expected validation error for out-of-range port")
	}
}

func writeTempConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
