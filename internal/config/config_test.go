package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might interfere
	os.Unsetenv("PORT")
	os.Unsetenv("HOST")
	os.Unsetenv("DATABASE_PATH")
	os.Unsetenv("HIDE_BELOW")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want \"0.0.0.0\"", cfg.Host)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("DatabaseDriver = %q, want \"sqlite\"", cfg.DatabaseDriver)
	}
	if cfg.DatabasePath != "gripeboard.db" {
		t.Errorf("DatabasePath = %q, want \"gripeboard.db\"", cfg.DatabasePath)
	}
	if cfg.VoteRateLimit != 120 {
		t.Errorf("VoteRateLimit = %d, want 120", cfg.VoteRateLimit)
	}
	if cfg.RateLimitWindow != time.Hour {
		t.Errorf("RateLimitWindow = %v, want 1h", cfg.RateLimitWindow)
	}
	if cfg.Moderation.FlagWeight != 2 {
		t.Errorf("FlagWeight = %d, want 2", cfg.Moderation.FlagWeight)
	}
	if cfg.Moderation.HideBelow != -5 {
		t.Errorf("HideBelow = %d, want -5", cfg.Moderation.HideBelow)
	}
	if cfg.Moderation.WhiningFlagLimit != 3 {
		t.Errorf("WhiningFlagLimit = %d, want 3", cfg.Moderation.WhiningFlagLimit)
	}
	if cfg.Moderation.RecomputeOnUpvote {
		t.Error("RecomputeOnUpvote should default to false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("HIDE_BELOW", "-10")
	t.Setenv("RECOMPUTE_ON_UPVOTE", "true")
	t.Setenv("SESSION_TTL", "2h")

	cfg := Load()

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want \"127.0.0.1\"", cfg.Host)
	}
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("DatabasePath = %q, want \"/tmp/test.db\"", cfg.DatabasePath)
	}
	if cfg.Moderation.HideBelow != -10 {
		t.Errorf("HideBelow = %d, want -10", cfg.Moderation.HideBelow)
	}
	if !cfg.Moderation.RecomputeOnUpvote {
		t.Error("RecomputeOnUpvote = false, want true")
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want 2h", cfg.SessionTTL)
	}
}

func TestGetEnvInvalidValues(t *testing.T) {
	// Invalid values should use defaults
	t.Setenv("PORT", "not-a-number")
	t.Setenv("RATE_LIMIT_WINDOW", "invalid")
	t.Setenv("RECOMPUTE_ON_UPVOTE", "maybe")

	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080 (default on invalid)", cfg.Port)
	}
	if cfg.RateLimitWindow != time.Hour {
		t.Errorf("RateLimitWindow = %v, want 1h (default on invalid)", cfg.RateLimitWindow)
	}
	if cfg.Moderation.RecomputeOnUpvote {
		t.Error("RecomputeOnUpvote should keep default on invalid")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gripeboard.toml")
	contents := `
port = 9090
database_driver = "postgres"
database_url = "postgres://localhost/gripeboard"
rate_limit_window = "30m"

[moderation]
hide_below = -8
whining_flag_limit = 5
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "7070")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070 (env wins over file)", cfg.Port)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("DatabaseDriver = %q, want \"postgres\"", cfg.DatabaseDriver)
	}
	if cfg.RateLimitWindow != 30*time.Minute {
		t.Errorf("RateLimitWindow = %v, want 30m", cfg.RateLimitWindow)
	}
	if cfg.Moderation.HideBelow != -8 {
		t.Errorf("HideBelow = %d, want -8", cfg.Moderation.HideBelow)
	}
	if cfg.Moderation.WhiningFlagLimit != 5 {
		t.Errorf("WhiningFlagLimit = %d, want 5", cfg.Moderation.WhiningFlagLimit)
	}
	if cfg.Moderation.FlagWeight != 2 {
		t.Errorf("FlagWeight = %d, want 2 (default kept)", cfg.Moderation.FlagWeight)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
