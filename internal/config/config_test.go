package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "USERS_COLLECTION", "WATCHER_ENABLED", "HTTP_TRIGGER_ENABLED", "NATS_URL", "NATS_SUBJECT", "PUSH_DRY_RUN", "HANDLE_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.UsersCollection != "users" {
		t.Errorf("UsersCollection = %q, want users", cfg.UsersCollection)
	}
	if !cfg.WatcherEnabled {
		t.Error("WatcherEnabled = false, want true")
	}
	if cfg.NatsURL != "" {
		t.Errorf("NatsURL = %q, want empty", cfg.NatsURL)
	}
	if cfg.NatsSubject != "users.status.changed" {
		t.Errorf("NatsSubject = %q", cfg.NatsSubject)
	}
	if cfg.HTTPTriggerEnabled {
		t.Error("HTTPTriggerEnabled = true, want false")
	}
	if cfg.PushDryRun {
		t.Error("PushDryRun = true, want false")
	}
	if cfg.HandleTimeout() != 30*time.Second {
		t.Errorf("HandleTimeout() = %v, want 30s", cfg.HandleTimeout())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("USERS_COLLECTION", "members")
	t.Setenv("PUSH_DRY_RUN", "true")
	t.Setenv("HANDLE_TIMEOUT_SECONDS", "5")
	t.Setenv("WATCHER_ENABLED", "false")

	cfg := FromEnv()

	if cfg.UsersCollection != "members" {
		t.Errorf("UsersCollection = %q, want members", cfg.UsersCollection)
	}
	if !cfg.PushDryRun {
		t.Error("PushDryRun = false, want true")
	}
	if cfg.HandleTimeoutSeconds != 5 {
		t.Errorf("HandleTimeoutSeconds = %d, want 5", cfg.HandleTimeoutSeconds)
	}
	if cfg.WatcherEnabled {
		t.Error("WatcherEnabled = true, want false")
	}
}

func TestFromEnvBadInt(t *testing.T) {
	t.Setenv("HANDLE_TIMEOUT_SECONDS", "soon")

	if got := FromEnv().HandleTimeoutSeconds; got != 30 {
		t.Errorf("HandleTimeoutSeconds = %d, want default 30", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	configFile, err := os.Open("testdata/config.yaml")
	if err != nil {
		t.Fatalf("Failed to open config file: %v", err)
	}
	defer configFile.Close()

	cfg := &Config{UsersCollection: "users", NatsSubject: "users.status.changed", NatsQueueGroup: "status-notifier"}
	if err := LoadConfigFile(configFile, cfg); err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}

	if cfg.UsersCollection != "accounts" {
		t.Errorf("UsersCollection = %q, want accounts", cfg.UsersCollection)
	}
	if cfg.NatsSubject != "accounts.status.changed" {
		t.Errorf("NatsSubject = %q, want accounts.status.changed", cfg.NatsSubject)
	}
	if cfg.NatsQueueGroup != "status-notifier" {
		t.Errorf("NatsQueueGroup = %q, want it untouched", cfg.NatsQueueGroup)
	}
}

func TestLoadConfigFileEmpty(t *testing.T) {
	cfg := &Config{UsersCollection: "users"}
	if err := LoadConfigFile(strings.NewReader(""), cfg); err != nil {
		t.Fatalf("LoadConfigFile() error = %v", err)
	}
	if cfg.UsersCollection != "users" {
		t.Errorf("UsersCollection = %q, want users", cfg.UsersCollection)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			FirebaseProjectID:    "demo",
			UsersCollection:      "users",
			WatcherEnabled:       true,
			NatsSubject:          "users.status.changed",
			HandleTimeoutSeconds: 30,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing project", func(c *Config) { c.FirebaseProjectID = "" }, true},
		{"empty collection", func(c *Config) { c.UsersCollection = "" }, true},
		{"no triggers", func(c *Config) { c.WatcherEnabled = false }, true},
		{"nats only", func(c *Config) { c.WatcherEnabled = false; c.NatsURL = "nats://localhost:4222" }, false},
		{"nats without subject", func(c *Config) {
			c.WatcherEnabled = false
			c.NatsURL = "nats://localhost:4222"
			c.NatsSubject = ""
		}, true},
		{"watcher and nats", func(c *Config) { c.NatsURL = "nats://localhost:4222" }, true},
		{"watcher and http", func(c *Config) {
			c.HTTPTriggerEnabled = true
			c.TriggerAuthEnabled = true
			c.TriggerJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
		}, true},
		{"zero timeout", func(c *Config) { c.HandleTimeoutSeconds = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaultsHaveSingleTrigger(t *testing.T) {
	for _, key := range []string{"WATCHER_ENABLED", "HTTP_TRIGGER_ENABLED", "NATS_URL", "HANDLE_TIMEOUT_SECONDS", "USERS_COLLECTION"} {
		t.Setenv(key, "")
	}
	t.Setenv("FIREBASE_PROJECT_ID", "demo")

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := cfg.enabledTriggers(); got != 1 {
		t.Errorf("enabledTriggers() = %d, want 1", got)
	}
}

func TestValidateHTTPTriggerAuth(t *testing.T) {
	httpOnly := func() *Config {
		return &Config{
			FirebaseProjectID:    "demo",
			UsersCollection:      "users",
			GinMode:              gin.ReleaseMode,
			HTTPTriggerEnabled:   true,
			HandleTimeoutSeconds: 30,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"auth disabled", func(c *Config) {}, true},
		{"auth disabled in debug mode", func(c *Config) { c.GinMode = gin.DebugMode }, true},
		{"unverified tokens in release mode", func(c *Config) { c.TriggerAuthEnabled = true }, true},
		{"unverified tokens in debug mode", func(c *Config) {
			c.TriggerAuthEnabled = true
			c.GinMode = gin.DebugMode
		}, false},
		{"verified tokens", func(c *Config) {
			c.TriggerAuthEnabled = true
			c.TriggerJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := httpOnly()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
