package config

import (
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Firebase
	FirebaseProjectID string
	FirebaseCredJSON  string

	// Users collection watched for status changes
	UsersCollection string

	// Trigger sources. Exactly one may be enabled, otherwise a commit is
	// delivered once per source. The watcher must run as a single replica.
	WatcherEnabled     bool
	HTTPTriggerEnabled bool // Requires TriggerAuthEnabled.
	TriggerAuthEnabled bool
	TriggerJWKSURL     string // Empty means dev mode, only allowed with GIN_MODE=debug.
	TriggerAudience    string
	NatsURL            string // Empty disables the NATS trigger.
	NatsSubject        string
	NatsQueueGroup     string

	// Push Notifications
	PushDryRun    bool // Validate messages with FCM without delivering them.
	PushDebugCurl bool // Log a curl reproduction of failed FCM requests.

	// Per-event deadline for directory lookup and send, in seconds
	HandleTimeoutSeconds int

	// Server
	ServerShutdownTimeoutSeconds int

	// Logging
	LogLevel  string
	LogFormat string

	// Settings that only come from the config file
	Triggers *TriggersConfig `yaml:"triggers"`
}

// TriggersConfig is the `triggers` section of the config file.
// Non-empty values override the environment.
type TriggersConfig struct {
	UsersCollection string `yaml:"users_collection"`
	NatsSubject     string `yaml:"nats_subject"`
	NatsQueueGroup  string `yaml:"nats_queue_group"`
}

var AppConfig *Config

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = FromEnv()

	configFilePath, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit {
		configFilePath = "config.yaml"
	}

	configFile, err := os.Open(configFilePath)
	defer func() {
		if configFile != nil {
			configFile.Close()
		}
	}()

	switch {
	case err == nil:
		log.Printf("Loading config file: %v", configFilePath)
		if err := LoadConfigFile(configFile, AppConfig); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		log.Printf("No config file at %v, using environment only", configFilePath)
	default:
		log.Fatalf("Failed to open config file: %v", err)
	}

	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if AppConfig.FirebaseCredJSON == "" {
		log.Println("Warning: FIREBASE_CRED_JSON is empty, falling back to application default credentials.")
	}

	if AppConfig.PushDryRun {
		log.Println("Push notifications run in dry-run mode, nothing will be delivered.")
	}

	log.Println("Firebase project ID: ", AppConfig.FirebaseProjectID)
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Firebase
		FirebaseProjectID: getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:  getEnvOrDefault("FIREBASE_CRED_JSON", ""),

		UsersCollection: getEnvOrDefault("USERS_COLLECTION", "users"),

		// Trigger sources
		WatcherEnabled:     getEnvOrDefault("WATCHER_ENABLED", "true") == "true",
		HTTPTriggerEnabled: getEnvOrDefault("HTTP_TRIGGER_ENABLED", "false") == "true",
		TriggerAuthEnabled: getEnvOrDefault("TRIGGER_AUTH_ENABLED", "false") == "true",
		TriggerJWKSURL:     getEnvOrDefault("TRIGGER_JWKS_URL", ""),
		TriggerAudience:    getEnvOrDefault("TRIGGER_AUDIENCE", ""),
		NatsURL:            getEnvOrDefault("NATS_URL", ""),
		NatsSubject:        getEnvOrDefault("NATS_SUBJECT", "users.status.changed"),
		NatsQueueGroup:     getEnvOrDefault("NATS_QUEUE_GROUP", "status-notifier"),

		// Push Notifications
		PushDryRun:    getEnvOrDefault("PUSH_DRY_RUN", "false") == "true",
		PushDebugCurl: getEnvOrDefault("PUSH_DEBUG_CURL", "false") == "true",

		HandleTimeoutSeconds: getEnvAsInt("HANDLE_TIMEOUT_SECONDS", 30),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// Validate checks settings that would make the service unusable.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}

	if c.UsersCollection == "" {
		return errors.New("users collection must not be empty")
	}

	triggers := c.enabledTriggers()
	if triggers == 0 {
		return errors.New("no trigger source enabled: set WATCHER_ENABLED, HTTP_TRIGGER_ENABLED or NATS_URL")
	}
	if triggers > 1 {
		return errors.New("only one trigger source may be enabled: WATCHER_ENABLED, HTTP_TRIGGER_ENABLED and NATS_URL are exclusive")
	}

	if c.HTTPTriggerEnabled {
		if !c.TriggerAuthEnabled {
			return errors.New("HTTP_TRIGGER_ENABLED requires TRIGGER_AUTH_ENABLED")
		}
		if c.TriggerJWKSURL == "" && c.GinMode != gin.DebugMode {
			return errors.New("TRIGGER_JWKS_URL is required unless GIN_MODE=debug")
		}
	}

	if c.NatsURL != "" && c.NatsSubject == "" {
		return errors.New("NATS_SUBJECT is required when NATS_URL is set")
	}

	if c.HandleTimeoutSeconds <= 0 {
		return errors.New("HANDLE_TIMEOUT_SECONDS must be positive")
	}

	return nil
}

func (c *Config) enabledTriggers() int {
	n := 0
	for _, enabled := range []bool{c.WatcherEnabled, c.HTTPTriggerEnabled, c.NatsURL != ""} {
		if enabled {
			n++
		}
	}
	return n
}

// HandleTimeout returns the per-event deadline.
func (c *Config) HandleTimeout() time.Duration {
	return time.Duration(c.HandleTimeoutSeconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

// LoadConfigFile decodes a YAML config file into config and applies its overrides.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	if t := config.Triggers; t != nil {
		if t.UsersCollection != "" {
			config.UsersCollection = t.UsersCollection
		}
		if t.NatsSubject != "" {
			config.NatsSubject = t.NatsSubject
		}
		if t.NatsQueueGroup != "" {
			config.NatsQueueGroup = t.NatsQueueGroup
		}
	}

	return nil
}
