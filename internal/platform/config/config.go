package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	RedisAddr   string

	// StepUpTokenSecret signs step-up capability tokens; ExportSigningKey
	// signs evidence package manifests.
	StepUpTokenSecret string
	ExportSigningKey  string
	ArchiveDir        string

	WatchdogStuckAfter    time.Duration
	WatchdogMaxRetries    int
	WatchdogOracleTimeout time.Duration
	WatchdogInterval      time.Duration

	EnableWatchdog    bool
	EnableAutoDefense bool
	EnableFeedRelay   bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "warden"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	tokenSecret := os.Getenv("STEPUP_TOKEN_SECRET")
	if tokenSecret == "" {
		tokenSecret = "warden-dev-stepup-secret"
	}
	exportKey := os.Getenv("EXPORT_SIGNING_KEY")
	if exportKey == "" {
		exportKey = "warden-dev-export-key"
	}
	archiveDir := os.Getenv("ARCHIVE_DIR")
	if archiveDir == "" {
		archiveDir = "./archives"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		StepUpTokenSecret: tokenSecret,
		ExportSigningKey:  exportKey,
		ArchiveDir:        archiveDir,

		WatchdogStuckAfter:    envDuration("WATCHDOG_STUCK_AFTER", 30*time.Second),
		WatchdogMaxRetries:    envInt("WATCHDOG_MAX_RETRIES", 2),
		WatchdogOracleTimeout: envDuration("WATCHDOG_ORACLE_TIMEOUT", 2*time.Second),
		WatchdogInterval:      envDuration("WATCHDOG_INTERVAL", 10*time.Second),

		EnableWatchdog:    envBool("ENABLE_WATCHDOG", true),
		EnableAutoDefense: envBool("ENABLE_AUTO_DEFENSE", true),
		EnableFeedRelay:   envBool("ENABLE_FEED_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
