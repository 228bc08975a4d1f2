package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for floating point values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// GetEnvBool accepts the forms strconv.ParseBool does.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration parses values such as "5s" or "250ms".
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// Config is the server configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	APIURL        string
	APIRatePerSec float64
	APIBurst      int

	AnalyticsEnabled       bool
	AnalyticsEndpoint      string
	AutoFullscreenOnUpdate bool
	AttachFailurePolicy    string
	AttachTimeout          time.Duration
	ResizeMode             string

	OpenSessionsPerMinute int
}

// FromEnv builds a Config from the environment, applying defaults.
func FromEnv() Config {
	return Config{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		APIURL:        GetEnv("BOXCAST_API_URL", "https://rest.boxcast.com"),
		APIRatePerSec: GetEnvFloat("BOXCAST_RATE_PER_SEC", 10),
		APIBurst:      GetEnvInt("BOXCAST_RATE_BURST", 20),

		AnalyticsEnabled:       GetEnvBool("ANALYTICS_ENABLED", true),
		AnalyticsEndpoint:      GetEnv("ANALYTICS_ENDPOINT", "https://metrics.boxcast.com/player/interaction"),
		AutoFullscreenOnUpdate: GetEnvBool("AUTO_FULLSCREEN_ON_UPDATE", false),
		AttachFailurePolicy:    GetEnv("ATTACH_FAILURE_POLICY", "continue"),
		AttachTimeout:          GetEnvDuration("ATTACH_TIMEOUT", 5*time.Second),
		ResizeMode:             GetEnv("RESIZE_MODE", "contain"),

		OpenSessionsPerMinute: GetEnvInt("OPEN_SESSIONS_PER_MINUTE", 60),
	}
}
