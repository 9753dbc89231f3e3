package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"expenses/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Remote expense API
	APIBaseURL string
	APITimeout time.Duration

	// Sessions
	SessionBackend        string
	SQLiteDBPath          string
	SessionTTL            time.Duration
	SessionVerifyInterval time.Duration
	CookieSecure          bool

	// Views
	PerPage             int
	SummaryDefaultYear  string
	SummaryDefaultMonth string
	FilterYears         []string

	// Rate limiting for mutating requests
	RateLimitPerMinute int

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Telemetry (optional; empty endpoint disables export)
	OTLPEndpoint string
	ServiceName  string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadDotEnv loads a .env file when present. Real environment variables win.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

func Load() *Config {
	now := time.Now()
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:5555"),
		APITimeout: getEnvDuration("API_TIMEOUT", 10*time.Second),

		SessionBackend:        getEnv("SESSION_BACKEND", "memory"),
		SQLiteDBPath:          getEnv("SQLITE_DB_PATH", "./data/sessions.db"),
		SessionTTL:            getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionVerifyInterval: getEnvDuration("SESSION_VERIFY_INTERVAL", 5*time.Minute),
		CookieSecure:          getEnvBool("COOKIE_SECURE", false),

		PerPage:             getEnvInt("PER_PAGE", core.DefaultPerPage),
		SummaryDefaultYear:  getEnv("SUMMARY_DEFAULT_YEAR", strconv.Itoa(now.Year())),
		SummaryDefaultMonth: getEnv("SUMMARY_DEFAULT_MONTH", fmt.Sprintf("%02d", int(now.Month()))),
		FilterYears:         getEnvList("FILTER_YEARS", core.YearOptions(now.Year())),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "expense.changed"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "expenses-web"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.APIBaseURL == "" {
		errors = append(errors, "API base URL cannot be empty")
	} else if u, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.APITimeout < 100*time.Millisecond || c.APITimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 100ms and 2m", c.APITimeout))
	}

	switch c.SessionBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite session backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of [memory sqlite]", c.SessionBackend))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionVerifyInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid session verify interval %v: must not be negative", c.SessionVerifyInterval))
	}

	if c.PerPage < 1 || c.PerPage > 100 {
		errors = append(errors, fmt.Sprintf("invalid per page %d: must be between 1 and 100", c.PerPage))
	}
	if _, err := core.NormalizeYear(c.SummaryDefaultYear); err != nil {
		errors = append(errors, fmt.Sprintf("invalid summary default year '%s'", c.SummaryDefaultYear))
	}
	if _, err := core.NormalizeMonth(c.SummaryDefaultMonth); err != nil {
		errors = append(errors, fmt.Sprintf("invalid summary default month '%s'", c.SummaryDefaultMonth))
	}
	for _, y := range c.FilterYears {
		if _, err := core.NormalizeYear(y); err != nil || y == "" {
			errors = append(errors, fmt.Sprintf("invalid filter year '%s'", y))
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
