package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Log sink selection for the remote log shipper.
const (
	LogSinkNone = "none"
	LogSinkHTTP = "http"
	LogSinkAMQP = "amqp"
)

type Config struct {
	// Local dashboard server
	Port string

	// Remote finance backend
	APIBaseURL     string
	RequestTimeout time.Duration
	// Requests per second allowed against the backend (burst is twice this).
	APIRateLimit float64

	// OAuth
	OAuthClientFile string
	OAuthClientJSON string
	OAuthTokenFile  string

	// Local store (asset values, settings)
	StorePath string

	// Transactions view
	PageSize int

	// Remote log shipping
	LogSink          string
	LogBatchSize     int
	LogFlushInterval time.Duration
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8090"),

		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		RequestTimeout: getEnvDuration("API_REQUEST_TIMEOUT", 30*time.Second),
		APIRateLimit:   getEnvFloat("API_RATE_LIMIT", 10),

		OAuthClientFile: getEnv("OAUTH_CLIENT_FILE", ""),
		OAuthClientJSON: getEnv("OAUTH_CLIENT_JSON", ""),
		OAuthTokenFile:  getEnv("OAUTH_TOKEN_FILE", "token.json"),

		StorePath: getEnv("STORE_PATH", "./data/fintrack.db"),

		PageSize: getEnvInt("PAGE_SIZE", 10),

		LogSink:          getEnv("LOG_SINK", LogSinkNone),
		LogBatchSize:     getEnvInt("LOG_BATCH_SIZE", 10),
		LogFlushInterval: getEnvDuration("LOG_FLUSH_INTERVAL", 5*time.Second),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:        getEnv("AMQP_QUEUE", "client_logs"),
	}
}

// Validate checks the configuration and returns a single error listing every
// problem found.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if u, err := url.Parse(c.APIBaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("invalid API base URL scheme '%s': must be http or https", u.Scheme))
	}

	if c.RequestTimeout < time.Second || c.RequestTimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid request timeout %v: must be between 1s and 5m", c.RequestTimeout))
	}
	if c.APIRateLimit <= 0 {
		errs = append(errs, fmt.Sprintf("invalid API rate limit %v: must be positive", c.APIRateLimit))
	}

	if c.PageSize < 1 || c.PageSize > 500 {
		errs = append(errs, fmt.Sprintf("invalid page size %d: must be between 1 and 500", c.PageSize))
	}

	if c.StorePath == "" {
		errs = append(errs, "store path cannot be empty")
	} else if dir := filepath.Dir(c.StorePath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create store directory '%s': %v", dir, err))
			}
		}
	}

	switch c.LogSink {
	case LogSinkNone, LogSinkHTTP:
	case LogSinkAMQP:
		if c.AMQPURL == "" {
			errs = append(errs, "AMQP URL is required when log sink is 'amqp'")
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when log sink is 'amqp'")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when log sink is 'amqp'")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid log sink '%s': must be one of [%s %s %s]", c.LogSink, LogSinkNone, LogSinkHTTP, LogSinkAMQP))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
	}

	if c.LogSink != LogSinkNone {
		if c.LogBatchSize < 1 || c.LogBatchSize > 1000 {
			errs = append(errs, fmt.Sprintf("invalid log batch size %d: must be between 1 and 1000", c.LogBatchSize))
		}
		if c.LogFlushInterval < time.Second || c.LogFlushInterval > time.Hour {
			errs = append(errs, fmt.Sprintf("invalid log flush interval %v: must be between 1s and 1h", c.LogFlushInterval))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
