package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LedgerPostgres = "postgres"
	LedgerSQLite   = "sqlite"

	CorrelationMemory = "memory"
	CorrelationRedis  = "redis"
)

type Settings struct {
	Port string

	DarajaBaseURL    string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	Passkey          string
	CallbackURL      string
	TransactionType  string
	AccountReference string
	TransactionDesc  string
	UpstreamTimeout  time.Duration

	PhoneCountryCode  string
	PhoneTrunkPrefix  string
	TimestampLocation *time.Location

	LedgerDriver string
	ConnString   string
	SQLitePath   string

	RedisURL string

	CorrelationBackend       string
	CorrelationTTL           time.Duration
	CorrelationSweepInterval time.Duration

	CallbackSecret string
	WorkerPoolSize int
}

// LoadDotEnv reads a .env file into the process environment when one exists.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
}

func LoadEnvironmentConfig() (*Settings, error) {
	loc, err := time.LoadLocation(getEnv("TIMESTAMP_LOCATION", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("TIMESTAMP_LOCATION: %w", err)
	}

	s := &Settings{
		Port: getEnv("PORT", "8000"),

		DarajaBaseURL:    strings.TrimRight(getEnv("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke"), "/"),
		ConsumerKey:      os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret:   os.Getenv("MPESA_CONSUMER_SECRET"),
		ShortCode:        getEnv("MPESA_SHORTCODE", os.Getenv("MPESA_TILL")),
		Passkey:          os.Getenv("MPESA_PASSKEY"),
		CallbackURL:      os.Getenv("CALLBACK_URL"),
		TransactionType:  getEnv("MPESA_TRANSACTION_TYPE", "CustomerBuyGoodsOnline"),
		AccountReference: getEnv("MPESA_ACCOUNT_REFERENCE", "STK Relay"),
		TransactionDesc:  getEnv("MPESA_TRANSACTION_DESC", "Buy Goods Payment"),
		UpstreamTimeout:  getDurationEnv("UPSTREAM_TIMEOUT", 30*time.Second),

		PhoneCountryCode:  getEnv("PHONE_COUNTRY_CODE", "254"),
		PhoneTrunkPrefix:  getEnv("PHONE_TRUNK_PREFIX", "0"),
		TimestampLocation: loc,

		LedgerDriver: getEnv("LEDGER_DRIVER", LedgerPostgres),
		ConnString:   os.Getenv("CONN_STRING"),
		SQLitePath:   getEnv("SQLITE_PATH", "ledger.db"),

		RedisURL: os.Getenv("REDIS_URL"),

		CorrelationBackend:       getEnv("CORRELATION_BACKEND", CorrelationMemory),
		CorrelationTTL:           getDurationEnv("CORRELATION_TTL", 24*time.Hour),
		CorrelationSweepInterval: getDurationEnv("CORRELATION_SWEEP_INTERVAL", time.Minute),

		CallbackSecret: os.Getenv("CALLBACK_SECRET"),
		WorkerPoolSize: getIntEnv("WORKERS", 4),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	required := map[string]string{
		"MPESA_CONSUMER_KEY":    s.ConsumerKey,
		"MPESA_CONSUMER_SECRET": s.ConsumerSecret,
		"MPESA_SHORTCODE":       s.ShortCode,
		"MPESA_PASSKEY":         s.Passkey,
		"CALLBACK_URL":          s.CallbackURL,
	}
	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return s.validateStorage()
}

// validateStorage checks only the storage settings; the worker and ledgerctl
// do not talk to the gateway.
func (s *Settings) validateStorage() error {
	switch s.LedgerDriver {
	case LedgerPostgres:
		if s.ConnString == "" {
			return fmt.Errorf("CONN_STRING not defined")
		}
	case LedgerSQLite:
	default:
		return fmt.Errorf("unknown LEDGER_DRIVER %q", s.LedgerDriver)
	}

	switch s.CorrelationBackend {
	case CorrelationMemory:
	case CorrelationRedis:
		if s.RedisURL == "" {
			return fmt.Errorf("CORRELATION_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown CORRELATION_BACKEND %q", s.CorrelationBackend)
	}
	return nil
}

// LoadStorageConfig loads the settings without requiring gateway credentials.
func LoadStorageConfig() (*Settings, error) {
	s := &Settings{
		LedgerDriver:       getEnv("LEDGER_DRIVER", LedgerPostgres),
		ConnString:         os.Getenv("CONN_STRING"),
		SQLitePath:         getEnv("SQLITE_PATH", "ledger.db"),
		RedisURL:           os.Getenv("REDIS_URL"),
		CorrelationBackend: CorrelationMemory,
		WorkerPoolSize:     getIntEnv("WORKERS", 4),
	}
	if err := s.validateStorage(); err != nil {
		return nil, err
	}
	return s, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
		slog.Warn("ignoring invalid integer env value", "key", key, "value", valueStr)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
		slog.Warn("ignoring invalid duration env value", "key", key, "value", valueStr)
	}
	return defaultValue
}
