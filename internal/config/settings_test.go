package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MPESA_CONSUMER_KEY", "key")
	t.Setenv("MPESA_CONSUMER_SECRET", "secret")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_PASSKEY", "passkey")
	t.Setenv("CALLBACK_URL", "https://example.com/callback")
	t.Setenv("LEDGER_DRIVER", LedgerSQLite)
}

func TestLoadEnvironmentConfig_Defaults(t *testing.T) {
	setRequired(t)

	s, err := LoadEnvironmentConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", s.Port)
	}
	if s.PhoneCountryCode != "254" || s.PhoneTrunkPrefix != "0" {
		t.Errorf("Unexpected phone defaults: %q %q", s.PhoneCountryCode, s.PhoneTrunkPrefix)
	}
	if s.CorrelationBackend != CorrelationMemory {
		t.Errorf("Expected memory backend, got %s", s.CorrelationBackend)
	}
	if s.CorrelationTTL != 24*time.Hour {
		t.Errorf("Expected 24h TTL, got %v", s.CorrelationTTL)
	}
	if s.TimestampLocation != time.UTC {
		t.Errorf("Expected UTC, got %v", s.TimestampLocation)
	}
}

func TestLoadEnvironmentConfig_TillAlias(t *testing.T) {
	setRequired(t)
	t.Setenv("MPESA_SHORTCODE", "")
	t.Setenv("MPESA_TILL", "600000")

	s, err := LoadEnvironmentConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ShortCode != "600000" {
		t.Errorf("Expected short code from MPESA_TILL, got %s", s.ShortCode)
	}
}

func TestLoadEnvironmentConfig_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("MPESA_PASSKEY", "")
	t.Setenv("CALLBACK_URL", "")

	_, err := LoadEnvironmentConfig()
	if err == nil {
		t.Fatal("Expected error for missing variables")
	}
	if !strings.Contains(err.Error(), "CALLBACK_URL, MPESA_PASSKEY") {
		t.Errorf("Expected sorted missing variable list, got %v", err)
	}
}

func TestLoadEnvironmentConfig_RedisBackendNeedsURL(t *testing.T) {
	setRequired(t)
	t.Setenv("CORRELATION_BACKEND", CorrelationRedis)
	t.Setenv("REDIS_URL", "")

	if _, err := LoadEnvironmentConfig(); err == nil {
		t.Error("Expected error when redis backend has no REDIS_URL")
	}
}

func TestLoadEnvironmentConfig_PostgresNeedsConnString(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_DRIVER", LedgerPostgres)
	t.Setenv("CONN_STRING", "")

	if _, err := LoadEnvironmentConfig(); err == nil {
		t.Error("Expected error when postgres ledger has no CONN_STRING")
	}
}

func TestGetDurationEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("CORRELATION_TTL", "forever")

	if got := getDurationEnv("CORRELATION_TTL", time.Hour); got != time.Hour {
		t.Errorf("Expected fallback of 1h, got %v", got)
	}
}

func TestLoadStorageConfig_SkipsGatewayCredentials(t *testing.T) {
	t.Setenv("MPESA_CONSUMER_KEY", "")
	t.Setenv("LEDGER_DRIVER", LedgerSQLite)
	t.Setenv("SQLITE_PATH", "/tmp/ledger.db")

	s, err := LoadStorageConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SQLitePath != "/tmp/ledger.db" {
		t.Errorf("Expected sqlite path override, got %s", s.SQLitePath)
	}
}
