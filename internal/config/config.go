package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Audit sink kinds
const (
	AuditSinkNone       = "none"
	AuditSinkMemory     = "memory"
	AuditSinkClickHouse = "clickhouse"
)

// Config holds the application configuration
type Config struct {
	Port     string
	LogLevel string // "debug" selects the development logger

	// SeedDemo inserts the sample books on startup
	SeedDemo bool

	// Audit trail configuration
	AuditSink   string
	AuditBuffer int

	// ClickHouse configuration (used when AuditSink is "clickhouse")
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	config.Port = os.Getenv("PORT")
	if config.Port == "" {
		config.Port = "8080"
	}

	config.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	config.SeedDemo = os.Getenv("SEED_DEMO") == "true"

	config.AuditSink = strings.ToLower(os.Getenv("AUDIT_SINK"))
	if config.AuditSink == "" {
		config.AuditSink = AuditSinkNone
	}
	switch config.AuditSink {
	case AuditSinkNone, AuditSinkMemory, AuditSinkClickHouse:
	default:
		return nil, fmt.Errorf("invalid AUDIT_SINK %q (expected none, memory or clickhouse)", config.AuditSink)
	}

	bufferStr := os.Getenv("AUDIT_BUFFER")
	if bufferStr == "" {
		config.AuditBuffer = 256
	} else {
		buffer, err := strconv.Atoi(bufferStr)
		if err != nil || buffer < 1 {
			return nil, fmt.Errorf("invalid AUDIT_BUFFER: %q", bufferStr)
		}
		config.AuditBuffer = buffer
	}

	if config.AuditSink == AuditSinkClickHouse {
		if err := LoadClickHouseFromEnv(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// LoadClickHouseFromEnv fills the ClickHouse fields of config from environment variables
func LoadClickHouseFromEnv(config *Config) error {
	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost == "" {
		return fmt.Errorf("CLICKHOUSE_HOST is required")
	}

	portStr := os.Getenv("CLICKHOUSE_PORT")
	if portStr == "" {
		config.ClickHousePort = 9000 // Default ClickHouse native port
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		config.ClickHousePort = port
	}

	config.ClickHouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
	if config.ClickHouseDatabase == "" {
		config.ClickHouseDatabase = "default"
	}

	config.ClickHouseUser = os.Getenv("CLICKHOUSE_USER")
	if config.ClickHouseUser == "" {
		config.ClickHouseUser = "default"
	}

	config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	// Password is optional, can be empty

	config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	return nil
}
