// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Review        ReviewConfig            `mapstructure:"review"`
	Search        SearchConfig            `mapstructure:"search"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// ReviewConfig tunes the review workflow.
type ReviewConfig struct {
	BaseURL                  string `mapstructure:"base_url"`
	DefaultWithdrawReason    string `mapstructure:"default_withdraw_reason"`
	MinStatementLength       int    `mapstructure:"min_statement_length"`
	MinReasoningLength       int    `mapstructure:"min_reasoning_length"`
	StatisticsCacheTTLSecond int    `mapstructure:"statistics_cache_ttl_seconds"`
	NotificationTTLDays      int    `mapstructure:"notification_ttl_days"`
}

// StatisticsCacheTTL returns the cache TTL as a duration.
func (r ReviewConfig) StatisticsCacheTTL() time.Duration {
	return time.Duration(r.StatisticsCacheTTLSecond) * time.Second
}

// SearchConfig toggles the Elasticsearch projection.
type SearchConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// NotificationConfig holds delivery settings for the notification dispatcher.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
