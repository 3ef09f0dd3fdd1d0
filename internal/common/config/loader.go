// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and
// applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Notifications.Email.FromEmail == "" {
		if val := os.Getenv("SES_FROM_EMAIL"); val != "" {
			cfg.Notifications.Email.FromEmail = val
		}
	}
	if cfg.Notifications.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Notifications.AWS.Region = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "foundation-review"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "applications"
	}

	if cfg.Review.DefaultWithdrawReason == "" {
		cfg.Review.DefaultWithdrawReason = "Withdrawn by applicant"
	}
	if cfg.Review.MinStatementLength == 0 {
		cfg.Review.MinStatementLength = 50
	}
	if cfg.Review.MinReasoningLength == 0 {
		cfg.Review.MinReasoningLength = 1
	}
	if cfg.Review.StatisticsCacheTTLSecond == 0 {
		cfg.Review.StatisticsCacheTTLSecond = 60
	}
	if cfg.Review.NotificationTTLDays == 0 {
		cfg.Review.NotificationTTLDays = 90
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Search.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when search is enabled")
	}
	if cfg.Notifications.Email.Enabled && cfg.Notifications.Email.FromEmail == "" {
		return fmt.Errorf("notifications.email.from_email is required when email is enabled")
	}
	if cfg.Review.MinStatementLength < 0 {
		return fmt.Errorf("review.min_statement_length must not be negative")
	}
	return nil
}

// ValidateForWorkers checks the settings only the Zeebe workers need.
func ValidateForWorkers(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
