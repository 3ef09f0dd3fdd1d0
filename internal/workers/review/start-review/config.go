// internal/workers/review/start-review/config.go
package startreview

import (
	"time"

	"foundation-review/internal/common/camunda"
)

type Config struct {
	Timeout time.Duration
	Retry   *camunda.RetryConfig
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Retry:   camunda.DefaultRetryConfig,
	}
}
