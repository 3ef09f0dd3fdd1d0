// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "foundation-review/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client with retry on transient failures.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClient connects over plaintext, which suits local brokers.
func NewClient(address string) (*Client, error) {
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
	})
}

// NewClientWithConfig dials the gateway and verifies it with a topology request.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, config: config}
	if err := c.HealthCheck(context.Background()); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs command under the client's retry policy.
func (c *Client) ExecuteWithRetry(ctx context.Context, operation string, command func(context.Context) error) error {
	return Retry(ctx, c.config.RetryConfig, operation, command)
}

// Retry runs command with exponential backoff while the error looks transient.
func Retry(ctx context.Context, retry *RetryConfig, operation string, command func(context.Context) error) error {
	if retry == nil {
		retry = DefaultRetryConfig
	}
	var lastErr error

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		err := command(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableZeebeError(err) || attempt == retry.MaxRetries {
			return mapZeebeError(err, operation, attempt)
		}

		select {
		case <-time.After(backoff(retry, attempt)):
		case <-ctx.Done():
			return fmt.Errorf("operation %s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
	}
	return mapZeebeError(lastErr, operation, retry.MaxRetries)
}

func backoff(retry *RetryConfig, attempt int) time.Duration {
	delay := retry.BaseDelay * time.Duration(1<<attempt)
	if delay > retry.MaxDelay {
		delay = retry.MaxDelay
	}
	return delay
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"unreachable",
	"broken pipe",
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts a broker failure into a ReviewError.
func mapZeebeError(err error, operation string, attempt int) error {
	msg := fmt.Sprintf("zeebe operation %q failed", operation)
	if attempt > 0 {
		msg += fmt.Sprintf(" after %d attempts", attempt+1)
	}
	wrapped := fmt.Errorf("%s: %w", msg, err)

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "not found"):
		re := apperrors.NewNotFoundError("zeebe resource", operation)
		re.Details = wrapped.Error()
		return re
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "unauthorized"):
		re := apperrors.NewForbiddenError(msg)
		re.Details = err.Error()
		return re
	default:
		return apperrors.NewInternalError(wrapped)
	}
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
