package shopify

import (
	"errors"
	"time"
)

var (
	ErrConfigMissingVersion = errors.New("shopify: api version is required")
	ErrConfigInvalidTimeout = errors.New("shopify: request timeout must be positive")
	ErrConfigMissingSecret  = errors.New("shopify: app secret is required to verify webhooks")
)

// Config holds admin API client configuration
type Config struct {
	// APIVersion is used for shops provisioned without one
	APIVersion string
	// AppKey and AppSecret identify the app; the secret signs webhooks
	AppKey    string
	AppSecret string
	// Retries is the number of retries on throttling and 5xx responses
	Retries int
	// RequestTimeout bounds a single HTTP request
	RequestTimeout time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		APIVersion:     "2025-01",
		Retries:        3,
		RequestTimeout: 30 * time.Second,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.APIVersion == "" {
		return ErrConfigMissingVersion
	}
	if c.RequestTimeout <= 0 {
		return ErrConfigInvalidTimeout
	}
	return nil
}
