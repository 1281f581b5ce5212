package backend

import "time"

// Config holds connection settings for the reporting backend.
type Config struct {
	BaseURL        string
	Token          string
	TimeoutMs      int
	MaxRetries     int
	RetryBackoffMs int
}

// DefaultConfig returns a Config pointing at a local dev server.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8089/api",
		TimeoutMs:      15000,
		MaxRetries:     1,
		RetryBackoffMs: 250,
	}
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c Config) backoff(attempt int) time.Duration {
	if c.RetryBackoffMs <= 0 {
		return 0
	}
	return time.Duration(c.RetryBackoffMs*(attempt+1)) * time.Millisecond
}
