package mcpclient

import (
	"log/slog"
	"time"
)

const (
	defaultQueueDepth   = 16
	defaultPollInterval = 100 * time.Millisecond
)

// Option customizes a Client.
type Option func(*Client)

// WithName sets a human-readable name for the client, used in logs and
// error messages. Defaults to a generated identifier.
func WithName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithQueueDepth sets the mailbox capacity. Submissions beyond the capacity
// block until the reactor catches up. Values below one are ignored.
func WithQueueDepth(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.queueDepth = n
		}
	}
}

// WithPollInterval sets the bounded interval at which the reactor re-checks
// the stop flag while idle. Shutdown is normally signalled explicitly; the
// poll is a liveness backstop. Values at or below zero are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}
