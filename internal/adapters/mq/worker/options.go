package worker

import (
	"time"

	"github.com/okian/whodle/pkg/logger"
)

// Option applies a configuration option to the Relay.
type Option func(*Relay)

// WithName sets the relay name for identification and logging.
func WithName(name string) Option {
	return func(r *Relay) {
		if name != "" {
			r.name = name
		}
	}
}

// WithLogger sets a custom logger for the relay.
func WithLogger(l logger.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRetries sets how many times a failed delivery is retried.
func WithRetries(n int) Option {
	return func(r *Relay) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithRetryDelay sets the base delay between attempts; attempt k waits k times this.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Relay) {
		if d >= 0 {
			r.retryDelay = d
		}
	}
}
