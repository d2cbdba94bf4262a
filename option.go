package walletsession

import (
	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/metrics"
	"github.com/vitwit/walletsession/types"
)

type Option func(*Core)

func WithLogger(l logger.Logger) Option {
	return func(c *Core) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Core) {
		c.metrics = r
	}
}

// WithNotifier routes user-facing notifications to n
func WithNotifier(n types.Notifier) Option {
	return func(c *Core) {
		c.notifier = n
	}
}
