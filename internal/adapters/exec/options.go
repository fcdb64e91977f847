package exec

import (
	"github.com/okian/amplike/pkg/logger"
)

// Option configures an execution context.
type Option func(*settings)

type settings struct {
	threads       int
	queueCapacity int
	logger        logger.Logger
}

// WithThreads sets the degree of parallelism.
func WithThreads(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.threads = n
		}
	}
}

// WithQueueCapacity sets the offload block queue capacity.
func WithQueueCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.queueCapacity = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
