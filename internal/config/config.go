// Package config defines process configuration and how it is loaded.
//
// Conventions:
//   - New() builds a Config with defaults; Load layers a YAML file and the
//     environment on top of it.
//   - External errors are wrapped with ErrLoadConfig, validation failures
//     with ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/amplike/internal/adapters/exec"
	"github.com/okian/amplike/internal/domain/amplitude"
	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/likelihood"
)

// Default configuration values.
const (
	DefaultEvents = 10_000
	DefaultSeed   = 42
	DefaultModel  = "pole"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Input is the event file. Empty means generated events.
	Input string `koanf:"input"`

	// Events is the number of records to load.
	Events int `koanf:"events"`

	// MaxEvents is the event store capacity.
	MaxEvents int `koanf:"max_events"`

	// Context selects the execution context: host or offload.
	Context string `koanf:"context"`

	// Threads is the host degree of parallelism; 0 means one per CPU.
	Threads int `koanf:"threads"`

	// OffloadThreads is the size of the offload region's worker pool.
	OffloadThreads int `koanf:"offload_threads"`

	// Model names the amplitude model.
	Model string `koanf:"model"`

	// Param is the model parameter p. When unset and Input is a file, p is
	// read from the first record.
	Param *float64 `koanf:"param"`

	// Policy is the degenerate amplitude policy: fail or exclude.
	Policy string `koanf:"policy"`

	// BlockSize is the number of events reduced per block.
	BlockSize int `koanf:"block_size"`

	// Seed seeds the random event source.
	Seed int64 `koanf:"seed"`

	// MetricsFile, if set, receives the metrics in Prometheus text format.
	MetricsFile string `koanf:"metrics_file"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Events:         DefaultEvents,
		MaxEvents:      events.DefaultCapacity,
		Context:        exec.KindHost,
		OffloadThreads: exec.DefaultOffloadThreads,
		Model:          DefaultModel,
		Policy:         likelihood.PolicyFail.String(),
		BlockSize:      likelihood.DefaultBlockSize,
		Seed:           DefaultSeed,
	}
}

// ContextThreads returns the thread count of the selected context.
func (c *Config) ContextThreads() int {
	if strings.EqualFold(c.Context, exec.KindOffload) {
		return c.OffloadThreads
	}
	return c.Threads
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	switch {
	case c.Events < 1:
		return fmt.Errorf("%w: events must be positive, got %d", ErrInvalidConfig, c.Events)
	case c.MaxEvents < 1:
		return fmt.Errorf("%w: max_events must be positive, got %d", ErrInvalidConfig, c.MaxEvents)
	case c.Threads < 0:
		return fmt.Errorf("%w: threads must not be negative, got %d", ErrInvalidConfig, c.Threads)
	case c.OffloadThreads < 0:
		return fmt.Errorf("%w: offload_threads must not be negative, got %d", ErrInvalidConfig, c.OffloadThreads)
	case c.BlockSize < 1:
		return fmt.Errorf("%w: block_size must be positive, got %d", ErrInvalidConfig, c.BlockSize)
	}

	switch strings.ToLower(c.Context) {
	case exec.KindHost, exec.KindOffload:
	default:
		return fmt.Errorf("%w: context must be host or offload, got %q", ErrInvalidConfig, c.Context)
	}
	if _, err := amplitude.New(c.Model); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := likelihood.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}
