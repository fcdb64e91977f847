package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of the environment variables Load reads.
const EnvPrefix = "AMPLIKE_"

// envKeys are the only keys the environment may set.
var envKeys = map[string]string{ //nolint:gochecknoglobals // static key table
	"threads":         "threads",
	"offload_threads": "offload_threads",
}

// Load builds a Config by layering defaults, an optional YAML file and env
// vars. It does not validate: callers apply their own overrides first and
// then call Validate.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) at path, if path is not empty
//  3. env: AMPLIKE_THREADS and AMPLIKE_OFFLOAD_THREADS
func Load(_ context.Context, path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// AMPLIKE_OFFLOAD_THREADS -> offload_threads; any other key is ignored.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return envKeys[key]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	return cfg, nil
}
