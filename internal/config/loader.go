package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces agendad's environment variables so they never
// collide with provider API keys or the ambient shell.
const envPrefix = "AGENDAD_"

// Load loads configuration from an optional YAML file, then overrides
// with environment variables, then applies defaults and validates.
//
// Precedence (highest to lowest):
//  1. Environment variables (AGENDAD_SERVER_HTTP_PORT, AGENDAD_CACHE_TTL, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables map onto config keys by stripping the prefix,
// lowercasing, and splitting on the first underscore:
//
//	AGENDAD_SERVER_HTTP_PORT   -> server.http_port
//	AGENDAD_PIPELINE_RESCAN_DAYS -> pipeline.rescan_days
//	AGENDAD_STORE_PATH         -> store.path
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// AGENDAD_SECTION_FIELD_NAME -> section.field_name
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
