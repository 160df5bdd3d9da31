package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// configFileUsed remembers which config file the last Load consumed, for
// the verbose startup diagnostics in the CLI.
var configFileUsed string

// ConfigFileUsed returns the path of the config file loaded by the most
// recent Load call, or "" when none was found.
func ConfigFileUsed() string { return configFileUsed }

// findConfigFile picks the config file to use.
// Priority: explicit path > tabletracer.yaml > tabletracer.yml in cwd.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"tabletracer.yaml", "tabletracer.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load merges configuration for one invocation.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"root":    "",
		"out":     DefaultOut,
		"output":  DefaultOutput,
		"merge":   DefaultMerge,
		"verbose": false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// TRACER_MAX_DEPTH -> max_depth
	if err := k.Load(env.Provider("TRACER_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "TRACER_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// The CLI uses --state for brevity; the config key spells
			// out what the path holds.
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Paths from the config file resolve relative to the file itself so
	// a checked-in tabletracer.yaml works from any working directory.
	if configFileUsed != "" {
		base := filepath.Dir(configFileUsed)
		if cfg.Root != "" && !filepath.IsAbs(cfg.Root) && (flags == nil || !flags.Changed("root")) {
			cfg.Root = filepath.Join(base, cfg.Root)
		}
	}
	if cfg.Merge == "" {
		cfg.Merge = DefaultMerge
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutput
	}
	return &cfg, nil
}
