// Package config provides configuration management for the tabletracer
// CLI. Values are merged from defaults, an optional YAML file, TRACER_
// environment variables, and command-line flags, in increasing priority.
package config

import (
	"fmt"
	"os"
)

// Defaults applied when neither file, environment, nor flags say
// otherwise.
const (
	DefaultOut    = "lineage.csv"
	DefaultOutput = "table"
	DefaultMerge  = "union"
)

// Config holds all CLI configuration options.
type Config struct {
	// Root is the corpus directory scanned for pipeline scripts.
	Root string `koanf:"root"`
	// Targets are the tables to trace; bare names are expanded against
	// the writer index.
	Targets []string `koanf:"targets"`
	// Extensions restricts the corpus scan; empty means .py/.sql/.sas.
	Extensions []string `koanf:"extensions"`
	// Out is the CSV path written by trace and expand.
	Out string `koanf:"out"`
	// OutputFormat selects stdout rendering: table, csv, or json.
	OutputFormat string `koanf:"output"`
	// MaxDepth and MaxPaths bound the per-target enumeration; zero
	// selects the built-in defaults.
	MaxDepth int `koanf:"max_depth"`
	MaxPaths int `koanf:"max_paths"`
	// Merge selects the ambiguous-writer policy: union or intersect.
	Merge string `koanf:"merge"`
	// StatePath, when set, persists the run to a SQLite database.
	StatePath string `koanf:"state_path"`
	// Expand promotes intermediate layers to target rows after tracing.
	Expand  bool `koanf:"expand"`
	Verbose bool `koanf:"verbose"`
}

// Validate checks configuration consistency. Corpus existence is checked
// separately so help output works without a valid root.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	switch c.Merge {
	case "", "union", "intersect":
	default:
		return fmt.Errorf("invalid merge policy %q (want union or intersect)", c.Merge)
	}
	switch c.OutputFormat {
	case "", "table", "csv", "json":
	default:
		return fmt.Errorf("invalid output format %q (want table, csv, or json)", c.OutputFormat)
	}
	if c.MaxDepth < 0 || c.MaxPaths < 0 {
		return fmt.Errorf("max_depth and max_paths must not be negative")
	}
	return nil
}

// ValidateRoot checks that the corpus root exists and is a directory.
func (c *Config) ValidateRoot() error {
	info, err := os.Stat(c.Root)
	if os.IsNotExist(err) {
		return fmt.Errorf("corpus root does not exist: %s", c.Root)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus root is not a directory: %s", c.Root)
	}
	return nil
}
