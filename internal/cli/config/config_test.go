package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("root", "", "")
	fs.String("out", "", "")
	fs.String("output", "", "")
	fs.String("merge", "", "")
	fs.String("state", "", "")
	fs.Int("max-depth", 0, "")
	fs.Int("max-paths", 0, "")
	fs.Bool("verbose", false, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "lineage.csv", cfg.Out)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, "union", cfg.Merge)
	assert.False(t, cfg.Verbose)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabletracer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"root: corpus\nout: reports/lineage.csv\nmax_depth: 10\ntargets:\n  - rpt.base\n"), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	// Relative root resolves against the config file's directory.
	assert.Equal(t, filepath.Join(dir, "corpus"), cfg.Root)
	assert.Equal(t, "reports/lineage.csv", cfg.Out)
	assert.Equal(t, 10, cfg.MaxDepth)
	assert.Equal(t, []string{"rpt.base"}, cfg.Targets)
	assert.Equal(t, path, ConfigFileUsed())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabletracer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("out: from_file.csv\n"), 0o600))

	t.Setenv("TRACER_OUT", "from_env.csv")
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from_env.csv", cfg.Out)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("TRACER_OUT", "from_env.csv")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--out", "from_flag.csv", "--max-depth", "7"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "from_flag.csv", cfg.Out)
	assert.Equal(t, 7, cfg.MaxDepth)
}

func TestLoad_StateFlagMapsToStatePath(t *testing.T) {
	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--state", "trace.db"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "trace.db", cfg.StatePath)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Root: "corpus", Merge: "union", OutputFormat: "table"}
	assert.NoError(t, cfg.Validate())

	assert.Error(t, (&Config{Merge: "union"}).Validate())
	assert.Error(t, (&Config{Root: "x", Merge: "vote"}).Validate())
	assert.Error(t, (&Config{Root: "x", OutputFormat: "xml"}).Validate())
	assert.Error(t, (&Config{Root: "x", MaxDepth: -1}).Validate())
}

func TestValidateRoot(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, (&Config{Root: dir}).ValidateRoot())
	assert.Error(t, (&Config{Root: filepath.Join(dir, "missing")}).ValidateRoot())

	f := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	assert.Error(t, (&Config{Root: f}).ValidateRoot())
}
