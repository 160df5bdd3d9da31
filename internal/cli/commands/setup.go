// Package commands implements the tabletracer subcommands.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/TongWu/tabletracer/internal/cli/config"
	"github.com/TongWu/tabletracer/internal/corpus"
	"github.com/TongWu/tabletracer/internal/extract"
	"github.com/TongWu/tabletracer/internal/index"
)

// ConfigKey and LoggerKey are the context keys the root command uses to
// hand the loaded configuration and logger down to subcommands.
type (
	ConfigKey struct{}
	LoggerKey struct{}
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext pulls the configuration and logger out of the
// command's context. Safe fallbacks are returned when the root command
// did not run (as in direct test invocations).
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(cmd.Context()),
		Logger: getLogger(cmd.Context()),
	}
}

func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(ConfigKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		Root:         os.Getenv("TRACER_ROOT"),
		Out:          config.DefaultOut,
		OutputFormat: config.DefaultOutput,
		Merge:        config.DefaultMerge,
	}
}

func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// Workspace bundles the pieces every corpus-touching command needs: the
// file list, the shared text reader, the extractor, and the writer index.
type Workspace struct {
	Files     []string
	Reader    *corpus.Reader
	Extractor *extract.Extractor
	Index     *index.Index
}

// OpenWorkspace validates the corpus root, lists its source files, and
// builds the writer index.
func OpenWorkspace(cc *CommandContext) (*Workspace, error) {
	if err := cc.Cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cc.Cfg.ValidateRoot(); err != nil {
		return nil, err
	}

	files, err := corpus.ListSourceFiles(cc.Cfg.Root, cc.Cfg.Extensions)
	if err != nil {
		return nil, err
	}
	cc.Logger.Info("corpus scanned", "root", cc.Cfg.Root, "files", len(files))

	reader := corpus.NewReader(cc.Logger)
	ex := extract.New(reader, cc.Logger)
	ix := index.Build(files, ex, cc.Logger)

	return &Workspace{Files: files, Reader: reader, Extractor: ex, Index: ix}, nil
}
