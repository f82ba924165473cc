// Package cli defines the ragdesk command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/liliang-cn/ragdesk/internal/config"
	"github.com/liliang-cn/ragdesk/internal/logging"
	"github.com/liliang-cn/ragdesk/internal/service"
	"github.com/liliang-cn/ragdesk/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app carries what every command needs once flags are parsed
type app struct {
	configPath string
	baseURL    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ragdesk",
		Short: "Terminal client for a retrieval-augmented document Q&A backend",
		Long: `ragdesk talks to a RAG backend over HTTP: it manages chat sessions,
asks questions against the indexed documents, shows the cited sources and
tunes the retrieval blend.

Run without a subcommand to open the interactive interface.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The TUI owns the terminal, so it logs only to a file.
			quiet := !a.verbose && cmd.Name() != "devserver"
			return a.setup(quiet)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			orch := service.NewOrchestratorFromConfig(a.cfg, a.logger)
			return tui.Run(cmd.Context(), orch, a.cfg)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Backend base URL (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newHealthCommand(a),
		newSessionsCommand(a),
		newAskCommand(a),
		newAlphaCommand(a),
		newStatsCommand(a),
		newExportCommand(a),
		newDevServerCommand(a),
	)
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(quiet bool) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.baseURL != "" {
		cfg.Backend.BaseURL = a.baseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log, quiet)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// services builds the client services and runs the startup sequence; an
// unhealthy backend is reported as an error.
func (a *app) services(ctx context.Context) (*service.Orchestrator, error) {
	orch := service.NewOrchestratorFromConfig(a.cfg, a.logger)
	status, err := orch.Start(ctx)
	if !status.Healthy() {
		return nil, fmt.Errorf("backend unavailable at %s: %s", a.cfg.Backend.BaseURL, status.Error)
	}
	if err != nil {
		return nil, err
	}
	return orch, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
