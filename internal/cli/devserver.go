package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/ragdesk/internal/api"
	"github.com/liliang-cn/ragdesk/internal/devbackend"
	"github.com/liliang-cn/ragdesk/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDevServerCommand(a *app) *cobra.Command {
	var ingestDir string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local RAG backend over a sqlite corpus",
		Long: `Run a self-contained backend that serves the same HTTP API ragdesk
expects. Use --ingest to load .md and .txt files into the corpus first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.DevServer
			logger := a.logger

			db, err := repository.NewDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := devbackend.New(db, cfg, logger)
			if err != nil {
				return err
			}

			if ingestDir != "" {
				report, err := svc.IngestDir(cmd.Context(), ingestDir)
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s %d files, %d chunks\n", successStyle.Render("✓ Ingested"), report.Files, report.Chunks)
			}

			if !a.cfg.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.SetupRouter(svc, logger, api.RouterConfig{AllowOrigins: cfg.AllowOrigins})

			srv := &http.Server{
				Addr:         a.cfg.Address(),
				Handler:      router,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}
			return serve(cmd.Context(), srv, logger)
		},
	}

	cmd.Flags().StringVar(&ingestDir, "ingest", "", "Directory of .md/.txt files to ingest before serving")
	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting dev backend", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down dev backend...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Dev backend exited")
	return nil
}
