package cli

import (
	"errors"

	"github.com/liliang-cn/ragdesk/internal/client"
	"github.com/spf13/cobra"
)

// errUnhealthy makes the process exit non-zero after the report is printed
var errUnhealthy = errors.New("backend unhealthy")

func newHealthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the backend is reachable and healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c := client.New(a.cfg.Backend.BaseURL,
				client.WithTimeout(a.cfg.Backend.Timeout),
				client.WithLogger(a.logger),
			)

			printf(out, "%s\n\n", sectionStyle.Render("Backend Health Check"))
			printf(out, "%s %s\n", infoStyle.Render("Backend:"), c.BaseURL())

			status := c.HealthCheck(cmd.Context())
			if !status.Healthy() {
				printf(out, "%s %s\n", errorStyle.Render("✗ Unhealthy:"), status.Error)
				return errUnhealthy
			}
			printf(out, "%s\n", successStyle.Render("✓ Healthy"))
			printf(out, "   Chunks loaded: %d\n", status.ChunksLoaded)
			return nil
		},
	}
}
