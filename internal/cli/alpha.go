package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAlphaCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alpha",
		Short: "Tune the retrieval blend (0 = keyword only, 1 = semantic only)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <value>",
		Short: "Set alpha; values outside [0,1] are clamped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid alpha %q: %w", args[0], err)
			}
			orch, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			sent, err := orch.Config.SetAlpha(cmd.Context(), value)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s %.2f\n", successStyle.Render("✓ Alpha set to"), sent)
			return nil
		},
	})
	return cmd
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			stats, ok := orch.Config.Stats()
			if !ok {
				if err := orch.Config.LoadStats(cmd.Context()); err != nil {
					return err
				}
				stats, _ = orch.Config.Stats()
			}
			out := cmd.OutOrStdout()
			printf(out, "%s\n\n", sectionStyle.Render("Corpus"))
			printf(out, "Chunks: %d\n", stats.TotalChunks)
			printf(out, "Tables: %d\n", stats.Tables)
			printf(out, "Alpha:  %.2f\n", stats.Alpha)
			return nil
		},
	}
}
