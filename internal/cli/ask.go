package cli

import (
	"fmt"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/spf13/cobra"
)

func newAskCommand(a *app) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "ask <session-id> <question>",
		Short: "Ask a question within a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch, err := a.services(ctx)
			if err != nil {
				return err
			}
			id := domain.SessionID(args[0])
			if err := orch.Sessions.Select(ctx, id); err != nil {
				return err
			}
			useCache := a.cfg.UI.UseCache && !noCache
			outcome, err := orch.Conv.Ask(ctx, id, args[1], useCache)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := outcome.Result
			printf(out, "%s\n", result.Answer)
			if result.FromCache {
				printf(out, "\n%s\n", mutedStyle.Render("(served from cache)"))
			}
			if len(result.Sources) > 0 {
				printf(out, "\n%s\n", sectionStyle.Render("Sources"))
				for i, s := range result.Sources {
					printf(out, "[%d] %s, page %d %s\n", i+1, s.Table, s.Page,
						mutedStyle.Render(formatScore(s.Score)))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the backend answer cache")
	return cmd
}

func formatScore(score float64) string {
	return fmt.Sprintf("(score %.2f)", score)
}
