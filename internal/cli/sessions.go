package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage chat sessions",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List sessions, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				orch, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				writeSessions(cmd.OutOrStdout(), orch.Store.Snapshot().Sessions)
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				orch, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				session, err := orch.Sessions.Create(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s %s (%s)\n", successStyle.Render("✓ Created"), session.Name, session.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <session-id>",
			Short: "Delete a session and its history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				orch, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				if err := orch.Sessions.Delete(cmd.Context(), domain.SessionID(args[0])); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("✓ Deleted"), args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <session-id>",
			Short: "Print the history of a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				orch, err := a.services(cmd.Context())
				if err != nil {
					return err
				}
				if err := orch.Sessions.Select(cmd.Context(), domain.SessionID(args[0])); err != nil {
					return err
				}
				snap := orch.Store.Snapshot()
				out := cmd.OutOrStdout()
				printf(out, "%s\n\n", sectionStyle.Render(snap.Active.Name))
				for _, m := range snap.Messages {
					printf(out, "%s %s\n%s\n\n", infoStyle.Render(string(m.Role)+":"), mutedStyle.Render(formatTime(m.Timestamp)), m.Message)
				}
				return nil
			},
		},
	)
	return cmd
}

func writeSessions(w io.Writer, sessions []domain.Session) {
	if len(sessions) == 0 {
		printf(w, "No sessions\n")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMESSAGES\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Name, s.MessageCount, formatTime(s.CreatedAt))
	}
	_ = tw.Flush()
}

func formatTime(ts domain.Timestamp) string {
	if !ts.Valid {
		return "-"
	}
	return ts.Time.Local().Format(time.DateTime)
}
