package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/export"
	"github.com/spf13/cobra"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = a.cfg.Export.Format
			}
			exporter, err := export.NewExporter(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			orch, err := a.services(ctx)
			if err != nil {
				return err
			}
			if err := orch.Sessions.Select(ctx, domain.SessionID(args[0])); err != nil {
				return err
			}
			snap := orch.Store.Snapshot()
			transcript := &export.Transcript{Session: *snap.Active, Messages: snap.Messages}
			if transcript.Messages == nil {
				transcript.Messages = []domain.Message{}
			}

			if output == "" {
				return exporter.Export(transcript, cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()

			w := bufio.NewWriter(f)
			if err := exporter.Export(transcript, w); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printf(cmd.ErrOrStderr(), "%s %s\n", successStyle.Render("✓ Exported to"), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format: md, json, jsonl, yaml (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
