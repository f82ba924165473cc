package export

import (
	"fmt"
	"io"
)

// MarkdownExporter exports transcripts in Markdown format. Message bodies
// are already markdown and are written as is.
type MarkdownExporter struct{}

// Export exports a transcript to Markdown
func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	name := t.Session.Name
	if name == "" {
		name = "Session " + t.Session.ID.String()
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", name)
	_, _ = fmt.Fprintf(w, "**Session:** %s  \n", t.Session.ID)
	if created := formatTime(t.Session.CreatedAt); created != "" {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", created)
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(t.Messages))
	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range t.Messages {
		stamp := ""
		if ts := formatTime(msg.Timestamp); ts != "" {
			stamp = fmt.Sprintf(" (%s)", ts)
		}
		if _, err := fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", msg.Role, stamp, msg.Message); err != nil {
			return err
		}
		if i < len(t.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
