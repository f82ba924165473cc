// Package export writes session transcripts in several formats.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/liliang-cn/ragdesk/internal/domain"
)

// Transcript is a session with its full history
type Transcript struct {
	Session  domain.Session   `json:"session" yaml:"session"`
	Messages []domain.Message `json:"messages" yaml:"messages"`
}

// Exporter writes a transcript in one format
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "jsonl":
		return &JSONLExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json, jsonl, yaml)", format)
	}
}

func formatTime(ts domain.Timestamp) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.Format(time.RFC3339)
}
