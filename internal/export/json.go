package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONExporter writes the transcript as one indented JSON document
type JSONExporter struct{}

// Export exports a transcript to JSON
func (e *JSONExporter) Export(t *Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}

// JSONLExporter writes one message per line
type JSONLExporter struct{}

type jsonlRecord struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Export exports a transcript to JSONL
func (e *JSONLExporter) Export(t *Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, msg := range t.Messages {
		rec := jsonlRecord{
			SessionID: t.Session.ID.String(),
			Role:      string(msg.Role),
			Message:   msg.Message,
			Timestamp: formatTime(msg.Timestamp),
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
