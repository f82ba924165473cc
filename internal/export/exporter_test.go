package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleTranscript() *Transcript {
	ts := domain.Timestamp{Time: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC), Valid: true}
	return &Transcript{
		Session: domain.Session{ID: "7", Name: "Docs", MessageCount: 2, CreatedAt: ts},
		Messages: []domain.Message{
			{Role: domain.RoleUser, Message: "What is X?", Timestamp: ts},
			{Role: domain.RoleAssistant, Message: "X is **bold**."},
		},
	}
}

func TestNewExporter(t *testing.T) {
	for format, ext := range map[string]string{
		"md": "md", "markdown": "md", "json": "json", "jsonl": "jsonl", "yaml": "yaml", "yml": "yaml",
	} {
		e, err := NewExporter(format)
		require.NoError(t, err, format)
		assert.Equal(t, ext, e.Extension())
	}

	_, err := NewExporter("pdf")
	assert.Error(t, err)
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(sampleTranscript(), &buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Docs\n"))
	assert.Contains(t, out, "**Session:** 7")
	assert.Contains(t, out, "**Created:** 2024-03-09T14:30:00Z")
	assert.Contains(t, out, "**Messages:** 2")
	assert.Contains(t, out, "**user:** (2024-03-09T14:30:00Z)\n\nWhat is X?")
	assert.Contains(t, out, "**assistant:**\n\nX is **bold**.")
}

func TestMarkdownExporter_UnnamedSession(t *testing.T) {
	tr := &Transcript{Session: domain.Session{ID: "3"}}
	var buf bytes.Buffer
	require.NoError(t, (&MarkdownExporter{}).Export(tr, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "# Session 3\n"))
	assert.NotContains(t, buf.String(), "**Created:**")
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(sampleTranscript(), &buf))

	var decoded struct {
		Session struct {
			ID        int    `json:"session_id"`
			CreatedAt string `json:"created_at"`
		} `json:"session"`
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 7, decoded.Session.ID)
	assert.Equal(t, "2024-03-09T14:30:00Z", decoded.Session.CreatedAt)
	require.Len(t, decoded.Messages, 2)
	assert.Nil(t, decoded.Messages[1]["timestamp"])
}

func TestJSONLExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLExporter{}).Export(sampleTranscript(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec jsonlRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "7", rec.SessionID)
	assert.Equal(t, "user", rec.Role)
	assert.Equal(t, "2024-03-09T14:30:00Z", rec.Timestamp)
	assert.NotContains(t, lines[1], "timestamp")
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLExporter{}).Export(sampleTranscript(), &buf))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	session := decoded["session"].(map[string]any)
	assert.Equal(t, "Docs", session["name"])
	assert.Equal(t, "2024-03-09T14:30:00Z", session["created_at"])
	messages := decoded["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Nil(t, messages[1].(map[string]any)["timestamp"])
}
