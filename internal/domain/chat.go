package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role of a message author
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SessionID identifies a chat session. The backend issues integer ids, but
// the client treats them as opaque.
type SessionID string

// UnmarshalJSON accepts both JSON numbers and JSON strings
func (id *SessionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SessionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	*id = SessionID(n.String())
	return nil
}

// canonicalInt matches integers written the way a JSON encoder writes them
var canonicalInt = regexp.MustCompile(`^-?(0|[1-9][0-9]{0,17})$`)

// MarshalJSON emits canonical integer ids as JSON numbers. Anything else,
// including "007" or "+5", is written as a JSON string.
func (id SessionID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if canonicalInt.MatchString(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id SessionID) String() string {
	return string(id)
}

// Timestamp is a nullable point in time as reported by the backend
type Timestamp struct {
	time.Time
	Valid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses the timestamp formats the backend is known to emit
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, Valid: true}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts null, an empty string or any known layout
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes RFC 3339 or null
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// MarshalYAML mirrors MarshalJSON for the YAML exporter
func (t Timestamp) MarshalYAML() (interface{}, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// Session represents a chat session
type Session struct {
	ID           SessionID `json:"session_id" yaml:"session_id"`
	Name         string    `json:"name" yaml:"name"`
	MessageCount int       `json:"message_count" yaml:"message_count"`
	CreatedAt    Timestamp `json:"created_at" yaml:"created_at"`
}

// Message represents a chat message
type Message struct {
	Role      Role      `json:"role" yaml:"role"`
	Message   string    `json:"message" yaml:"message"`
	Timestamp Timestamp `json:"timestamp" yaml:"timestamp"`
}

// Source represents a citation source
type Source struct {
	Table      string  `json:"table" yaml:"table"`
	Page       int     `json:"page" yaml:"page"`
	Score      float64 `json:"score" yaml:"score"`
	Text       string  `json:"text" yaml:"text"`
	ChunkID    int     `json:"chunk_id,omitempty" yaml:"chunk_id,omitempty"`
	FaissScore float64 `json:"faiss_score,omitempty" yaml:"faiss_score,omitempty"`
	BM25Score  float64 `json:"bm25_score,omitempty" yaml:"bm25_score,omitempty"`
}

// UnmarshalJSON tolerates a null page number
func (s *Source) UnmarshalJSON(data []byte) error {
	type plain Source
	var raw struct {
		plain
		Page *int `json:"page"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Source(raw.plain)
	if raw.Page != nil {
		s.Page = *raw.Page
	}
	return nil
}

// CreateSessionRequest is the request to create a session
type CreateSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

// AskRequest is the request to ask a question within a session
type AskRequest struct {
	SessionID SessionID `json:"session_id"`
	Question  string    `json:"question" binding:"required"`
	UseCache  bool      `json:"use_cache"`
}

// AskResult is the backend's answer to a question
type AskResult struct {
	Answer    string    `json:"answer"`
	SessionID SessionID `json:"session_id,omitempty"`
	Sources   []Source  `json:"sources"`
	FromCache bool      `json:"from_cache"`
}

// Ack is the generic acknowledgement body of mutating endpoints
type Ack struct {
	Status string `json:"status"`
}
