package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/ragdesk/internal/domain"
	"go.uber.org/zap"
)

// RequestIDHeader carries a per-request correlation id
const RequestIDHeader = "X-Request-ID"

const maxErrorBody = 4 << 10

// Client is a typed wrapper over the RAG backend HTTP contract
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets a per-request timeout; zero means none
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new backend client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateSession creates a named session
func (c *Client) CreateSession(ctx context.Context, name string) (*domain.Session, error) {
	var session domain.Session
	req := domain.CreateSessionRequest{Name: name}
	if err := c.do(ctx, "create session", http.MethodPost, "/api/sessions", req, &session); err != nil {
		return nil, err
	}
	if session.Name == "" {
		session.Name = name
	}
	return &session, nil
}

// ListSessions lists sessions in backend order
func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	if err := c.do(ctx, "list sessions", http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return sessions, nil
}

// DeleteSession deletes a session and its history
func (c *Client) DeleteSession(ctx context.Context, id domain.SessionID) error {
	return c.do(ctx, "delete session", http.MethodDelete, "/api/sessions/"+url.PathEscape(id.String()), nil, nil)
}

// ListMessages returns the ordered history of a session
func (c *Client) ListMessages(ctx context.Context, id domain.SessionID) ([]domain.Message, error) {
	var messages []domain.Message
	path := "/api/sessions/" + url.PathEscape(id.String()) + "/messages"
	if err := c.do(ctx, "list messages", http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Ask submits a question to a session
func (c *Client) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	var result domain.AskResult
	if err := c.do(ctx, "ask", http.MethodPost, "/api/ask", req, &result); err != nil {
		return nil, err
	}
	if result.Sources == nil {
		result.Sources = []domain.Source{}
	}
	return &result, nil
}

// SetAlpha sets the retrieval blend. The value is sent as given; callers
// clamp it first.
func (c *Client) SetAlpha(ctx context.Context, alpha float64) error {
	path := "/api/alpha/" + strconv.FormatFloat(alpha, 'f', -1, 64)
	return c.do(ctx, "set alpha", http.MethodPut, path, nil, nil)
}

// GetStats returns the backend statistics snapshot
func (c *Client) GetStats(ctx context.Context) (*domain.SystemStats, error) {
	var stats domain.SystemStats
	if err := c.do(ctx, "get stats", http.MethodGet, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// HealthCheck probes the backend. It never fails: any failure is reported
// as an unhealthy status.
func (c *Client) HealthCheck(ctx context.Context) domain.HealthStatus {
	var status domain.HealthStatus
	if err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, &status); err != nil {
		return domain.HealthStatus{Status: domain.HealthUnhealthy, Error: err.Error()}
	}
	if !status.Healthy() {
		if status.Error == "" {
			status.Error = fmt.Sprintf("backend reported status %q", status.Status)
		}
		status.Status = domain.HealthUnhealthy
	}
	return status
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Backend request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.BackendError{Op: op, Status: resp.StatusCode, Code: errorDetail(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty response body")
		}
		return &domain.DecodeError{Op: op, Err: err}
	}
	return nil
}

// errorDetail extracts FastAPI's {"detail": ...} (string or structured),
// falling back to the raw body.
func errorDetail(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(body.Detail)
	}
	return body.Error
}
