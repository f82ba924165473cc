package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/ragdesk/internal/client"
	"github.com/liliang-cn/ragdesk/internal/config"
	"github.com/liliang-cn/ragdesk/internal/devbackend"
	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/repository"
	"github.com/liliang-cn/ragdesk/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := devbackend.New(db, config.DevServerConfig{
		DefaultAlpha: 0.6,
		MinScore:     0.1,
		TopK:         8,
		ChunkSize:    800,
		ChunkOverlap: 100,
	}, zap.NewNop())
	require.NoError(t, err)

	docs := map[string]string{
		"install.md": "Install the agent with the package manager. Restart the service afterwards.",
		"billing.md": "Invoices are sent monthly. Payment is due within 14 days.",
		"limits.md":  "Each workspace can hold up to 50 projects.",
		"privacy.md": "Personal data is stored in the EU region.",
	}
	for table, text := range docs {
		_, err := svc.IngestText(table, text)
		require.NoError(t, err)
	}

	router := SetupRouter(svc, zap.NewNop(), RouterConfig{AllowOrigins: []string{"http://localhost:3000"}})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRouter_Root(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "RAG Chatbot API", body["message"])
}

func TestRouter_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", `{"name":"Docs"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "created", created["status"])
	assert.Equal(t, "Docs", created["name"])
	id, ok := created["session_id"].(float64)
	require.True(t, ok, "session_id should be a JSON number")

	path := srv.URL + "/api/sessions/" + strconv.FormatFloat(id, 'f', -1, 64)
	resp, deleted := doJSON(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deleted", deleted["status"])
	assert.Equal(t, id, deleted["session_id"])
}

func TestRouter_Validation(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/alpha/1.5", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Alpha must be between 0 and 1", body["detail"])

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/alpha/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/sessions/abc/messages", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/ask", `{"question":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/ask", `{"session_id":999,"question":"invoices"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_RequestIDAndCORS(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	req, err = http.NewRequest(http.MethodOptions, srv.URL+"/api/ask", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, err = http.NewRequest(http.MethodOptions, srv.URL+"/api/ask", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestClient_AgainstDevBackend(t *testing.T) {
	srv := newTestServer(t)
	c := client.New(srv.URL, client.WithTimeout(5*time.Second))
	ctx := context.Background()

	health := c.HealthCheck(ctx)
	assert.True(t, health.Healthy())
	assert.Equal(t, 4, health.ChunksLoaded)

	session, err := c.CreateSession(ctx, "Docs")
	require.NoError(t, err)

	result, err := c.Ask(ctx, domain.AskRequest{SessionID: session.ID, Question: "When is payment due?", UseCache: true})
	require.NoError(t, err)
	assert.Equal(t, session.ID, result.SessionID)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "billing.md", result.Sources[0].Table)

	messages, err := c.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	err = c.SetAlpha(ctx, 2)
	var be *domain.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "Alpha must be between 0 and 1", be.Code)

	require.NoError(t, c.SetAlpha(ctx, 0.25))
	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.25, stats.Alpha)
	assert.Equal(t, 4, stats.Tables)

	require.NoError(t, c.DeleteSession(ctx, session.ID))
	sessions, err := c.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestOrchestrator_AgainstDevBackend(t *testing.T) {
	srv := newTestServer(t)
	orch := service.NewOrchestrator(client.New(srv.URL), config.NotificationsConfig{
		ErrorDuration:   time.Minute,
		SuccessDuration: time.Minute,
	}, zap.NewNop())
	ctx := context.Background()

	status, err := orch.Start(ctx)
	require.NoError(t, err)
	require.True(t, status.Healthy())

	session, err := orch.Sessions.Create(ctx, "Docs")
	require.NoError(t, err)
	outcome, err := orch.Conv.Ask(ctx, session.ID, "How many projects per workspace?", true)
	require.NoError(t, err)
	assert.False(t, outcome.Discarded)

	snap := orch.Store.Snapshot()
	assert.Equal(t, session.ID, snap.ActiveID())
	assert.Len(t, snap.Messages, 2)
	require.NotEmpty(t, snap.Sources)
	assert.Equal(t, "limits.md", snap.Sources[0].Table)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, 2, snap.Sessions[0].MessageCount)

	sent, err := orch.Config.SetAlpha(ctx, 1.7)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sent)
	stats, ok := orch.Config.Stats()
	require.True(t, ok)
	assert.Equal(t, 1.0, stats.Alpha)

	require.NoError(t, orch.Sessions.Delete(ctx, session.ID))
	snap = orch.Store.Snapshot()
	assert.Nil(t, snap.Active)
	assert.Empty(t, snap.Sessions)
}
