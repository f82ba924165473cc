package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/liliang-cn/ragdesk/internal/config"
	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/state"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBoom = &domain.BackendError{Op: "test", Status: 500}

// fakeBackend is an in-memory Backend. Hooks let tests block or fail calls.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int
	sessions []domain.Session
	messages map[domain.SessionID][]domain.Message
	alpha    float64
	health   domain.HealthStatus

	// hideCreated keeps newly created sessions out of ListSessions
	hideCreated   bool
	askGate       chan struct{}
	askStarted    chan struct{}
	cachedAnswers map[string]bool
	sources       []domain.Source

	failCreate, failList, failDelete, failMessages, failAsk, failAlpha, failStats error

	healthCalls int
	listCalls   int
	askCalls    int
	alphaSent   []float64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		messages:      make(map[domain.SessionID][]domain.Message),
		health:        domain.HealthStatus{Status: domain.HealthHealthy, ChunksLoaded: 10},
		alpha:         0.6,
		cachedAnswers: make(map[string]bool),
	}
}

func (f *fakeBackend) HealthCheck(ctx context.Context) domain.HealthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCalls++
	return f.health
}

func (f *fakeBackend) CreateSession(ctx context.Context, name string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.nextID++
	s := domain.Session{ID: domain.SessionID(strconv.Itoa(f.nextID)), Name: name}
	if !f.hideCreated {
		f.sessions = append([]domain.Session{s}, f.sessions...)
	}
	return &s, nil
}

func (f *fakeBackend) ListSessions(ctx context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		s.MessageCount = len(f.messages[s.ID])
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeBackend) DeleteSession(ctx context.Context, id domain.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	for i, s := range f.sessions {
		if s.ID == id {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			break
		}
	}
	delete(f.messages, id)
	return nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, id domain.SessionID) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMessages != nil {
		return nil, f.failMessages
	}
	return append([]domain.Message{}, f.messages[id]...), nil
}

func (f *fakeBackend) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	f.mu.Lock()
	f.askCalls++
	gate, started := f.askGate, f.askStarted
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &domain.TransportError{Op: "ask", Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAsk != nil {
		return nil, f.failAsk
	}
	answer := "answer to " + req.Question
	fromCache := req.UseCache && f.cachedAnswers[req.Question]
	f.messages[req.SessionID] = append(f.messages[req.SessionID],
		domain.Message{Role: domain.RoleUser, Message: req.Question},
		domain.Message{Role: domain.RoleAssistant, Message: answer},
	)
	sources := []domain.Source{{Table: "manual", Page: 1, Score: 0.9, Text: "..."}}
	if f.sources != nil {
		sources = f.sources
	}
	if fromCache {
		sources = []domain.Source{}
	}
	return &domain.AskResult{Answer: answer, SessionID: req.SessionID, Sources: sources, FromCache: fromCache}, nil
}

func (f *fakeBackend) SetAlpha(ctx context.Context, alpha float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alphaSent = append(f.alphaSent, alpha)
	if f.failAlpha != nil {
		return f.failAlpha
	}
	f.alpha = alpha
	return nil
}

func (f *fakeBackend) GetStats(ctx context.Context) (*domain.SystemStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStats != nil {
		return nil, f.failStats
	}
	return &domain.SystemStats{TotalChunks: 10, Alpha: f.alpha, Tables: 2}, nil
}

func (f *fakeBackend) set(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func notifyConfig() config.NotificationsConfig {
	return config.NotificationsConfig{ErrorDuration: time.Minute, SuccessDuration: time.Minute}
}

// harness is a started orchestrator over a fake backend
type harness struct {
	backend *fakeBackend
	orch    *Orchestrator
	ctx     context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := newFakeBackend()
	orch := NewOrchestrator(backend, notifyConfig(), zap.NewNop())
	ctx := context.Background()
	status, err := orch.Start(ctx)
	require.NoError(t, err)
	require.True(t, status.Healthy())
	return &harness{backend: backend, orch: orch, ctx: ctx}
}

func (h *harness) store() *state.Store {
	return h.orch.Store
}

func (h *harness) pendingError() string {
	errSignal, _ := h.orch.Hub.Pending()
	if errSignal == nil {
		return ""
	}
	return errSignal.Message
}

func (h *harness) pendingSuccess() string {
	_, okSignal := h.orch.Hub.Pending()
	if okSignal == nil {
		return ""
	}
	return okSignal.Message
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func isBackendError(err error) bool {
	var be *domain.BackendError
	return errors.As(err, &be)
}
