package service

import (
	"context"
	"strings"
	"sync"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/state"
	"go.uber.org/zap"
)

// AskOutcome is the result of an ask as seen by the caller
type AskOutcome struct {
	Result domain.AskResult
	// Discarded is set when the active session changed (or Reset was
	// called) while the request was in flight; nothing was applied.
	Discarded bool
}

// ConversationService sequences questions and owns the message and source
// lists of the active session.
type ConversationService struct {
	deps

	mu      sync.Mutex
	epoch   uint64
	cancels map[uint64]context.CancelFunc
	nextID  uint64
}

// NewConversationService creates a new conversation service
func NewConversationService(
	backend Backend,
	store *state.Store,
	gate Gate,
	hub *NotificationHub,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		deps: deps{
			backend: backend,
			store:   store,
			gate:    gate,
			hub:     hub,
			logger:  logger,
		},
		cancels: make(map[uint64]context.CancelFunc),
	}
}

// Ask submits a question to sessionID, which must be the active session.
// A second ask for the same session while one is in flight is rejected
// with domain.ErrBusy rather than queued.
func (s *ConversationService) Ask(ctx context.Context, sessionID domain.SessionID, question string, useCache bool) (*AskOutcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if sessionID == "" || s.store.ActiveID() != sessionID {
		return nil, domain.ErrNoActiveSession
	}
	if !s.store.TryBeginAsk(sessionID) {
		return nil, domain.ErrBusy
	}
	defer s.store.EndAsk(sessionID)

	ctx, epoch, release := s.track(ctx)
	defer release()

	result, err := s.backend.Ask(ctx, domain.AskRequest{
		SessionID: sessionID,
		Question:  question,
		UseCache:  useCache,
	})
	if err != nil {
		if s.stale(sessionID, epoch) {
			s.logger.Debug("Ask failed after session switch", zap.String("session_id", sessionID.String()), zap.Error(err))
			return &AskOutcome{Discarded: true}, nil
		}
		s.logger.Error("Failed to get answer", zap.String("session_id", sessionID.String()), zap.Error(err))
		s.hub.Error(MsgAskFailed)
		return nil, err
	}

	if s.stale(sessionID, epoch) || !s.store.ReplaceSources(sessionID, result.Sources) {
		s.logger.Info("Discarded answer for inactive session", zap.String("session_id", sessionID.String()))
		return &AskOutcome{Result: *result, Discarded: true}, nil
	}

	if result.FromCache {
		s.hub.Success(MsgAnswerFromCache)
	} else {
		s.hub.Success(MsgAnswerReceived)
	}

	// Server truth replaces anything shown so far; failures here are
	// reported by the helpers and do not undo the answer.
	_ = s.loadHistory(ctx, sessionID)
	_, _ = s.refreshSessions(ctx)

	return &AskOutcome{Result: *result}, nil
}

// LoadHistory refetches the history of the active session
func (s *ConversationService) LoadHistory(ctx context.Context) error {
	id := s.store.ActiveID()
	if id == "" {
		return domain.ErrNoActiveSession
	}
	return s.loadHistory(ctx, id)
}

// Busy reports whether an ask is in flight for the active session
func (s *ConversationService) Busy() bool {
	id := s.store.ActiveID()
	return id != "" && s.store.Busy(id)
}

// RefreshSources returns the last-known sources again without querying the
// backend.
func (s *ConversationService) RefreshSources() []domain.Source {
	return s.store.Sources()
}

// Reset drops acceptance of every pending response and cancels in-flight
// asks. It is meant for teardown.
func (s *ConversationService) Reset() {
	s.mu.Lock()
	s.epoch++
	cancels := s.cancels
	s.cancels = make(map[uint64]context.CancelFunc)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.store.InvalidateMessages()
}

func (s *ConversationService) track(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	epoch := s.epoch
	s.cancels[id] = cancel
	s.mu.Unlock()

	return ctx, epoch, func() {
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
		cancel()
	}
}

func (s *ConversationService) stale(sessionID domain.SessionID, epoch uint64) bool {
	s.mu.Lock()
	changed := s.epoch != epoch
	s.mu.Unlock()
	return changed || s.store.ActiveID() != sessionID
}
