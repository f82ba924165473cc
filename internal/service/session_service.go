package service

import (
	"context"
	"strings"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/state"
	"go.uber.org/zap"
)

// SessionService owns the session list and the active session
type SessionService struct {
	deps
}

// NewSessionService creates a new session service
func NewSessionService(
	backend Backend,
	store *state.Store,
	gate Gate,
	hub *NotificationHub,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{deps: deps{
		backend: backend,
		store:   store,
		gate:    gate,
		hub:     hub,
		logger:  logger,
	}}
}

// List reloads the session list from the backend
func (s *SessionService) List(ctx context.Context) ([]domain.Session, error) {
	return s.refreshSessions(ctx)
}

// Create creates a session and makes it active. The list endpoint is
// authoritative: if the new session is missing from the refreshed list the
// list is reloaded once more, and only then is the creation payload used.
func (s *SessionService) Create(ctx context.Context, name string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrEmptyName
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	created, err := s.backend.CreateSession(ctx, name)
	if err != nil {
		s.logger.Error("Failed to create session", zap.String("name", name), zap.Error(err))
		s.hub.Error(MsgCreateSessionFailed)
		return nil, err
	}

	session, listed := s.findAfterRefresh(ctx, created.ID)
	if !listed {
		s.logger.Warn("Created session missing from session list, using creation response",
			zap.String("session_id", created.ID.String()))
		session = *created
		s.store.AddSession(session)
	}

	if _, ok := s.store.Activate(session.ID); !ok {
		// Only possible if a concurrent refresh dropped it again.
		s.store.AddSession(session)
		s.store.Activate(session.ID)
	}
	s.hub.Success(MsgSessionCreated)
	return &session, nil
}

func (s *SessionService) findAfterRefresh(ctx context.Context, id domain.SessionID) (domain.Session, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		sessions, err := s.refreshSessions(ctx)
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if session.ID == id {
				if _, ok := s.store.Lookup(id); !ok {
					s.store.AddSession(session)
				}
				return session, true
			}
		}
	}
	return domain.Session{}, false
}

// Delete deletes a session. Deleting the active session clears it together
// with its messages and sources.
func (s *SessionService) Delete(ctx context.Context, id domain.SessionID) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.backend.DeleteSession(ctx, id); err != nil {
		s.logger.Error("Failed to delete session", zap.String("session_id", id.String()), zap.Error(err))
		s.hub.Error(MsgDeleteSessionFailed)
		return err
	}

	if s.store.RemoveSession(id) {
		s.logger.Info("Deleted active session", zap.String("session_id", id.String()))
	}
	s.hub.Success(MsgSessionDeleted)

	// The local removal already holds; a failed refresh is reported on its own.
	_, _ = s.refreshSessions(ctx)
	return nil
}

// Select activates a listed session, clears messages and sources at once,
// then loads its history.
func (s *SessionService) Select(ctx context.Context, id domain.SessionID) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, ok := s.store.Activate(id); !ok {
		return domain.ErrSessionNotFound
	}
	return s.loadHistory(ctx, id)
}

// Active returns the active session, if any
func (s *SessionService) Active() (domain.Session, bool) {
	snap := s.store.Snapshot()
	if snap.Active == nil {
		return domain.Session{}, false
	}
	return *snap.Active, true
}
