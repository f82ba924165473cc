package service

import (
	"context"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/state"
	"go.uber.org/zap"
)

// Backend is the transport surface the services depend on
type Backend interface {
	HealthChecker
	CreateSession(ctx context.Context, name string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	DeleteSession(ctx context.Context, id domain.SessionID) error
	ListMessages(ctx context.Context, id domain.SessionID) ([]domain.Message, error)
	Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error)
	SetAlpha(ctx context.Context, alpha float64) error
	GetStats(ctx context.Context) (*domain.SystemStats, error)
}

// Notification texts
const (
	MsgLoadSessionsFailed  = "Failed to load sessions"
	MsgCreateSessionFailed = "Failed to create session"
	MsgDeleteSessionFailed = "Failed to delete session"
	MsgLoadMessagesFailed  = "Failed to load messages"
	MsgAskFailed           = "Failed to get answer"
	MsgSetAlphaFailed      = "Failed to update alpha"

	MsgSessionCreated  = "Session created"
	MsgSessionDeleted  = "Session deleted"
	MsgAnswerReceived  = "Answer received"
	MsgAnswerFromCache = "Answer served from cache"
	MsgAlphaUpdated    = "Alpha updated"
)

// deps is shared by the services. Its helpers are the only code paths that
// write the session list and the message list.
type deps struct {
	backend Backend
	store   *state.Store
	gate    Gate
	hub     *NotificationHub
	logger  *zap.Logger
}

func (d *deps) ready() error {
	if d.gate != nil && !d.gate.Ready() {
		return domain.ErrNotReady
	}
	return nil
}

// refreshSessions loads the session list and applies it unless a newer load
// or a deletion superseded it. The fetched list is returned either way.
func (d *deps) refreshSessions(ctx context.Context) ([]domain.Session, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	tok := d.store.BeginSessionsRefresh()
	sessions, err := d.backend.ListSessions(ctx)
	if err != nil {
		d.logger.Error("Failed to load sessions", zap.Error(err))
		d.hub.Error(MsgLoadSessionsFailed)
		return nil, err
	}
	if !d.store.ApplySessions(tok, sessions) {
		d.logger.Debug("Dropped stale session list", zap.Uint64("token", uint64(tok)))
	}
	return sessions, nil
}

// loadHistory fetches the history of id and applies it only if id is still
// active and no newer load was issued.
func (d *deps) loadHistory(ctx context.Context, id domain.SessionID) error {
	if err := d.ready(); err != nil {
		return err
	}
	tok := d.store.BeginMessagesLoad()
	messages, err := d.backend.ListMessages(ctx, id)
	if err != nil {
		d.logger.Error("Failed to load messages", zap.String("session_id", id.String()), zap.Error(err))
		if d.store.ActiveID() == id {
			d.hub.Error(MsgLoadMessagesFailed)
		}
		return err
	}
	if !d.store.ApplyMessages(tok, id, messages) {
		d.logger.Debug("Dropped stale message history", zap.String("session_id", id.String()))
	}
	return nil
}
