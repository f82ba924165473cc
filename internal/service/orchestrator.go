package service

import (
	"context"

	"github.com/liliang-cn/ragdesk/internal/client"
	"github.com/liliang-cn/ragdesk/internal/config"
	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/state"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Orchestrator wires the client-side services around one store and runs
// the startup sequence.
type Orchestrator struct {
	Gate     *HealthGate
	Sessions *SessionService
	Conv     *ConversationService
	Config   *ConfigService
	Hub      *NotificationHub
	Store    *state.Store

	logger *zap.Logger
}

// NewOrchestrator builds all services on top of backend
func NewOrchestrator(backend Backend, notify config.NotificationsConfig, logger *zap.Logger) *Orchestrator {
	store := state.NewStore()
	gate := NewHealthGate(backend, logger)
	hub := NewNotificationHub(notify.ErrorDuration, notify.SuccessDuration)

	return &Orchestrator{
		Gate:     gate,
		Sessions: NewSessionService(backend, store, gate, hub, logger),
		Conv:     NewConversationService(backend, store, gate, hub, logger),
		Config:   NewConfigService(backend, store, gate, hub, logger),
		Hub:      hub,
		Store:    store,
		logger:   logger,
	}
}

// NewOrchestratorFromConfig creates the HTTP client and the services
func NewOrchestratorFromConfig(cfg *config.Config, logger *zap.Logger) *Orchestrator {
	c := client.New(cfg.Backend.BaseURL,
		client.WithTimeout(cfg.Backend.Timeout),
		client.WithLogger(logger),
	)
	return NewOrchestrator(c, cfg.Notifications, logger)
}

// Start runs the health check and, if the backend is healthy, loads the
// session list and stats concurrently. An unhealthy backend is not an
// error; the returned status tells the caller what to show.
func (o *Orchestrator) Start(ctx context.Context) (domain.HealthStatus, error) {
	status := o.Gate.Check(ctx)
	if !status.Healthy() {
		return status, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := o.Sessions.List(gctx)
		return err
	})
	g.Go(func() error {
		// Stats are informational; a failure does not abort startup.
		_ = o.Config.LoadStats(gctx)
		return nil
	})
	return status, g.Wait()
}

// Shutdown stops accepting pending responses and clears notifications
func (o *Orchestrator) Shutdown() {
	o.Conv.Reset()
	o.Hub.Dismiss(NotificationError)
	o.Hub.Dismiss(NotificationSuccess)
	o.logger.Debug("Services shut down")
}
