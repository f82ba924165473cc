package service

import (
	"context"
	"math"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/state"
	"go.uber.org/zap"
)

// ConfigService handles retrieval tuning and the stats snapshot
type ConfigService struct {
	deps
}

// NewConfigService creates a new config service
func NewConfigService(
	backend Backend,
	store *state.Store,
	gate Gate,
	hub *NotificationHub,
	logger *zap.Logger,
) *ConfigService {
	return &ConfigService{deps: deps{
		backend: backend,
		store:   store,
		gate:    gate,
		hub:     hub,
		logger:  logger,
	}}
}

// SetAlpha clamps alpha to [0,1] and sends it to the backend. The value
// actually transmitted is returned.
func (s *ConfigService) SetAlpha(ctx context.Context, alpha float64) (float64, error) {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return 0, domain.ErrInvalidAlpha
	}
	alpha = domain.ClampAlpha(alpha)
	if err := s.ready(); err != nil {
		return alpha, err
	}

	if err := s.backend.SetAlpha(ctx, alpha); err != nil {
		s.logger.Error("Failed to update alpha", zap.Float64("alpha", alpha), zap.Error(err))
		s.hub.Error(MsgSetAlphaFailed)
		return alpha, err
	}

	s.logger.Info("Alpha updated", zap.Float64("alpha", alpha))
	s.hub.Success(MsgAlphaUpdated)
	_ = s.LoadStats(ctx)
	return alpha, nil
}

// LoadStats refreshes the stats snapshot. Failures are logged only.
func (s *ConfigService) LoadStats(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	tok := s.store.BeginStatsLoad()
	stats, err := s.backend.GetStats(ctx)
	if err != nil {
		s.logger.Warn("Failed to load stats", zap.Error(err))
		return err
	}
	if !s.store.ApplyStats(tok, *stats) {
		s.logger.Debug("Dropped stale stats")
	}
	return nil
}

// Stats returns the last loaded stats, if any
func (s *ConfigService) Stats() (domain.SystemStats, bool) {
	snap := s.store.Snapshot()
	if snap.Stats == nil {
		return domain.SystemStats{}, false
	}
	return *snap.Stats, true
}
