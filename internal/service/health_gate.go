package service

import (
	"context"
	"sync"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"go.uber.org/zap"
)

// GateState is the lifecycle of the startup health check
type GateState int

const (
	GateUnchecked GateState = iota
	GateChecking
	GateHealthy
	GateUnhealthy
)

func (s GateState) String() string {
	switch s {
	case GateChecking:
		return "checking"
	case GateHealthy:
		return "healthy"
	case GateUnhealthy:
		return "unhealthy"
	default:
		return "unchecked"
	}
}

// Gate tells services whether they may talk to the backend
type Gate interface {
	Ready() bool
}

// HealthChecker probes backend health without failing
type HealthChecker interface {
	HealthCheck(ctx context.Context) domain.HealthStatus
}

// HealthGate runs the startup health check once. Its terminal states are
// never left; rechecking requires a new process.
type HealthGate struct {
	checker HealthChecker
	logger  *zap.Logger

	mu     sync.Mutex
	state  GateState
	status domain.HealthStatus
	done   chan struct{}
}

// NewHealthGate creates an unchecked gate
func NewHealthGate(checker HealthChecker, logger *zap.Logger) *HealthGate {
	return &HealthGate{
		checker: checker,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Check probes the backend on the first call. Concurrent and later calls
// wait for that probe and return its result.
func (g *HealthGate) Check(ctx context.Context) domain.HealthStatus {
	g.mu.Lock()
	if g.state != GateUnchecked {
		g.mu.Unlock()
		select {
		case <-g.done:
		case <-ctx.Done():
			return domain.HealthStatus{Status: domain.HealthUnhealthy, Error: ctx.Err().Error()}
		}
		return g.Status()
	}
	g.state = GateChecking
	g.mu.Unlock()

	status := g.checker.HealthCheck(ctx)

	g.mu.Lock()
	g.status = status
	if status.Healthy() {
		g.state = GateHealthy
		g.logger.Info("Backend healthy", zap.Int("chunks_loaded", status.ChunksLoaded))
	} else {
		g.state = GateUnhealthy
		g.logger.Error("Backend unhealthy", zap.String("error", status.Error))
	}
	close(g.done)
	g.mu.Unlock()

	return status
}

// State returns the current gate state
func (g *HealthGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Status returns the settled health status
func (g *HealthGate) Status() domain.HealthStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Ready reports whether the backend passed the health check
func (g *HealthGate) Ready() bool {
	return g.State() == GateHealthy
}
