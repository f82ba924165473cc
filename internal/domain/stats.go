package domain

import "math"

// Health status values
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

// SystemStats represents server-side aggregate state
type SystemStats struct {
	TotalChunks int     `json:"total_chunks"`
	Alpha       float64 `json:"alpha"`
	Tables      int     `json:"tables"`
}

// HealthStatus is the result of a backend health probe
type HealthStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	ChunksLoaded int    `json:"chunks_loaded,omitempty"`
}

// Healthy reports whether the backend declared itself healthy
func (h HealthStatus) Healthy() bool {
	return h.Status == HealthHealthy
}

// ClampAlpha bounds a retrieval blend coefficient to [0,1]
func ClampAlpha(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
