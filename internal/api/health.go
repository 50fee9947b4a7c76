package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openclaw/agentops/internal/store"
)

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime,omitempty"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// MemoryStats reports Go runtime memory usage in bytes.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// ServiceStatus reports one dependency.
type ServiceStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DetailedHealth is the body of GET /api/health/detailed.
type DetailedHealth struct {
	HealthStatus
	Memory   MemoryStats              `json:"memory"`
	Services map[string]ServiceStatus `json:"services"`
	Stats    store.Counts             `json:"stats"`
}

func (s *server) uptime() float64 {
	return time.Since(s.started).Seconds()
}

func (s *server) unhealthy(c *gin.Context, err error) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("health check failed")
	c.JSON(http.StatusServiceUnavailable, HealthStatus{
		Status:    "unhealthy",
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	})
}

func (s *server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.unhealthy(c, err)
		return
	}
	c.JSON(http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    s.uptime(),
		Version:   s.version,
	})
}

func (s *server) handleHealthDetailed(c *gin.Context) {
	ctx := c.Request.Context()

	db := ServiceStatus{Status: "connected"}
	if err := s.store.Ping(ctx); err != nil {
		db = ServiceStatus{Status: "error", Message: err.Error()}
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.unhealthy(c, err)
		return
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.JSON(http.StatusOK, DetailedHealth{
		HealthStatus: HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Uptime:    s.uptime(),
			Version:   s.version,
		},
		Memory: MemoryStats{
			Alloc:      ms.Alloc,
			TotalAlloc: ms.TotalAlloc,
			Sys:        ms.Sys,
			HeapAlloc:  ms.HeapAlloc,
			NumGC:      ms.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
		Services: map[string]ServiceStatus{"database": db},
		Stats:    counts,
	})
}
