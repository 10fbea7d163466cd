package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"
)

var startTime = time.Now()

// Pinger is a dependency that can report its connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionChecker reports whether a long-lived connection is up
type ConnectionChecker interface {
	IsConnected() bool
}

// BreakerReporter exposes the backend circuit breaker state
type BreakerReporter interface {
	BreakerState() gobreaker.State
}

// HealthHandler handles health check endpoints. Every dependency is optional;
// a nil one is reported as disabled.
type HealthHandler struct {
	service string
	version string
	db      *gorm.DB
	redis   Pinger
	nats    ConnectionChecker
	backend BreakerReporter
}

// HealthOption configures a HealthHandler
type HealthOption func(*HealthHandler)

// WithDatabase adds the audit database check
func WithDatabase(db *gorm.DB) HealthOption {
	return func(h *HealthHandler) { h.db = db }
}

// WithRedis adds the session store check
func WithRedis(p Pinger) HealthOption {
	return func(h *HealthHandler) { h.redis = p }
}

// WithNATS adds the event bus check
func WithNATS(nc ConnectionChecker) HealthOption {
	return func(h *HealthHandler) { h.nats = nc }
}

// WithBackend adds the backend breaker check
func WithBackend(b BreakerReporter) HealthOption {
	return func(h *HealthHandler) { h.backend = b }
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service, version string, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{service: service, version: version}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Service   string           `json:"service"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a health check result
type Check struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemInfo represents system runtime information
type SystemInfo struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_mb"`
	MemorySys   uint64 `json:"memory_sys_mb"`
	NumCPU      int    `json:"num_cpu"`
	GoVersion   string `json:"go_version"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
	statusDisabled  = "disabled"
)

// Health is the liveness check; ?detailed=true adds dependency checks
func (h *HealthHandler) Health(c *gin.Context) {
	response := h.response(statusHealthy)

	if c.Query("detailed") == "true" {
		response.Checks = h.performHealthChecks(c.Request.Context())
		response.System = systemInfo()
	}

	c.JSON(http.StatusOK, response)
}

// Ready is the readiness check. An open backend breaker degrades the
// service without taking it out of rotation; sessions can still be edited.
func (h *HealthHandler) Ready(c *gin.Context) {
	response := h.response(statusHealthy)
	response.Checks = h.performHealthChecks(c.Request.Context())

	status := http.StatusOK
	for _, check := range response.Checks {
		switch check.Status {
		case statusUnhealthy:
			response.Status = statusUnhealthy
			status = http.StatusServiceUnavailable
		case statusDegraded:
			if response.Status == statusHealthy {
				response.Status = statusDegraded
			}
		}
	}

	c.JSON(status, response)
}

func (h *HealthHandler) response(status string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Service:   h.service,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *HealthHandler) performHealthChecks(ctx context.Context) map[string]Check {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return map[string]Check{
		"database": h.checkDatabase(ctx),
		"redis":    h.checkRedis(ctx),
		"nats":     h.checkNATS(),
		"backend":  h.checkBackend(),
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	if h.db == nil {
		return Check{Status: statusDisabled, Message: "Submission audit log disabled"}
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return Check{Status: statusUnhealthy, Message: "Failed to get database instance"}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return Check{Status: statusUnhealthy, Message: "Database ping failed"}
	}

	stats := sqlDB.Stats()
	return Check{
		Status:  statusHealthy,
		Message: "Database connected",
		Details: map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	}
}

func (h *HealthHandler) checkRedis(ctx context.Context) Check {
	if h.redis == nil {
		return Check{Status: statusDisabled, Message: "Sessions kept in memory"}
	}
	if err := h.redis.Ping(ctx); err != nil {
		return Check{Status: statusUnhealthy, Message: "Redis ping failed"}
	}
	return Check{Status: statusHealthy, Message: "Redis connected"}
}

func (h *HealthHandler) checkNATS() Check {
	if h.nats == nil {
		return Check{Status: statusDisabled, Message: "Event publishing disabled"}
	}
	// events are best effort, a lost connection only degrades
	if !h.nats.IsConnected() {
		return Check{Status: statusDegraded, Message: "NATS disconnected"}
	}
	return Check{Status: statusHealthy, Message: "NATS connected"}
}

func (h *HealthHandler) checkBackend() Check {
	if h.backend == nil {
		return Check{Status: statusDisabled}
	}
	state := h.backend.BreakerState()
	check := Check{
		Status:  statusHealthy,
		Details: map[string]interface{}{"breaker": state.String()},
	}
	switch state {
	case gobreaker.StateOpen:
		check.Status = statusDegraded
		check.Message = "Backend circuit open"
	case gobreaker.StateHalfOpen:
		check.Message = "Backend recovering"
	default:
		check.Message = "Backend reachable"
	}
	return check
}

func systemInfo() *SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &SystemInfo{
		Goroutines:  runtime.NumGoroutine(),
		MemoryAlloc: mem.Alloc / 1024 / 1024,
		MemorySys:   mem.Sys / 1024 / 1024,
		NumCPU:      runtime.NumCPU(),
		GoVersion:   runtime.Version(),
	}
}
