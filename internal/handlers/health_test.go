package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type fakeConn struct{ up bool }

func (c fakeConn) IsConnected() bool { return c.up }

type fakeBreaker struct{ state gobreaker.State }

func (b fakeBreaker) BreakerState() gobreaker.State { return b.state }

func serveHealth(t *testing.T, h *HealthHandler, path string) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestHealth_Liveness(t *testing.T) {
	h := NewHealthHandler("tenant-onboarding-service", "1.0.0")

	code, resp := serveHealth(t, h, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Nil(t, resp.Checks)

	code, resp = serveHealth(t, h, "/health?detailed=true")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "disabled", resp.Checks["database"].Status)
	assert.NotNil(t, resp.System)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		opts       []HealthOption
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all dependencies up",
			opts:       []HealthOption{WithRedis(fakePinger{}), WithNATS(fakeConn{up: true}), WithBackend(fakeBreaker{gobreaker.StateClosed})},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "redis down",
			opts:       []HealthOption{WithRedis(fakePinger{err: errors.New("refused")})},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
		{
			name:       "breaker open",
			opts:       []HealthOption{WithBackend(fakeBreaker{gobreaker.StateOpen})},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "nats disconnected",
			opts:       []HealthOption{WithNATS(fakeConn{})},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := serveHealth(t, NewHealthHandler("svc", "1.0.0", tt.opts...), "/ready")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, 4)
		})
	}
}
