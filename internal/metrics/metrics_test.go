package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(Config{ServiceName: "test", Namespace: "tenant_onboarding"})

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(),
		`tenant_onboarding_http_requests_total{method="GET",path="/sessions/:id",service="test",status="200"} 2`)
}

func TestHandler_ExposesOnboardingMetrics(t *testing.T) {
	m := New(Config{ServiceName: "test", Namespace: "tenant_onboarding"})
	m.SessionsStarted.Inc()
	m.Submissions.WithLabelValues("SUCCEEDED").Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, "tenant_onboarding_onboarding_sessions_started_total"))
	assert.True(t, strings.Contains(body, `tenant_onboarding_onboarding_submissions_total{service="test",status="SUCCEEDED"} 1`))
}
