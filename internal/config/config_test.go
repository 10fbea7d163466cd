package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 300*time.Millisecond, cfg.Wizard.DraftDebounce)
	assert.Equal(t, int64(10*1024*1024), cfg.Wizard.MaxUploadBytes)
	assert.Equal(t, "AED", cfg.Wizard.Currency)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, uint32(5), cfg.Backend.BreakerFailures)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.False(t, cfg.IsProduction())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("BACKEND_API_URL", "http://backend:8080/api/")
	t.Setenv("WIZARD_DRAFT_DEBOUNCE", "500ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("APP_ENV", "production")

	cfg := New()

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "http://backend:8080/api", cfg.Backend.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Wizard.DraftDebounce)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_BOOL", "maybe")
	t.Setenv("TEST_DURATION", "soon")
	t.Setenv("TEST_FLOAT", "x")
	t.Setenv("TEST_SLICE", " , ")

	assert.Equal(t, 7, getEnvAsIntWithDefault("TEST_INT", 7))
	assert.True(t, getEnvAsBoolWithDefault("TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvAsDurationWithDefault("TEST_DURATION", time.Second))
	assert.Equal(t, 1.5, getEnvAsFloatWithDefault("TEST_FLOAT", 1.5))
	assert.Equal(t, []string{"x"}, getEnvAsSliceWithDefault("TEST_SLICE", []string{"x"}))
}
