package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STRIPE_API_KEY", "")
	t.Setenv("ADMIN_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.Equal(t, 0, cfg.EscalationWindowHours)
	assert.True(t, cfg.IsDevelopment())
}

func TestValidate_ProductionRequirements(t *testing.T) {
	cfg := &Config{Env: "production"}
	assert.ErrorContains(t, cfg.Validate(), "ADMIN_SECRET")

	cfg.AdminSecret = "s3cret"
	assert.ErrorContains(t, cfg.Validate(), "STRIPE_API_KEY")

	cfg.StripeAPIKey = "sk_test_x"
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/coachwise"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_NegativeEscalationWindow(t *testing.T) {
	cfg := &Config{Env: "development", EscalationWindowHours: -1}
	assert.Error(t, cfg.Validate())
}

func TestLoad_EscalationWindow(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("ESCALATION_WINDOW_HOURS", "72")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 72, cfg.EscalationWindowHours)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"*"}, splitList("*"))
	assert.Nil(t, splitList(""))
}
