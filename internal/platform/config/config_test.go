package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_defaults(t *testing.T) {
	for _, k := range []string{"PORT", "BOXCAST_API_URL", "ANALYTICS_ENABLED", "ATTACH_TIMEOUT", "ATTACH_FAILURE_POLICY", "OPEN_SESSIONS_PER_MINUTE"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.AnalyticsEnabled, "analytics should default to enabled")
	assert.Equal(t, 5*time.Second, cfg.AttachTimeout)
	assert.Equal(t, "continue", cfg.AttachFailurePolicy)
	assert.Equal(t, 60, cfg.OpenSessionsPerMinute)
}

func TestFromEnv_overrides(t *testing.T) {
	t.Setenv("ANALYTICS_ENABLED", "false")
	t.Setenv("AUTO_FULLSCREEN_ON_UPDATE", "1")
	t.Setenv("ATTACH_TIMEOUT", "250ms")
	t.Setenv("BOXCAST_RATE_PER_SEC", "2.5")

	cfg := FromEnv()
	assert.False(t, cfg.AnalyticsEnabled)
	assert.True(t, cfg.AutoFullscreenOnUpdate)
	assert.Equal(t, 250*time.Millisecond, cfg.AttachTimeout)
	assert.Equal(t, 2.5, cfg.APIRatePerSec)
}

func TestGetEnv_invalid_values_fall_back(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	assert.Equal(t, 3, GetEnvInt("X_INT", 3))
	assert.True(t, GetEnvBool("X_BOOL", true))
	assert.Equal(t, time.Second, GetEnvDuration("X_DUR", time.Second))
}

func TestLoad_dotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PLAYER_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("PLAYER_TEST_KEY", "")
	os.Unsetenv("PLAYER_TEST_KEY")

	require.NoError(t, Load(path))
	assert.Equal(t, "from-file", GetEnv("PLAYER_TEST_KEY", ""))
}
