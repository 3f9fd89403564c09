package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("VIDEOTUBE_TOKEN_ACCESS_SECRET", "access-secret")
	t.Setenv("VIDEOTUBE_TOKEN_REFRESH_SECRET", "refresh-secret")
}

func TestLoad_DefaultValues(t *testing.T) {
	setSecrets(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.AppPort)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Empty(t, cfg.MigrationDir)
	assert.Empty(t, cfg.SeedDir)
	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTTL)
	assert.Equal(t, 240*time.Hour, cfg.Tokens.RefreshTTL)
	assert.True(t, cfg.Cookies.Secure)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.ObjectStore.Enabled())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*testing.T, Config)
	}{
		{
			name:    "port and driver",
			envVars: map[string]string{"VIDEOTUBE_PORT": "9090", "VIDEOTUBE_STORE_DRIVER": "memory"},
			expected: func(t *testing.T, cfg Config) {
				assert.Equal(t, 9090, cfg.AppPort)
				assert.Equal(t, "memory", cfg.StoreDriver)
			},
		},
		{
			name: "token settings",
			envVars: map[string]string{
				"VIDEOTUBE_TOKEN_ACCESS_SECRET":  "a",
				"VIDEOTUBE_TOKEN_REFRESH_SECRET": "r",
				"VIDEOTUBE_TOKEN_ACCESS_TTL":     "1h",
				"VIDEOTUBE_TOKEN_REFRESH_TTL":    "72h",
			},
			expected: func(t *testing.T, cfg Config) {
				assert.Equal(t, "a", cfg.Tokens.AccessSecret)
				assert.Equal(t, "r", cfg.Tokens.RefreshSecret)
				assert.Equal(t, time.Hour, cfg.Tokens.AccessTTL)
				assert.Equal(t, 72*time.Hour, cfg.Tokens.RefreshTTL)
			},
		},
		{
			name: "object store",
			envVars: map[string]string{
				"VIDEOTUBE_OBJECT_STORE_BUCKET":   "media",
				"VIDEOTUBE_OBJECT_STORE_ENDPOINT": "http://localhost:9000",
			},
			expected: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.ObjectStore.Enabled())
				assert.Equal(t, "http://localhost:9000", cfg.ObjectStore.Endpoint)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setSecrets(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)
			tt.expected(t, cfg)
		})
	}
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("missing secrets", func(t *testing.T) {
		t.Setenv("VIDEOTUBE_TOKEN_ACCESS_SECRET", "")
		t.Setenv("VIDEOTUBE_TOKEN_REFRESH_SECRET", "")
		os.Unsetenv("VIDEOTUBE_TOKEN_ACCESS_SECRET")
		os.Unsetenv("VIDEOTUBE_TOKEN_REFRESH_SECRET")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("empty access secret", func(t *testing.T) {
		setSecrets(t)
		t.Setenv("VIDEOTUBE_TOKEN_ACCESS_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		setSecrets(t)
		t.Setenv("VIDEOTUBE_STORE_DRIVER", "mongo")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("access outlives refresh", func(t *testing.T) {
		setSecrets(t)
		t.Setenv("VIDEOTUBE_TOKEN_ACCESS_TTL", "48h")
		t.Setenv("VIDEOTUBE_TOKEN_REFRESH_TTL", "24h")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed duration", func(t *testing.T) {
		setSecrets(t)
		t.Setenv("VIDEOTUBE_TOKEN_ACCESS_TTL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}
