package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "NOTIFY_GATEWAY_URL", "http://gateway.local")
	setEnv(t, "BLOCKED_CITIES", "Tindouf, Illizi")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "http://gateway.local", cfg.NotifyGatewayURL)
	assert.Equal(t, float64(DefaultHighValueThreshold), cfg.HighValueThreshold)
	assert.Equal(t, []string{"Tindouf", "Illizi"}, cfg.BlockedCities)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPS)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "NOTIFY_GATEWAY_URL", "BLOCKED_CITIES", "HIGH_VALUE_THRESHOLD"} {
		setEnv(t, key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NotifyGatewayURL)
	assert.Nil(t, cfg.BlockedCities)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				Port:               "8080",
				HighValueThreshold: 50000,
				RateLimitRPS:       100,
			},
			wantErr: "",
		},
		{
			name: "non-positive threshold",
			config: Config{
				Port:               "8080",
				HighValueThreshold: 0,
				RateLimitRPS:       100,
			},
			wantErr: "HIGH_VALUE_THRESHOLD",
		},
		{
			name: "non-positive rate limit",
			config: Config{
				Port:               "8080",
				HighValueThreshold: 50000,
				RateLimitRPS:       0,
			},
			wantErr: "RATE_LIMIT_RPS",
		},
		{
			name: "non-numeric port",
			config: Config{
				Port:               "eighty",
				HighValueThreshold: 50000,
				RateLimitRPS:       100,
			},
			wantErr: "PORT must be numeric",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvFloat(t *testing.T) {
	setEnv(t, "TEST_FLOAT", "75000.5")
	setEnv(t, "TEST_INVALID_FLOAT", "expensive")

	assert.Equal(t, 75000.5, getEnvFloat("TEST_FLOAT", 0))
	assert.Equal(t, 1.5, getEnvFloat("NONEXISTENT_VAR", 1.5))
	assert.Equal(t, 1.5, getEnvFloat("TEST_INVALID_FLOAT", 1.5))
}

func TestGetEnvList(t *testing.T) {
	setEnv(t, "TEST_LIST", "a, b ,,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST"))
	assert.Nil(t, getEnvList("NONEXISTENT_VAR"))
}
