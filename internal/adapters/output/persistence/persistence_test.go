package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStateRepository_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "dwelo-state.json")

	repo := NewJSONStateRepository(path)
	_, ok := repo.LastBrightness(context.Background(), "2")
	assert.False(t, ok)

	require.NoError(t, repo.SaveLastBrightness(context.Background(), "2", 65))

	reopened := NewJSONStateRepository(path)
	level, ok := reopened.LastBrightness(context.Background(), "2")
	assert.True(t, ok)
	assert.Equal(t, 65, level)
}

func TestJSONStateRepository_Migration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"7": 40, "9": 100}`), 0o644))

	repo := NewJSONStateRepository(path)
	level, ok := repo.LastBrightness(context.Background(), "7")

	assert.True(t, ok)
	assert.Equal(t, 40, level)

	require.NoError(t, repo.SaveLastBrightness(context.Background(), "7", 41))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
}

func TestParseConfig(t *testing.T) {
	t.Setenv("DWELO_TOKEN", "secret-token")

	cfg, err := ParseConfig([]byte(`
dwelo:
  token: ${DWELO_TOKEN}
  gateway_id: "12345"
  request_delay: 250ms
confirm:
  timeout: 45s
lock:
  auto_lock: 2m
mqtt:
  enabled: true
  broker: tcp://broker:1883
`))

	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Dwelo.Token)
	assert.Equal(t, "12345", cfg.Dwelo.GatewayID)
	assert.Equal(t, 250*time.Millisecond, cfg.Dwelo.RequestDelay)
	assert.Equal(t, 45*time.Second, cfg.Confirm.Timeout)
	assert.Equal(t, time.Second, cfg.Confirm.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Lock.AutoLock)
	assert.Equal(t, "https://api.dwelo.com", cfg.Dwelo.BaseURL)
	assert.Equal(t, "dwelo", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
}

func TestParseConfig_Invalid(t *testing.T) {
	_, err := ParseConfig([]byte(`
mqtt:
  enabled: true
`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dwelo.token is required")
	assert.Contains(t, err.Error(), "dwelo.gateway_id is required")
	assert.Contains(t, err.Error(), "mqtt.broker is required")
}

func TestParseConfig_InvalidDurations(t *testing.T) {
	const creds = "  token: abc\n  gateway_id: \"1\"\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"request delay below floor", "dwelo:\n" + creds + "  request_delay: 1ms\n", "dwelo.request_delay must be at least 100ms"},
		{"negative request delay", "dwelo:\n" + creds + "  request_delay: -1s\n", "dwelo.request_delay must be at least 100ms"},
		{"negative confirm interval", "dwelo:\n" + creds + "confirm:\n  interval: -1s\n", "confirm.interval must not be negative"},
		{"negative confirm timeout", "dwelo:\n" + creds + "confirm:\n  timeout: -5s\n", "confirm.timeout must not be negative"},
		{"negative debounce", "dwelo:\n" + creds + "debounce: -500ms\n", "debounce must not be negative"},
		{"negative cache ttl", "dwelo:\n" + creds + "status_cache_ttl: -2s\n", "status_cache_ttl must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestYAMLConfigRepository_Get(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dwelo:\n  token: abc\n  gateway_id: \"1\"\n"), 0o644))

	repo := NewYAMLConfigRepository(path)
	first, err := repo.Get(context.Background())
	require.NoError(t, err)
	second, err := repo.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "abc", first.Dwelo.Token)

	_, err = NewYAMLConfigRepository(filepath.Join(t.TempDir(), "missing.yaml")).Get(context.Background())
	assert.Error(t, err)
}
