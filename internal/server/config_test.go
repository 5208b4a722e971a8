package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radon.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "127.0.0.1:8080", cfg.Address)
	assert.True(t, cfg.WebSocketEnabled)
	assert.Equal(t, []string{"http://localhost:8080", "http://127.0.0.1:8080"}, cfg.AllowedOrigins)
	assert.EqualValues(t, 4096, cfg.MaxMessageSize)
	assert.Equal(t, 32, cfg.MaxNameLength)
	assert.Equal(t, 10, cfg.BroadcastCapacity)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.PongTimeout)
	assert.Equal(t, 54*time.Second, cfg.PingInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
address = "0.0.0.0:9000"
ws_enabled = false
allowed_origins = ["https://chat.example.com"]
max_name_length = 12
write_timeout = "3s"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Address)
	assert.False(t, cfg.WebSocketEnabled)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 12, cfg.MaxNameLength)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 10, cfg.BroadcastCapacity)
	assert.Equal(t, 60*time.Second, cfg.PongTimeout)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `address = "0.0.0.0:9000"`)
	t.Setenv("RADON_ADDRESS", "127.0.0.1:7000")
	t.Setenv("RADON_BROADCAST_CAPACITY", "32")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Address)
	assert.Equal(t, 32, cfg.BroadcastCapacity)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "unknown key", body: `colour = "blue"`, want: "unknown key"},
		{name: "bad duration", body: `pong_timeout = "soon"`, want: "parse pong_timeout"},
		{name: "malformed toml", body: `address = `, want: "load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := defaultConfig()
	es := env.EnvSet{
		"RADON_WS_ENABLED":       "false",
		"RADON_ALLOWED_ORIGINS":  "https://a.example, https://b.example",
		"RADON_MAX_MESSAGE_SIZE": "1024",
		"RADON_MAX_NAME_LENGTH":  "-4",
		"RADON_PONG_TIMEOUT":     "bogus",
		"RADON_PING_INTERVAL":    "20",
		"RADON_WRITE_TIMEOUT":    "250ms",
	}

	require.NoError(t, cfg.applyEnv(es))

	assert.False(t, cfg.WebSocketEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.EqualValues(t, 1024, cfg.MaxMessageSize)
	assert.Equal(t, 32, cfg.MaxNameLength, "invalid values keep the current setting")
	assert.Equal(t, 60*time.Second, cfg.PongTimeout)
	assert.Equal(t, 20*time.Second, cfg.PingInterval, "bare integers are seconds")
	assert.Equal(t, 250*time.Millisecond, cfg.WriteTimeout)
}

func TestSanitize(t *testing.T) {
	cfg := Config{
		PongTimeout:  10 * time.Second,
		PingInterval: 30 * time.Second,
	}.Sanitize()

	assert.Equal(t, defaultAddress, cfg.Address)
	assert.EqualValues(t, defaultMaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, 32, cfg.MaxNameLength)
	assert.Equal(t, 10, cfg.BroadcastCapacity)
	assert.Equal(t, 9*time.Second, cfg.PingInterval)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestSanitizeCopiesOrigins(t *testing.T) {
	origins := []string{"http://localhost:8080"}
	cfg := Config{AllowedOrigins: origins}.Sanitize()

	cfg.AllowedOrigins[0] = "changed"
	assert.Equal(t, "http://localhost:8080", origins[0])
}
