package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("SIMLINK_TEST_URL", "ws://backend:9001/ws")

	in := []byte("url: ${SIMLINK_TEST_URL}\nlevel: ${SIMLINK_TEST_MISSING:info}\n")
	out := resolveEnv(in)

	assert.Contains(t, string(out), "ws://backend:9001/ws")
	assert.Contains(t, string(out), "level: info")
}

func TestResolveEnvNoDefault(t *testing.T) {
	out := resolveEnv([]byte("value: ${SIMLINK_TEST_UNSET}"))
	assert.Equal(t, "value: ", string(out))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simlink.yaml")
	content := `
backend:
  url: ${SIMLINK_BACKEND_URL:ws://localhost:8764/ws}
session:
  heartbeat_interval: 15s
  queue_size: 50
  request_timeout: 5s
  ephemeral_types:
    - ping
    - debug_model_info
  reply_types:
    debug_model_info: debug_model_info
presets:
  base_url: http://localhost:8765
logger:
  level: debug
  format: console
metrics:
  namespace: simlink
tracing:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, cfgPath, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfgPath)
	assert.Equal(t, "ws://localhost:8764/ws", cfg.Backend.URL)
	assert.Equal(t, 15*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, 50, cfg.Session.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.Session.RequestTimeout)
	assert.Equal(t, []string{"ping", "debug_model_info"}, cfg.Session.EphemeralTypes)
	assert.Equal(t, map[string]string{"debug_model_info": "debug_model_info"}, cfg.Session.ReplyTypes)
	assert.Equal(t, "http://localhost:8765", cfg.Presets.BaseURL)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "simlink", cfg.Metrics.Namespace)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
