package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestGenerateConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqcast", "config.toml")
	require.NoError(t, GenerateConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got fileConfig
	require.NoError(t, toml.Unmarshal(data, &got))
	assert.Equal(t, defaults(), got)

	// an existing file is left untouched
	require.NoError(t, os.WriteFile(path, []byte(`url = "ws://127.0.0.1:9000/feed"`), 0o644))
	require.NoError(t, GenerateConfig(path))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `url = "ws://127.0.0.1:9000/feed"`, string(data))
}

func TestResolveDefaults(t *testing.T) {
	resetViper(t)
	setDefaults()

	cfg, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "tcp://127.0.0.1:5555", cfg.URL)
	assert.Equal(t, ModeTicker, cfg.Mode)
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, 60*time.Second, cfg.Heartbeat)
	assert.Equal(t, 2*time.Millisecond, cfg.IdleWait)
	assert.Equal(t, 8<<20, cfg.SendBuffer)
	assert.Equal(t, 1<<20, cfg.ScratchBuffer)
	assert.Equal(t, -1, cfg.CPUCore)
	assert.Zero(t, cfg.MaxSendRetries)
	assert.Len(t, cfg.ServerOptions(), 6)
}

func TestResolveFromFileAndEnvironment(t *testing.T) {
	resetViper(t)
	setDefaults()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
url = "ipc:///tmp/mqcast-test.ipc"
confirm = true
mode = "stdin"
send_buffer = "2MB"
max_send_retries = 5
`), 0o644))
	viper.SetConfigFile(path)
	viper.SetConfigType("toml")
	require.NoError(t, viper.ReadInConfig())

	t.Setenv("MQCAST_TOPIC", "quotes")
	require.NoError(t, SetupEnvironment())

	cfg, err := Resolve()
	require.NoError(t, err)
	assert.Equal(t, "ipc:///tmp/mqcast-test.ipc", cfg.URL)
	assert.True(t, cfg.Confirm)
	assert.Equal(t, ModeStdin, cfg.Mode)
	assert.Equal(t, "quotes", cfg.Topic)
	assert.Equal(t, 2<<20, cfg.SendBuffer)
	assert.EqualValues(t, 5, cfg.MaxSendRetries)
}

func TestResolveRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"unknown mode", "mode", "bogus"},
		{"bad size", "send_buffer", "lots"},
		{"zero interval", "interval", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			setDefaults()
			viper.Set(tt.key, tt.val)

			_, err := Resolve()
			assert.Error(t, err)
		})
	}
}
