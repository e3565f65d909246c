package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Narration: NarrationConfig{
			Model:     "claude-3-5-sonnet-20241022",
			MaxTokens: 1500,
			Timeout:   30 * time.Second,
		},
		Game: GameConfig{
			RoomCapacity: 4,
			SendBuffer:   64,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9000
  shutdown_timeout: 5s
logging:
  level: debug
  format: console
narration:
  model: claude-3-5-haiku-20241022
  max_tokens: 800
  timeout: 15s
game:
  room_capacity: 6
  send_buffer: 32
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Narration.Model)
	assert.Equal(t, 15*time.Second, cfg.Narration.Timeout)
	assert.Equal(t, 6, cfg.Game.RoomCapacity)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	err := os.WriteFile(path, []byte("server:\n  host: 0.0.0.0\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Narration.Model)
	assert.Equal(t, 1500, cfg.Narration.MaxTokens)
	assert.Equal(t, 4, cfg.Game.RoomCapacity)
	assert.Equal(t, 64, cfg.Game.SendBuffer)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateServerHostEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Host = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateServerPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.Port = 65536
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateNarrationModelEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Narration.Model = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateNarrationMaxTokens(t *testing.T) {
	cfg := validConfig()
	cfg.Narration.MaxTokens = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateNarrationTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Narration.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateGameRoomCapacity(t *testing.T) {
	cfg := validConfig()
	cfg.Game.RoomCapacity = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateGameSendBuffer(t *testing.T) {
	cfg := validConfig()
	cfg.Game.SendBuffer = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFromViperNil(t *testing.T) {
	_, err := LoadFromViper(nil)
	assert.Error(t, err)
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("port %d should be valid: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		if cfg.Validate() == nil {
			t.Fatalf("port %d should be rejected", port)
		}
	})
}

func TestPropertyAddrFormat(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		addr := cfg.Server.Addr()
		assert.Contains(t, addr, ":")
	})
}
