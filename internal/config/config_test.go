package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/some/path"},
		Server: ServerConfig{
			Port:           "8080",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Auth: AuthConfig{
			AccessTokenDuration:     15 * time.Minute,
			InvitationTokenDuration: 168 * time.Hour,
		},
		Media: MediaConfig{MaxUploadBytes: 32 << 20},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"WARN", true}, // case insensitive
		{"verbose", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Data.BasePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_NonPositiveDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.AccessTokenDuration = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Auth.InvitationTokenDuration = -time.Hour
	assert.Error(t, cfg.Validate())
}

func TestValidate_RateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Server.RateLimitRPS = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Server.RateLimitBurst = 0
	assert.Error(t, cfg.Validate())
}

func TestDataConfig_DerivedPaths(t *testing.T) {
	d := DataConfig{BasePath: "/var/lib/chordseq"}

	assert.Equal(t, filepath.Join("/var/lib/chordseq", "chordseq.db"), d.DatabasePath())
	assert.Equal(t, filepath.Join("/var/lib/chordseq", "keys"), d.KeyPath())
	assert.Equal(t, filepath.Join("/var/lib/chordseq", "media"), d.MediaPath())
}

func TestExpandPath(t *testing.T) {
	t.Run("empty uses default", func(t *testing.T) {
		got, err := expandPath("", "/default")
		require.NoError(t, err)
		assert.Equal(t, "/default", got)
	})

	t.Run("tilde expansion", func(t *testing.T) {
		home, err := os.UserHomeDir()
		require.NoError(t, err)

		got, err := expandPath("~/data", "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "data"), got)
	})

	t.Run("relative becomes absolute", func(t *testing.T) {
		got, err := expandPath("data", "")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("CHORDSEQ_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "CHORDSEQ_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "CHORDSEQ_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "CHORDSEQ_TEST_MISSING", "default"))
}

func TestGetIntConfigValue(t *testing.T) {
	assert.Equal(t, 7, getIntConfigValue("7", "UNSET", 2))
	assert.Equal(t, 2, getIntConfigValue("", "UNSET", 2))
	assert.Equal(t, 2, getIntConfigValue("not-a-number", "UNSET", 2))
}

func TestGetFloatConfigValue(t *testing.T) {
	assert.Equal(t, 2.5, getFloatConfigValue("2.5", "UNSET", 10))
	assert.Equal(t, 10.0, getFloatConfigValue("", "UNSET", 10))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nCHORDSEQ_ENVFILE_A=hello\nCHORDSEQ_ENVFILE_B=\"quoted\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Cleanup(func() {
		os.Unsetenv("CHORDSEQ_ENVFILE_A")
		os.Unsetenv("CHORDSEQ_ENVFILE_B")
	})

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "hello", os.Getenv("CHORDSEQ_ENVFILE_A"))
	assert.Equal(t, "quoted", os.Getenv("CHORDSEQ_ENVFILE_B"))
}

func TestLoadEnvFile_EnvTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHORDSEQ_ENVFILE_C=from-file\n"), 0o600))

	t.Setenv("CHORDSEQ_ENVFILE_C", "from-env")

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv("CHORDSEQ_ENVFILE_C"))
}

func TestLoadEnvFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOT A PAIR\n"), 0o600))

	assert.Error(t, loadEnvFile(path))
}
