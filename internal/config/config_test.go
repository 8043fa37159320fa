package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, "hearthledger.db", config.Store.Path)
	assert.NotEmpty(t, config.Import.DateFormats)
	assert.False(t, config.AI.Enabled)
	assert.Equal(t, 20, config.AI.ChunkSize)
	assert.Equal(t, 1, config.Transfer.WindowDays)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HEARTH_LOG_LEVEL", "debug")
	t.Setenv("HEARTH_STORE_PATH", "/tmp/ledger.db")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "/tmp/ledger.db", config.Store.Path)
}

func TestLoadBindsGeminiKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "secret")

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", config.AI.APIKey)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Bad log level", "HEARTH_LOG_LEVEL", "noisy"},
		{"Bad log format", "HEARTH_LOG_FORMAT", "xml"},
		{"Chunk size out of range", "HEARTH_AI_CHUNK_SIZE", "0"},
		{"Window days out of range", "HEARTH_TRANSFER_WINDOW_DAYS", "30"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAIEnabledRequiresKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HEARTH_AI_ENABLED", "true")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}
