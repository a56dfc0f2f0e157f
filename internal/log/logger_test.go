package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesComponentFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "npyconv"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("convert")
	l.Debug().Str("input", "a.json").Msg("converting")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "npyconv", entry["service"])
	assert.Equal(t, "convert", entry["component"])
	assert.Equal(t, "a.json", entry["input"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "converting", entry["message"])
}

func TestConfigureLevelFiltersAndFallsBack(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := Base()
	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	t.Setenv("LOG_LEVEL", "error")
	Configure(Config{Level: "not-a-level", Output: &buf})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel(), "unparseable level falls back to info")

	Configure(Config{Output: &buf})
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}
