package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter(t *testing.T) {
	defer func() { Logger = zerolog.Nop() }()

	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "yt-rank")

	log := With("collector")
	log.Info().Str("run_id", "abc").Msg("run complete")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "yt-rank", line["service"])
	assert.Equal(t, "collector", line["component"])
	assert.Equal(t, "abc", line["run_id"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "run complete", line["message"])
}

func TestInitWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	defer func() { Logger = zerolog.Nop() }()

	var buf bytes.Buffer
	InitWithWriter(&buf, "chatty", "yt-rank")

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	Logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}
