package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Taichi-iskw/yt-rank/internal/logger"
)

func TestServiceFactory_LogWriter(t *testing.T) {
	t.Cleanup(func() { logger.InitWithWriter(io.Discard, "info", serviceName) })

	assert.Equal(t, os.Stderr, NewServiceFactory().logWriter, "CLI logs stay off stdout")

	var buf bytes.Buffer
	f := NewServiceFactory().WithLogWriter(&buf)
	f.initLogging("info")

	log := logger.With("server")
	log.Info().Msg("server starting")
	log.Debug().Msg("below the level")

	assert.Contains(t, buf.String(), `"message":"server starting"`)
	assert.Contains(t, buf.String(), `"service":"`+serviceName+`"`)
	assert.NotContains(t, buf.String(), "below the level")
}
