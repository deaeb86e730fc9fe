package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerFormatsTypeAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithWriter(&buf, slog.LevelDebug))

	log.Info("XP awarded", slog.String("type", "xp"), slog.Int64("granted", 15))

	out := buf.String()
	assert.Contains(t, out, "[LevelBot]")
	assert.Contains(t, out, "[XP]")
	assert.Contains(t, out, "XP awarded")
	assert.Contains(t, out, "granted=15")
	assert.NotContains(t, out, "type=xp")
}

func TestHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithWriter(&buf, slog.LevelWarn))

	log.Info("hidden")
	log.Debug("hidden too")
	assert.Empty(t, buf.String())

	log.Error("Job failed", slog.String("type", "job"), slog.Any("error", errors.New("boom")))
	assert.Contains(t, buf.String(), "[JOB]")
	assert.Contains(t, buf.String(), "boom")
}

func TestHandlerSkipsGatewayNoise(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithWriter(&buf, slog.LevelDebug))

	log.Debug("sending heartbeat")
	assert.Empty(t, buf.String())
}

func TestHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandlerWithWriter(&buf, slog.LevelDebug)).With(slog.String("shard", "0"))

	log.Info("ready")
	assert.Contains(t, buf.String(), "shard=0")
	assert.Contains(t, buf.String(), "[SYS]")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
