package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger(buf *bytes.Buffer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	return slog.New(&filteringHandler{underlying: slog.NewTextHandler(buf, opts)})
}

func TestWarningsAlwaysPass(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newBufferedLogger(buf).With("section", "nobody-enabled-this")

	logger.Warn("something went sideways")

	assert.Contains(t, buf.String(), "something went sideways")
}

func TestDebugDroppedWithoutSection(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newBufferedLogger(buf).With("section", "not-enabled")

	logger.Debug("chatty detail")

	assert.Empty(t, buf.String())
}

func TestDebugPassesForEnabledSection(t *testing.T) {
	old := enabledSections
	defer func() { enabledSections = old }()
	EnableSections("inference")

	buf := &bytes.Buffer{}
	logger := newBufferedLogger(buf).With("section", "inference-selection")

	logger.Debug("picked a branch")

	assert.Contains(t, buf.String(), "picked a branch")
}
