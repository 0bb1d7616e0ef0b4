package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestSimpleLoggerInfo(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	logger := NewLogger(NewSimpleLogger(&buf, LEVEL_INFO, false))
	logger.Info("opened image", "path", "game.iso")

	out := buf.String()
	require.Contains(t, out, "[INFO] opened image")
	require.Contains(t, out, "  path: game.iso")
}

func TestSimpleLoggerColorToggle(t *testing.T) {
	color.NoColor = false
	defer func() { color.NoColor = true }()

	var plain bytes.Buffer
	logger := NewLogger(NewSimpleLogger(&plain, LEVEL_INFO, false))
	logger.Info("opened image")
	require.Contains(t, plain.String(), "[INFO] opened image")
	require.NotContains(t, plain.String(), "\x1b[")

	// The toggle survives derived sinks.
	plain.Reset()
	NewSimpleLogger(&plain, LEVEL_INFO, false).WithName("probe").Info("opened image")
	require.NotContains(t, plain.String(), "\x1b[")

	var colored bytes.Buffer
	logger = NewLogger(NewSimpleLogger(&colored, LEVEL_INFO, true))
	logger.Info("opened image")
	require.Contains(t, colored.String(), "\x1b[")
}

func TestSimpleLoggerVerbosityFilter(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	logger := NewLogger(NewSimpleLogger(&buf, LEVEL_INFO, false))
	logger.Debug("catalog header parsed")
	logger.Trace("leaf node visited")
	require.Empty(t, buf.String())

	logger = NewLogger(NewSimpleLogger(&buf, LEVEL_TRACE, false))
	logger.Debug("catalog header parsed")
	logger.Trace("leaf node visited")

	out := buf.String()
	require.Contains(t, out, "[DEBUG] catalog header parsed")
	require.Contains(t, out, "[TRACE] leaf node visited")
}

func TestSimpleLoggerError(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	logger := NewLogger(NewSimpleLogger(&buf, LEVEL_INFO, false))
	logger.Error(errors.New("truncated header"), "failed to parse image")

	out := buf.String()
	require.Contains(t, out, "[ERROR] failed to parse image")
	require.Contains(t, out, "  error: truncated header")
}
