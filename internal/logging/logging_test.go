package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"forumsearch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewLevelFilter(inner, slog.LevelWarn))

	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("also kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "also kept")
}

func TestLevelFilter_Enabled(t *testing.T) {
	inner := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
	f := NewLevelFilter(inner, slog.LevelWarn)

	ctx := context.Background()
	assert.False(t, f.Enabled(ctx, slog.LevelInfo))
	assert.True(t, f.Enabled(ctx, slog.LevelWarn))
	assert.True(t, f.Enabled(ctx, slog.LevelError))
}

func TestMultiHandler(t *testing.T) {
	var a, b bytes.Buffer
	ha := slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug})
	hb := slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(NewMultiHandler(ha, hb))

	logger.Info("info line")
	logger.Error("error line")

	assert.Contains(t, a.String(), "info line")
	assert.Contains(t, a.String(), "error line")
	assert.NotContains(t, b.String(), "info line")
	assert.Contains(t, b.String(), "error line")
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(slog.NewTextHandler(&buf, nil))
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "indexer")}))

	logger.Info("hello")
	assert.Contains(t, buf.String(), "component=indexer")
}

func TestNewLogger_FileSinks(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = filepath.Join(dir, "logs")
	cfg.Console.Enabled = false
	cfg.File.Enabled = true
	cfg.File.Format = "json"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Warn("warn message")

	require.NoError(t, Shutdown())

	for _, name := range []string{"forumsearch.log", "errors.log"} {
		data, err := os.ReadFile(filepath.Join(cfg.Dir, name))
		require.NoError(t, err, name)
		assert.True(t, strings.Contains(string(data), "warn message"), name)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
