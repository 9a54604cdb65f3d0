package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToLogDir(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "debug"})
	defer Shutdown()

	Logger().Info("hello", slog.String("k", "v"))

	data, err := os.ReadFile(filepath.Join(dir, "daemon.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestForComponentTagsRecords(t *testing.T) {
	dir := t.TempDir()

	// Created before Init on purpose: the dynamic handler must pick up the
	// real handler afterwards.
	log := ForComponent(CompServer)

	Init(Config{LogDir: dir})
	defer Shutdown()

	log.Info("client_connected")

	data, err := os.ReadFile(filepath.Join(dir, "daemon.log"))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "server", record["component"])
	assert.Equal(t, "client_connected", record["msg"])
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	Init(Config{LogDir: dir, Level: "warn"})
	defer Shutdown()

	Logger().Info("dropped")
	Logger().Warn("kept")

	data, err := os.ReadFile(filepath.Join(dir, "daemon.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestLoggerBeforeInitDoesNotPanic(t *testing.T) {
	Shutdown()
	Logger().Info("into the void")
	ForComponent(CompIndex).Debug("also fine")
}

func TestAggregatorBatchesEvents(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	agg := NewAggregator(logger, 30)
	for i := 0; i < 5; i++ {
		agg.Record("server", "request_frame")
	}
	agg.Record("server", "parse_error", slog.String("reason", "bad json"))
	agg.flush()

	out := buf.String()
	assert.Contains(t, out, `"event":"request_frame"`)
	assert.Contains(t, out, `"count":5`)
	assert.Contains(t, out, `"reason":"bad json"`)
	// One summary line per event type, not per occurrence.
	assert.Equal(t, 2, strings.Count(out, "event_summary"))
}

func TestAggregatorNilLogger(t *testing.T) {
	agg := NewAggregator(nil, 1)
	agg.Record("server", "request_frame")
	agg.flush() // must not panic
}
