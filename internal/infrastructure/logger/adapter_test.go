package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "compare_a_and_b", sanitize("compare a and b?"))
	assert.Equal(t, "run", sanitize("???"))
	assert.Len(t, sanitize(strings.Repeat("x", 100)), 60)
}

func TestLoggerAdapter_FieldsAndNames(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromZap(zap.New(core))

	l.Named("scheduler").WithFields(map[string]any{"task_id": "t1"}).Info("Task completed", "resultLen", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "scheduler", entries[0].LoggerName)
	assert.Equal(t, "Task completed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "t1", fields["task_id"])
	assert.EqualValues(t, 3, fields["resultLen"])
}

func TestNewLoggerAdapter_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLoggerAdapter(Config{Name: "objective", Dir: dir, Level: "debug"})
	require.NoError(t, err)

	l.WithField("run_id", "r1").Debug("Planning")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*_objective.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	assert.Equal(t, "Planning", entry["message"])
	assert.Equal(t, "r1", entry["run_id"])
	assert.Equal(t, "debug", entry["level"])
}
