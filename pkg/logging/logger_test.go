package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "dlpxdbprofiler.log")

	logger, closeFn, err := New(Options{Level: "info", File: logFile, Console: &console})
	require.NoError(t, err)

	logger.Named("pipeline").Info("Ensured application", zap.String("name", "CRM"), zap.Int("id", 7))
	logger.Debug("not emitted at info level")
	closeFn()

	assert.Contains(t, console.String(), "Ensured application")
	assert.NotContains(t, console.String(), "not emitted")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Ensured application", entry["msg"])
	assert.Equal(t, "pipeline", entry["logger"])
	assert.Equal(t, "CRM", entry["name"])
	assert.Equal(t, float64(7), entry["id"])
}

func TestNew_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Options{Level: "debug", Console: &console})
	require.NoError(t, err)
	defer closeFn()

	logger.Debug("debug visible")
	assert.Contains(t, console.String(), "debug visible")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "verbose"})
	require.Error(t, err)
}
