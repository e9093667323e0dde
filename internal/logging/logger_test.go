package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"WARN", LevelWarn},
		{"unknown", LevelInfo}, // default
		{"", LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "unknown", Level(99).String())
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("xml"))
}

type offset uint64

func (o offset) String() string { return "0x10" }

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	l.Info("undo replayed", "records", 3, "err", errors.New("boom"), "root", offset(16))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "undo replayed", entry["msg"])
	assert.Equal(t, float64(3), entry["records"])
	assert.Equal(t, "boom", entry["err"])
	assert.Equal(t, "0x10", entry["root"])
	assert.NotEmpty(t, entry["ts"])
}

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info", Format: "text"}, &buf)

	l.Warn("replaying undo log", "path", "/p", "bytes", 128)

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "[warn] replaying undo log")
	assert.True(t, strings.HasSuffix(line, "bytes=128 path=/p"), line)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "warn", Format: "text"}, &buf)

	l.Debug("debug")
	l.Info("info")
	assert.Empty(t, buf.String())

	l.Warn("warn")
	l.Error("error")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)
	l := base.WithFields("container", "c1", "dangling")

	l.Info("opened")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "c1", entry["container"])
	assert.NotContains(t, entry, "dangling")
}

func TestLoggerCloneIsolation(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)
	child := base.WithFields("a", 1)
	_ = child.WithFields("b", 2)

	child.Info("child")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "a")
	assert.NotContains(t, entry, "b")

	buf.Reset()
	base.Info("base")
	var baseEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &baseEntry))
	assert.NotContains(t, baseEntry, "a")
}

func TestNewFileOutput(t *testing.T) {
	path := t.TempDir() + "/vos.log"
	l := New(Config{Level: "info", Format: "text", Output: path})
	l.Info("to file")
	assert.NotNil(t, l)
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
	assert.Equal(t, l, l.WithFields("k", "v"))
}
