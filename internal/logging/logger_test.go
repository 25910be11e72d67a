package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level LogLevel, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := NewLogger("test")
	l.Configure(Options{Level: level, Format: format, Output: &buf})
	return l, &buf
}

func TestLoggerLevels(t *testing.T) {
	l, buf := newTestLogger(t, LevelInfo, "console")

	l.Info("opened %s", "a.txt")
	l.Debug("hidden %d", 1)
	l.Trace("hidden too")

	out := buf.String()
	assert.Contains(t, out, "opened a.txt")
	assert.Contains(t, out, "INFO")
	assert.NotContains(t, out, "hidden")
}

func TestLoggerTraceLevel(t *testing.T) {
	l, buf := newTestLogger(t, LevelTrace, "console")

	l.Trace("pread %d bytes", 42)

	out := buf.String()
	assert.Contains(t, out, "TRACE")
	assert.Contains(t, out, "pread 42 bytes")
}

func TestLoggerSetLevel(t *testing.T) {
	l, buf := newTestLogger(t, LevelError, "console")

	l.Warn("dropped")
	assert.False(t, l.Enabled(LevelWarn))

	l.SetLevel(LevelDebug)
	l.Debug("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithPrefixSharesSink(t *testing.T) {
	l, _ := newTestLogger(t, LevelInfo, "console")
	child := l.WithPrefix("host")

	// Reconfigure after the child exists; the child must follow.
	var buf bytes.Buffer
	l.Configure(Options{Level: LevelDebug, Format: "console", Output: &buf})

	child.Debug("stat %q", "/tmp")

	out := buf.String()
	assert.Contains(t, out, "test.host")
	assert.Contains(t, out, `stat "/tmp"`)
}

func TestJSONFormat(t *testing.T) {
	l, buf := newTestLogger(t, LevelInfo, "json")

	l.WithPrefix("state").Warn("backup failed: %v", "disk full")

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "test.state", entry["logger"])
	assert.Equal(t, "backup failed: disk full", entry["msg"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"error", LevelError, false},
		{"WARN", LevelWarn, false},
		{" info ", LevelInfo, false},
		{"Debug", LevelDebug, false},
		{"trace", LevelTrace, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestGetLoggerSingleton(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}
