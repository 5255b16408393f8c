package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"Warning": WARN,
		" error ": ERROR,
		"trace":   TRACE,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	lvl, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, INFO, lvl)
}

func TestWriterLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("storage", &buf, WARN)

	l.Info("не попадёт")
	l.Warn("диск %s заполнен", "/var")
	l.Error("сбой")

	out := buf.String()
	assert.NotContains(t, out, "не попадёт")
	assert.Contains(t, out, "[WARN] [storage] диск /var заполнен")
	assert.Contains(t, out, "[ERROR] [storage] сбой")
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("ничего") })
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	Configure(Options{Dir: dir, ConsoleLevel: ERROR, FileLevel: DEBUG})
	t.Cleanup(func() { Configure(Options{ConsoleLevel: INFO, FileLevel: DEBUG}) })

	l, err := NewLogger("lifecycle")
	require.NoError(t, err)
	l.Debug("снапшот %d", 1)
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "lifecycle_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[DEBUG] [lifecycle] снапшот 1"))
}

func TestLoggerManager(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger)}

	a, err := lm.GetLogger("api")
	require.NoError(t, err)
	b, err := lm.GetLogger("api")
	require.NoError(t, err)
	assert.Same(t, a, b)

	assert.Equal(t, []string{"api"}, lm.ListComponents())
	assert.NoError(t, lm.SetLogLevel("api", DEBUG, DEBUG))
	assert.Error(t, lm.SetLogLevel("missing", DEBUG, DEBUG))
	assert.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}
