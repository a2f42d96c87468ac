package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"Warning", WARN, false},
		{"error", ERROR, false},
		{"none", SILENT, false},
		{"verbose", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARN, &buf, false)

	l.Debug("tracker", "hidden %d", 1)
	l.Info("tracker", "hidden %d", 2)
	l.Warn("tracker", "lost ball after %d frames", 11)
	l.Error("", "boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] [tracker] lost ball after 11 frames")
	assert.Contains(t, out, "[ERROR] boom")
}

func TestLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(INFO, &buf, false)

	l.SetLevel(SILENT)
	assert.Equal(t, SILENT, l.Level())
	l.Error("api", "nothing")
	assert.Empty(t, buf.String())

	l.SetLevel(DEBUG)
	assert.True(t, l.Enabled(DEBUG))
	l.Debug("api", "now visible")
	assert.Contains(t, buf.String(), "[DEBUG] [api] now visible")
}

func TestLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	New(INFO, &buf, true).Info("m", "x")
	assert.Contains(t, buf.String(), "\033[32m[INFO]\033[0m [m] x")
}

func TestInitReplacesDefault(t *testing.T) {
	original := Default()
	defer func() {
		defaultMu.Lock()
		defaultLogger = original
		defaultMu.Unlock()
	}()

	var buf bytes.Buffer
	Init(DEBUG, &buf, false)
	Debug("main", "hello %s", "world")
	assert.Contains(t, buf.String(), "[DEBUG] [main] hello world")
}
