package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelWarn, Colored: false, ShowTime: false})
	l.output = &buf

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("visible warning")
	l.Error("visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warning")
	assert.Contains(t, out, "visible error")
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Colored: false, ShowTime: false})
	l.output = &buf

	scoped := l.WithComponent("planner").WithField("user", "u-1")
	scoped.Info("plan built")

	out := buf.String()
	assert.Contains(t, out, "[planner]")
	assert.Contains(t, out, "user=u-1")
	assert.Contains(t, out, "plan built")

	// Parent logger is unchanged
	buf.Reset()
	l.Info("bare")
	assert.NotContains(t, buf.String(), "[planner]")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestStripANSI(t *testing.T) {
	colored := "\033[32mINFO\033[0m message"
	require.Equal(t, "INFO message", stripANSI(colored))
}
