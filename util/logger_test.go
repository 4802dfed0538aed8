package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5, buf.String())

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[VRB]", "[DBG]"}
	for i, prefix := range wantPrefixes {
		require.Contains(t, lines[i], prefix, "line %d", i)
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Warn("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	require.Equal(t, "[ERR] always appears\n", buf.String())
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(true)

	l.Info("test")

	// Timestamp format is "HH:MM:SS.mmm"
	out := buf.String()
	require.Regexp(t, `^\d\d:\d\d:\d\d\.\d{3} \[INF\] test\n$`, out)
}

func TestLogger_WithScope(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	web := l.With("admin@web1")
	web.Warn("no control process")
	web.With("a1b2").Info("closed")
	l.Info("done")

	require.Equal(t,
		"[WRN] admin@web1: no control process\n"+
			"[INF] admin@web1 a1b2: closed\n"+
			"[INF] done\n",
		buf.String())
}

func TestLogger_Discard(t *testing.T) {
	l := Discard()
	l.Error("nowhere")
	require.Equal(t, LogQuiet, l.Level())
}
