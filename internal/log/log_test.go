package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, false)
	t.Cleanup(func() {
		Init(os.Stderr, false)
		SetLevel(LevelInfo)
	})

	SetLevel(LevelInfo)
	Debug("hidden debug line")
	Info("session created", "token", Redact("0123456789abcdef"))
	Error("cache save failed", errors.New("disk full"), "owner", "jdoe")

	out := buf.String()
	require.NotContains(t, out, "hidden debug line")
	require.Contains(t, out, "session created")
	require.Contains(t, out, "01234567...")
	require.Contains(t, out, "disk full")
	require.Contains(t, out, "jdoe")

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("visible debug line")
	require.Contains(t, buf.String(), "visible debug line")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarn, ParseLevel(" Warn "))
	require.Equal(t, LevelError, ParseLevel("ERROR"))
	require.Equal(t, LevelInfo, ParseLevel("verbose"))
	require.Equal(t, LevelInfo, ParseLevel(""))
}
