package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ngsiproxy/theme"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "****"},
		{"abcdwxyz", "****wxyz"},
		{"Bearer ab", "Bearer ****"},
		{"Bearer 0123456789", "Bearer ****6789"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mask(tt.in))
		})
	}
}

func TestStripAnsi(t *testing.T) {
	assert.Equal(t, "Error: Something went wrong",
		stripAnsi("\x1b[31mError:\x1b[0m Something went \x1b[1;33mwrong\x1b[0m"))
	assert.Equal(t, "plain", stripAnsi("plain"))
	assert.Equal(t, "cut ", stripAnsi("cut \x1b[31"))
}

func TestReplaceAttr_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: replaceAttr}))

	log.Info("refreshed",
		"access_token", "secret-token-1234",
		"Authorization", "Bearer abcdefgh",
		"user", "alice",
		"error", errors.New("idm down"),
		slog.Group("session", "refresh_token", "r-9876"))

	out := buf.String()
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, `"access_token":"****1234"`)
	assert.Contains(t, out, `"Authorization":"Bearer ****efgh"`)
	assert.Contains(t, out, `"refresh_token":"****9876"`)
	assert.Contains(t, out, `"user":"alice"`)
	assert.Contains(t, out, `"error":"idm down"`)
	assert.Contains(t, out, `"timestamp":`)
}

func TestRedactingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(&redactingHandler{next: slog.NewTextHandler(&buf, nil)})

	log.With("token", "persistent-abcd").Info("call", "x-auth-token", "zzzz9999")

	out := buf.String()
	assert.Contains(t, out, "token=****abcd")
	assert.Contains(t, out, "x-auth-token=****9999")
	assert.NotContains(t, out, "persistent")
}

func TestSplitHandler_FileOnlyRecords(t *testing.T) {
	var console, file bytes.Buffer
	log := slog.New(&splitHandler{
		console: slog.NewJSONHandler(&console, nil),
		file:    slog.NewJSONHandler(&file, nil),
	})

	log.Info("both")
	log.InfoContext(FileOnly(context.Background()), "file only")

	assert.Contains(t, console.String(), "both")
	assert.NotContains(t, console.String(), "file only")
	assert.Contains(t, file.String(), "both")
	assert.Contains(t, file.String(), "file only")
}

func TestNewConsoleHandler_Formats(t *testing.T) {
	tests := []struct {
		format  string
		colours bool
		check   func(t *testing.T, out string)
	}{
		{FormatJSON, true, func(t *testing.T, out string) { assert.True(t, strings.HasPrefix(out, "{")) }},
		{FormatText, true, func(t *testing.T, out string) { assert.Contains(t, out, "msg=hello") }},
		{FormatAuto, false, func(t *testing.T, out string) { assert.Contains(t, out, `"msg":"hello"`) }},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			h := newConsoleHandler(&buf, tt.format, slog.LevelInfo, theme.Default(), tt.colours)
			slog.New(h).Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestStyledLogger_ResultWithStatus(t *testing.T) {
	var buf bytes.Buffer
	log := NewPlainStyledLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	log.ResultWithStatus("Proxied resource", 200)
	log.ResultWithStatus("Proxy request failed", 409)
	log.ResultWithStatus("Proxy request failed", 504)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "level=INFO")
	assert.Contains(t, lines[0], `msg="[ 200 ] Proxied resource"`)
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[2], "level=ERROR")
}

func TestStyledLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	log := NewPlainStyledLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	log.InfoWithCount("Seeded catalog resources", 3)
	log.InfoWithResource("Resource created", "res-1")
	log.DebugWithBroker("Forwarding to context broker", "https://cb/v2/entities")
	log.WithRequestID("req-1").Info("tagged")

	out := buf.String()
	assert.Contains(t, out, `msg="Seeded catalog resources (3)"`)
	assert.Contains(t, out, `msg="Resource created res-1"`)
	assert.Contains(t, out, `msg="Forwarding to context broker https://cb/v2/entities"`)
	assert.Contains(t, out, "request_id=req-1")
}

func TestNew_FileOutput(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	cfg := &Config{
		Level:      "debug",
		Format:     FormatAuto,
		LogDir:     dir,
		FileOutput: true,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	}

	log, styled, cleanup, err := NewWithTheme(cfg)
	require.NoError(t, err)

	log.InfoContext(FileOnly(context.Background()), "Access log", "path", "/x")
	cleanup()

	sl, ok := styled.(*styledLogger)
	require.True(t, ok)
	assert.Nil(t, sl.theme, "NO_COLOR should select the plain styled logger")

	written, err := os.ReadFile(filepath.Join(dir, DefaultLogOutputName))
	require.NoError(t, err)
	assert.Contains(t, string(written), `"msg":"Access log"`)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing to see")
	assert.NotNil(t, log.GetUnderlying())
}
