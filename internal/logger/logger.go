package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/thushan/ngsiproxy/internal/util"
	"github.com/thushan/ngsiproxy/theme"
)

// Config is read from NGSIPROXY_* environment variables before the main
// configuration is loaded, so that config loading itself can be logged.
type Config struct {
	Level      string `env:"NGSIPROXY_LOG_LEVEL" envDefault:"info"`
	Format     string `env:"NGSIPROXY_LOG_FORMAT" envDefault:"auto"`
	LogDir     string `env:"NGSIPROXY_LOG_DIR" envDefault:"./logs"`
	Theme      string `env:"NGSIPROXY_THEME" envDefault:"default"`
	MaxSize    int    `env:"NGSIPROXY_MAX_SIZE" envDefault:"100"` // megabytes
	MaxBackups int    `env:"NGSIPROXY_MAX_BACKUPS" envDefault:"5"`
	MaxAge     int    `env:"NGSIPROXY_MAX_AGE" envDefault:"30"` // days
	FileOutput bool   `env:"NGSIPROXY_FILE_OUTPUT" envDefault:"false"`
}

const (
	DefaultLogOutputName = "ngsiproxy.log"

	// console formats, auto picks pretty on a colour terminal and json otherwise
	FormatAuto   = "auto"
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"

	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarn    = "warn"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

type fileOnlyKey struct{}

// FileOnly marks records logged with the returned context as belonging in
// the rotated log file only. Without file output they go to the console.
func FileOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, fileOnlyKey{}, true)
}

func isFileOnly(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	only, _ := ctx.Value(fileOnlyKey{}).(bool)
	return only
}

func New(cfg *Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)
	console := newConsoleHandler(os.Stdout, cfg.Format, level, theme.GetTheme(cfg.Theme), util.ShouldUseColors())

	if !cfg.FileOutput {
		return slog.New(console), func() {}, nil
	}

	file, rotator, err := newFileHandler(cfg, level)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = rotator.Close()
	}
	return slog.New(&splitHandler{console: console, file: file}), cleanup, nil
}

func newConsoleHandler(w io.Writer, format string, level slog.Level, appTheme *theme.Theme, colours bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}

	switch strings.ToLower(format) {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	case FormatText:
		return slog.NewTextHandler(w, opts)
	case FormatPretty:
		return newPrettyHandler(w, level, appTheme)
	}

	if colours {
		return newPrettyHandler(w, level, appTheme)
	}
	// not a tty, so most likely a container: keep it machine readable
	return slog.NewJSONHandler(w, opts)
}

func newPrettyHandler(w io.Writer, level slog.Level, appTheme *theme.Theme) slog.Handler {
	plogger := pterm.DefaultLogger.
		WithLevel(convertToPTermLevel(level)).
		WithWriter(w).
		WithFormatter(pterm.LogFormatterColorful).
		WithKeyStyles(map[string]pterm.Style{
			"level":       *appTheme.Info,
			"msg":         *appTheme.Info,
			"time":        *appTheme.Muted,
			"resource_id": *appTheme.Resource,
			"mode":        *appTheme.Counts,
		})
	return &redactingHandler{next: pterm.NewSlogHandler(plogger)}
}

func newFileHandler(cfg *Config, level slog.Level) (slog.Handler, *lumberjack.Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, DefaultLogOutputName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
	return handler, rotator, nil
}

// splitHandler sends records to the console and the rotated file, keeping
// FileOnly records (the per request access log) off the console.
type splitHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (h *splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *splitHandler) Handle(ctx context.Context, record slog.Record) error {
	if !isFileOnly(ctx) && h.console.Enabled(ctx, record.Level) {
		if err := h.console.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	if h.file.Enabled(ctx, record.Level) {
		return h.file.Handle(ctx, record)
	}
	return nil
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, LogLevelWarning:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertToPTermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelTrace
	case level >= slog.LevelError:
		return pterm.LogLevelError
	case level >= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelInfo
	}
}
