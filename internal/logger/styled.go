package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/thushan/ngsiproxy/internal/util"
	"github.com/thushan/ngsiproxy/theme"
)

// StyledLogger decorates slog with theme aware helpers for the few values we
// like to see highlighted on a terminal: counts, resources, broker targets
// and proxy results.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoWithCount(msg string, count int, args ...any)
	InfoWithEndpoint(msg string, endpoint string, args ...any)
	InfoWithResource(msg string, resourceID string, args ...any)
	DebugWithBroker(msg string, target string, args ...any)

	// ResultWithStatus logs at info below 400, warn for 4xx and error for 5xx
	ResultWithStatus(msg string, status int, args ...any)

	GetUnderlying() *slog.Logger
	With(args ...any) StyledLogger
	WithRequestID(requestID string) StyledLogger
}

// NewWithTheme builds the slog logger plus the styled wrapper matching the terminal
func NewWithTheme(cfg *Config) (*slog.Logger, StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	format := strings.ToLower(cfg.Format)
	if util.ShouldUseColors() && format != FormatJSON && format != FormatText {
		return logger, NewPrettyStyledLogger(logger, theme.GetTheme(cfg.Theme)), cleanup, nil
	}
	return logger, NewPlainStyledLogger(logger), cleanup, nil
}

type styledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme // nil renders plain text
}

func NewPlainStyledLogger(logger *slog.Logger) StyledLogger {
	return &styledLogger{logger: logger}
}

func NewPrettyStyledLogger(logger *slog.Logger, appTheme *theme.Theme) StyledLogger {
	return &styledLogger{logger: logger, theme: appTheme}
}

// Discard logs nothing, for cli commands that only print their result
func Discard() StyledLogger {
	return NewPlainStyledLogger(slog.New(slog.DiscardHandler))
}

func (sl *styledLogger) paint(style *pterm.Style, v any) string {
	if sl.theme == nil || style == nil {
		return fmt.Sprint(v)
	}
	return style.Sprint(v)
}

func (sl *styledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *styledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *styledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *styledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

func (sl *styledLogger) InfoWithCount(msg string, count int, args ...any) {
	var counts *pterm.Style
	if sl.theme != nil {
		counts = sl.theme.Counts
	}
	sl.logger.Info(msg+" "+sl.paint(counts, "("+strconv.Itoa(count)+")"), args...)
}

func (sl *styledLogger) InfoWithEndpoint(msg string, endpoint string, args ...any) {
	var style *pterm.Style
	if sl.theme != nil {
		style = sl.theme.Endpoint
	}
	sl.logger.Info(msg+" "+sl.paint(style, endpoint), args...)
}

func (sl *styledLogger) InfoWithResource(msg string, resourceID string, args ...any) {
	var style *pterm.Style
	if sl.theme != nil {
		style = sl.theme.Resource
	}
	sl.logger.Info(msg+" "+sl.paint(style, resourceID), args...)
}

func (sl *styledLogger) DebugWithBroker(msg string, target string, args ...any) {
	var style *pterm.Style
	if sl.theme != nil {
		style = sl.theme.Endpoint
	}
	sl.logger.Debug(msg+" "+sl.paint(style, target), args...)
}

func (sl *styledLogger) ResultWithStatus(msg string, status int, args ...any) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	var style *pterm.Style
	if sl.theme != nil {
		style = sl.theme.ColourStatus(status)
	}
	sl.logger.Log(context.Background(), level, "[ "+sl.paint(style, status)+" ] "+msg, args...)
}

func (sl *styledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *styledLogger) With(args ...any) StyledLogger {
	return &styledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

func (sl *styledLogger) WithRequestID(requestID string) StyledLogger {
	return sl.With("request_id", requestID)
}
