package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/thushan/ngsiproxy/internal/core/constants"
)

// keys whose values are credentials, compared lower case
var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"authorization": {},
	"x-auth-token":  {},
	"client_secret": {},
}

// Mask hides all but the last four characters of a credential, keeping a
// bearer prefix so the scheme is still visible.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	prefix := ""
	if rest, ok := strings.CutPrefix(value, constants.BearerPrefix); ok {
		prefix, value = constants.BearerPrefix, rest
	}
	if len(value) <= 4 {
		return prefix + "****"
	}
	return prefix + "****" + value[len(value)-4:]
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String("timestamp", a.Value.Time().Format("2006-01-02 15:04:05"))
	}
	return redactAttr(a)
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Mask(a.Value.Resolve().String()))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); strings.IndexByte(s, '\x1b') >= 0 {
			return slog.String(a.Key, stripAnsi(s))
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, err.Error())
		}
	case slog.KindGroup:
		nested := a.Value.Group()
		clean := make([]slog.Attr, len(nested))
		for i, n := range nested {
			clean[i] = redactAttr(n)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	}
	return a
}

// stripAnsi drops CSI escape sequences (ESC [ params final) so styled
// messages stay readable in JSON output
func stripAnsi(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.Index(s, "\x1b[")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+2:]

		end := strings.IndexFunc(s, func(r rune) bool { return r >= 0x40 && r <= 0x7e })
		if end < 0 {
			return b.String()
		}
		s = s[end+1:]
	}
}

// redactingHandler applies the credential masking to handlers that have no
// ReplaceAttr hook of their own, such as the pterm one
type redactingHandler struct {
	next slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(clean)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}
