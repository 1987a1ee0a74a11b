// Package log carries a *slog.Logger through contexts.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/levenlabs/go-llog"
)

var (
	level         = new(slog.LevelVar)
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
)

type loggerKey struct{}

// Ctx returns the logger stored in ctx, or the package logger when there is
// none.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return defaultLogger
}

// With stores logger in ctx.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithAttrs stores the logger of ctx extended with attrs.
func WithAttrs(ctx context.Context, attrs ...any) context.Context {
	return With(ctx, Ctx(ctx).With(attrs...))
}

// SetDefaultLogLevel changes the level of the package logger.
func SetDefaultLogLevel(l slog.Level) {
	level.Set(l)
}

var llogLevels = map[llog.Level]slog.Level{
	llog.DebugLevel: slog.LevelDebug,
	llog.InfoLevel:  slog.LevelInfo,
	llog.WarnLevel:  slog.LevelWarn,
	llog.ErrorLevel: slog.LevelError,
}

// LevelFromLLog translates the level lflag sets on llog into a slog level.
func LevelFromLLog(l llog.Level) (slog.Level, error) {
	if sl, ok := llogLevels[l]; ok {
		return sl, nil
	}
	return slog.LevelInfo, fmt.Errorf("unsupported llog level %q", l.String())
}
