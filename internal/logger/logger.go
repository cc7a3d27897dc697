// Package logger provides the process-wide structured logger used across
// the producer and consumer binaries.
package logger

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Environment variable name for log level configuration.
const envLogLevel = "SCREENREFLECT_LOG_LEVEL"

var (
	mu     sync.RWMutex
	global zerolog.Logger
	inited bool
)

// Init initializes the global logger from SCREENREFLECT_LOG_LEVEL (default
// info) if it has not been configured yet. Safe to call multiple times.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if inited {
		return
	}
	initLocked(os.Stdout, detectLevel())
}

func initLocked(w io.Writer, lvl zerolog.Level) {
	global = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	inited = true
}

func detectLevel() zerolog.Level {
	if env := strings.TrimSpace(os.Getenv(envLogLevel)); env != "" {
		if lvl, ok := parseLevel(env); ok {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

func parseLevel(s string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, true
	case "info", "":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error", "err":
		return zerolog.ErrorLevel, true
	}
	return 0, false
}

// SetLevel changes the runtime log level.
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return errors.New("invalid log level: " + level)
	}
	mu.Lock()
	global = global.Level(lvl)
	mu.Unlock()
	return nil
}

// Level returns the current runtime level as a string.
func Level() string {
	Init()
	mu.RLock()
	defer mu.RUnlock()
	return global.GetLevel().String()
}

// UseWriter swaps the output writer (intended for tests). Retains the
// current level.
func UseWriter(w io.Writer) {
	Init()
	mu.Lock()
	defer mu.Unlock()
	lvl := global.GetLevel()
	initLocked(w, lvl)
}

// Logger returns the global logger (ensures Init was called).
func Logger() *zerolog.Logger {
	Init()
	mu.RLock()
	defer mu.RUnlock()
	l := global
	return &l
}

// Convenience top-level logging helpers, accepting alternating key/value
// pairs like the slog-style call sites elsewhere in the codebase.
func Debug(msg string, kv ...any) { withFields(Logger().Debug(), kv).Msg(msg) }
func Info(msg string, kv ...any)  { withFields(Logger().Info(), kv).Msg(msg) }
func Warn(msg string, kv ...any)  { withFields(Logger().Warn(), kv).Msg(msg) }
func Error(msg string, kv ...any) { withFields(Logger().Error(), kv).Msg(msg) }

func withFields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	return e
}

// WithSession attaches session identity fields, used by both transports.
func WithSession(l *zerolog.Logger, sessionID, peerAddr string) zerolog.Logger {
	return l.With().Str("session_id", sessionID).Str("peer_addr", peerAddr).Logger()
}

// WithPacket attaches packet metadata fields for wire-level logging.
func WithPacket(l *zerolog.Logger, kind string, length int) zerolog.Logger {
	return l.With().Str("packet_kind", kind).Int("payload_len", length).Logger()
}
