package pkg

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelErrOnly
	LogLevelInfo
	LogLevelDebug
)

// above every level slog emits
const levelSilent = slog.Level(16)

var (
	log_level = new(slog.LevelVar)
	logger    = NewLogger(os.Stderr)
)

func init() { log_level.Set(slog.LevelError) }

// NewLogger builds a tinted logger for f that follows the level set with
// SetLogLevel. Colors are only used when f is a terminal.
func NewLogger(f *os.File) *slog.Logger {
	return slog.New(tint.NewHandler(colorable.NewColorable(f), &tint.Options{
		Level:      log_level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(f.Fd()),
	}))
}

func SetLogLevel(level LogLevel) {
	switch level {
	case LogLevelNone:
		log_level.Set(levelSilent)
	case LogLevelErrOnly:
		log_level.Set(slog.LevelError)
	case LogLevelInfo:
		log_level.Set(slog.LevelInfo)
	case LogLevelDebug:
		log_level.Set(slog.LevelDebug)
	}
	DebugLog("log level set", "level", log_level.Level())
}

func ParseLogLevel(s string) LogLevel {
	switch s {
	case "none":
		return LogLevelNone
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelErrOnly
	}
}

func Logger() *slog.Logger { return logger }

func InfoLog(msg string, args ...any)  { logger.Info(msg, args...) }
func ErrorLog(msg string, args ...any) { logger.Error(msg, args...) }
func WarnLog(msg string, args ...any)  { logger.Warn(msg, args...) }
func DebugLog(msg string, args ...any) { logger.Debug(msg, args...) }

func FatalLog(msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
