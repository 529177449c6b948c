package cli

import (
	"log"
	"os"
)

// Level is a verbosity tier selected by repeating -v, mirroring
// original_source/src/cli.rs's LevelFilter mapping (Warn/Info/Debug).
type Level int

const (
	LevelWarn Level = iota
	LevelInfo
	LevelDebug
)

// LevelFromCount maps a -v repeat count onto a Level, clamping at Debug.
func LevelFromCount(count int) Level {
	switch {
	case count <= 0:
		return LevelWarn
	case count == 1:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// Logger gates stdlib log output by verbosity level, since the pack has
// no structured-logging dependency anywhere (see DESIGN.md).
type Logger struct {
	level Level
	l     *log.Logger
}

// NewLogger builds a Logger writing to stderr at the given level.
func NewLogger(level Level) *Logger {
	return &Logger{level: level, l: log.New(os.Stderr, "", 0)}
}

func (lg *Logger) Warnf(format string, args ...any) {
	lg.l.Printf("warn: "+format, args...)
}

func (lg *Logger) Infof(format string, args ...any) {
	if lg.level >= LevelInfo {
		lg.l.Printf("info: "+format, args...)
	}
}

func (lg *Logger) Debugf(format string, args ...any) {
	if lg.level >= LevelDebug {
		lg.l.Printf("debug: "+format, args...)
	}
}
