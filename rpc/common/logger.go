package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Package logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// levelTags maps the dragonboat levels to the tag printed in front of each line
var levelTags = map[logger.LogLevel]string{
	logger.CRITICAL: "CRIT",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// netLogger writes "LEVEL | package | message" lines. The level can be changed while
// other goroutines log.
type netLogger struct {
	name  string
	level atomic.Int32
	out   *log.Logger
}

func newNetLogger(name string, w io.Writer) *netLogger {
	l := &netLogger{
		name: name,
		out:  log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	l.level.Store(int32(logger.INFO))
	return l
}

func (l *netLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *netLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *netLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *netLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *netLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf logs at CRITICAL and always panics
func (l *netLogger) Panicf(format string, args ...interface{}) {
	l.logf(logger.CRITICAL, format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l *netLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *netLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.out.Printf("%-5s | %-13s | %s", levelTags[level], l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// logOutput receives the lines of every logger created after InitLoggers
var logOutput io.Writer = os.Stdout

// CreateLogger implements the dragonboat logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	return newNetLogger(pkgName, logOutput)
}

// ParseLogLevel converts a level name to logger.LogLevel. An empty name means info.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames lists every package logger of dNet
var loggerNames = []string{
	"transport/rpc",
	"rpc",
	"client",
	"state",
	"metrics",
}

// InitLoggers installs the dNet log format on w and sets the level of every package
// logger. The CLI client logs to stderr so command output stays on stdout.
func InitLoggers(level string, w io.Writer) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	if w != nil {
		logOutput = w
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
