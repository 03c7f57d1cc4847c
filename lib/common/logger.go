package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Names of the loggers used by the packages of this module
const (
	LoggerStore   = "store"
	LoggerFlusher = "flusher"
	LoggerCodec   = "codec"
	LoggerCmd     = "cmd"
)

// loggerNames lists every logger InitLoggers configures
var loggerNames = []string{LoggerStore, LoggerFlusher, LoggerCodec, LoggerCmd}

// levels maps the accepted level names to dragonboat levels, tags holds the label
// written in front of every line
var (
	levels = map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"info":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	tags = map[logger.LogLevel]string{
		logger.DEBUG:    "DBG",
		logger.INFO:     "INF",
		logger.WARNING:  "WRN",
		logger.ERROR:    "ERR",
		logger.CRITICAL: "CRT",
	}
)

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// lineWriter serializes whole lines of all loggers sharing it
type lineWriter struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func (o *lineWriter) writeLine(level logger.LogLevel, name, msg string) {
	line := fmt.Sprintf("%s %s %-7s %s\n", o.now().Format(time.RFC3339), tags[level], "["+name+"]", msg)

	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = io.WriteString(o.w, line)
}

// stderr is shared by all loggers, stdout is left to command output
var stderr = &lineWriter{w: os.Stderr, now: time.Now}

// --------------------------------------------------------------------------
// Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// lmsLogger writes one line per message to its lineWriter.
//
// Thread-safety: The level can be changed while other goroutines log.
type lmsLogger struct {
	name  string
	level atomic.Int32
	out   *lineWriter
}

func newLogger(name string, out *lineWriter) *lmsLogger {
	l := &lmsLogger{name: name, out: out}
	l.level.Store(int32(logger.INFO))
	return l
}

func (l *lmsLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *lmsLogger) logf(level logger.LogLevel, format string, args []interface{}) {
	if l.enabled(level) {
		l.out.writeLine(level, l.name, fmt.Sprintf(format, args...))
	}
}

func (l *lmsLogger) SetLevel(level logger.LogLevel) { l.level.Store(int32(level)) }

func (l *lmsLogger) Debugf(format string, args ...interface{}) { l.logf(logger.DEBUG, format, args) }

func (l *lmsLogger) Infof(format string, args ...interface{}) { l.logf(logger.INFO, format, args) }

func (l *lmsLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args)
}

func (l *lmsLogger) Errorf(format string, args ...interface{}) { l.logf(logger.ERROR, format, args) }

// Panicf logs the message regardless of the level and panics with it
func (l *lmsLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.out.writeLine(logger.CRITICAL, l.name, msg)
	panic(msg)
}

// CreateLogger is the logger.Factory of this module, all loggers write to stderr
func CreateLogger(pkgName string) logger.ILogger {
	return newLogger(pkgName, stderr)
}

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

// ParseLogLevel converts a level name (case insensitive) to a logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	if lvl, ok := levels[strings.ToLower(level)]; ok {
		return lvl, nil
	}
	return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
}

var factoryOnce sync.Once

// InitLoggers installs CreateLogger as the logger factory and sets the level of all
// loggers of this module. The factory is installed only once, later calls only change
// the level.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() { logger.SetLoggerFactory(CreateLogger) })

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
