package common

import (
	"bytes"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
	"testing"
	"time"
)

func bufferLogger(name string) (*lmsLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	out := &lineWriter{
		w:   buf,
		now: func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	return newLogger(name, out), buf
}

func TestLoggerLevel(t *testing.T) {
	l, buf := bufferLogger(LoggerStore)

	l.Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("Debug message written at level INFO: %q", buf.String())
	}

	l.Infof("loaded layer %s", "a")
	if want := "2024-01-02T03:04:05Z INF [store] loaded layer a\n"; buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Infof("hidden")
	l.Warningf("hidden")
	l.Errorf("write failed")
	if lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n"); len(lines) != 1 || !strings.Contains(lines[0], "ERR [store] write failed") {
		t.Errorf("Expected only the error line, got %q", buf.String())
	}

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")
	if !strings.Contains(buf.String(), "DBG [store] visible") {
		t.Errorf("Expected the debug line, got %q", buf.String())
	}
}

func TestLoggerPanicf(t *testing.T) {
	l, buf := bufferLogger(LoggerCodec)
	l.SetLevel(logger.ERROR)

	defer func() {
		r := recover()
		if r != "broken layer l" {
			t.Errorf("Expected panic with the message, got %v", r)
		}
		if !strings.Contains(buf.String(), "CRT [codec] broken layer l") {
			t.Errorf("Expected the message to be logged, got %q", buf.String())
		}
	}()
	l.Panicf("broken layer %s", "l")
}

func TestParseLogLevelValues(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"Info":    logger.INFO,
		"WARN":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for name, want := range tests {
		got, err := ParseLogLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = (%v, %v), want %v", name, got, err, want)
		}
	}
}

func TestInitLoggersTwice(t *testing.T) {
	if err := InitLoggers("debug"); err != nil {
		t.Fatal(err)
	}
	if err := InitLoggers("error"); err != nil {
		t.Errorf("Second call returned error: %v", err)
	}
	if err := InitLoggers("loud"); err == nil {
		t.Errorf("Expected an error for an invalid level")
	}
}
