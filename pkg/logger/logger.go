package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the HTTP server, cron jobs and the CLI.
// Package-level functions log without context; With returns an Entry that
// prefixes every line with key=value pairs (job=..., story=..., user=...).

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Unknown values fall back to info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(l)
}

func parseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// SetOutput redirects all log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

func header(lvl string) string {
	return fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output(l Level, name, prefix, format string, v ...interface{}) {
	if !shouldLog(l) {
		return
	}
	mu.RLock()
	out := logger
	mu.RUnlock()
	out.Printf(header(name)+prefix+format, v...)
}

func Debugf(format string, v ...interface{}) { output(LevelDebug, "debug", "", format, v...) }
func Infof(format string, v ...interface{})  { output(LevelInfo, "info", "", format, v...) }
func Warnf(format string, v ...interface{})  { output(LevelWarn, "warn", "", format, v...) }
func Errorf(format string, v ...interface{}) { output(LevelError, "error", "", format, v...) }

func Fatalf(format string, v ...interface{}) {
	output(LevelFatal, "fatal", "", format, v...)
	os.Exit(1)
}

// Println maps to Info.
func Println(v ...interface{}) {
	output(LevelInfo, "info", "", "%s", strings.TrimRight(fmt.Sprintln(v...), "\n"))
}

func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}

// Entry carries a fixed set of fields rendered in front of every message.
type Entry struct {
	prefix string
}

// With builds an Entry from alternating key/value arguments. A trailing key
// without a value is logged as key=?.
func With(kv ...interface{}) *Entry {
	fields := map[string]string{}
	for i := 0; i < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		val := "?"
		if i+1 < len(kv) {
			val = fmt.Sprint(kv[i+1])
		}
		fields[k] = val
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
		b.WriteByte(' ')
	}
	return &Entry{prefix: b.String()}
}

func (e *Entry) Debugf(format string, v ...interface{}) {
	output(LevelDebug, "debug", e.prefix, format, v...)
}

func (e *Entry) Infof(format string, v ...interface{}) {
	output(LevelInfo, "info", e.prefix, format, v...)
}

func (e *Entry) Warnf(format string, v ...interface{}) {
	output(LevelWarn, "warn", e.prefix, format, v...)
}

func (e *Entry) Errorf(format string, v ...interface{}) {
	output(LevelError, "error", e.prefix, format, v...)
}
