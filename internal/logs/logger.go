package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	DEBUG Level = "DEBUG"
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
)

// levelPriority defines the priority of each log level
// higher value= more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

// ANSI colors used when the writer output is colored.
var levelColor = map[Level]string{
	DEBUG: "\x1b[36m",
	INFO:  "\x1b[32m",
	WARN:  "\x1b[33m",
	ERROR: "\x1b[31m",
}

const colorReset = "\x1b[0m"

// ParseLevel converts a command-line level name (case-insensitive) into a Level.
func ParseLevel(s string) (Level, error) {
	lvl := Level(strings.ToUpper(strings.TrimSpace(s)))
	if lvl == "WARNING" {
		lvl = WARN
	}
	if _, ok := levelPriority[lvl]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

type Entry struct {
	TimeStamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

type Logger struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
	level   Level

	out   io.Writer
	color bool
}

// Option configures optional Logger output.
type Option func(*Logger)

// WithOutput mirrors every recorded entry to w, one line per entry.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

// WithColor toggles ANSI level colors on the writer output.
func WithColor(enabled bool) Option {
	return func(l *Logger) { l.color = enabled }
}

// level: minimum log level to record(e.g., INFO, WARN, ERROR,DEBUG)
//
// maxsize:maximum number of log entries kept in memory
func NewLogger(maxSize int, level Level, opts ...Option) *Logger {
	if maxSize < 1 {
		maxSize = 1
	}
	l := &Logger{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
		level:   level,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether entries at level would be recorded.
func (l *Logger) Enabled(level Level) bool {
	return levelPriority[level] >= levelPriority[l.level]
}

// log is the internal logging function
// it applies level filtering and ring buffer behavior
func (l *Logger) log(level Level, msg string) {
	if !l.Enabled(level) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.maxSize {
		// remove oldest entry (ring behavior)
		l.entries = l.entries[1:]
	}

	entry := Entry{
		TimeStamp: time.Now(),
		Level:     level,
		Message:   msg,
	}
	l.entries = append(l.entries, entry)

	if l.out != nil {
		l.write(entry)
	}
}

// write is called with l.mu held so lines never interleave.
func (l *Logger) write(e Entry) {
	ts := e.TimeStamp.Format(time.RFC3339Nano)
	if l.color {
		fmt.Fprintf(l.out, "%s %s%-5s%s %s\n", ts, levelColor[e.Level], e.Level, colorReset, e.Message)
		return
	}
	fmt.Fprintf(l.out, "%s %-5s %s\n", ts, e.Level, e.Message)
}

func (l *Logger) Debug(msg string) {
	l.log(DEBUG, msg)
}

func (l *Logger) Info(msg string) {
	l.log(INFO, msg)
}

func (l *Logger) Warn(msg string) {
	l.log(WARN, msg)
}

func (l *Logger) Error(msg string) {
	l.log(ERROR, msg)
}

// Debugf skips formatting entirely when DEBUG is filtered out.
func (l *Logger) Debugf(format string, args ...any) {
	if l.Enabled(DEBUG) {
		l.log(DEBUG, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(INFO, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(WARN, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(ERROR, fmt.Sprintf(format, args...))
}

func (l *Logger) GetLast(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > len(l.entries) {
		out := make([]Entry, len(l.entries))
		copy(out, l.entries)
		return out
	}

	start := len(l.entries) - n
	out := make([]Entry, n)
	copy(out, l.entries[start:])
	return out
}
