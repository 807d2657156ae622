// Package logger is an asynchronous leveled logger. Callers only format and
// enqueue; a single goroutine writes the entries out.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// QueueSize is the number of entries buffered before the oldest is dropped.
const QueueSize = 1024

// DisableEnv turns the package logger off when set to "1".
const DisableEnv = "PSH_DISABLE_LOGGER"

type Level int32

const (
	Off Level = iota
	Error
	Warn
	Info
	Debug
	Trace
)

var levelNames = []string{"OFF", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

func (l Level) String() string {
	if l < Off || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int32(l))
	}
	return levelNames[l]
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return Off, fmt.Errorf("unknown log level %q", s)
}

type entry struct {
	at    time.Time
	level Level
	msg   string
}

type Logger struct {
	level atomic.Int32
	out   *log.Logger

	mu      sync.Mutex
	wake    *sync.Cond
	queue   []entry
	closed  bool
	dropped uint64

	done chan struct{}
}

// New starts a logger writing to w.
func New(w io.Writer, level Level) *Logger {
	l := &Logger{
		out:   log.New(w, "", 0),
		queue: make([]entry, 0, QueueSize),
		done:  make(chan struct{}),
	}
	l.wake = sync.NewCond(&l.mu)
	l.level.Store(int32(level))

	go l.run()
	return l
}

func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Enabled reports whether entries at level are recorded.
func (l *Logger) Enabled(level Level) bool {
	return level > Off && level <= l.Level()
}

func (l *Logger) Logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	e := entry{at: time.Now(), level: level, msg: fmt.Sprintf(format, args...)}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if len(l.queue) == QueueSize {
		copy(l.queue, l.queue[1:])
		l.queue = l.queue[:QueueSize-1]
		l.dropped++
	}
	l.queue = append(l.queue, e)
	l.wake.Signal()
}

// Dropped returns how many entries were discarded because the queue was full.
func (l *Logger) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func (l *Logger) run() {
	defer close(l.done)

	var batch []entry
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.wake.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch = append(batch[:0], l.queue...)
		l.queue = l.queue[:0]
		l.mu.Unlock()

		for _, e := range batch {
			l.out.Printf("%s [%s] %s", e.at.Format("15:04:05.000"), e.level, e.msg)
		}
	}
}

// Close writes out everything still queued and stops the consumer. Entries
// logged after Close are discarded.
func (l *Logger) Close() {
	l.mu.Lock()
	l.closed = true
	l.wake.Broadcast()
	l.mu.Unlock()

	<-l.done
}

func (l *Logger) Errorf(format string, args ...any) { l.Logf(Error, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Logf(Warn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Logf(Info, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.Logf(Debug, format, args...) }
func (l *Logger) Tracef(format string, args ...any) { l.Logf(Trace, format, args...) }

// Options configure the package logger.
type Options struct {
	Level Level
	// File is appended to. Empty means stderr.
	File string
}

var (
	stdMu   sync.Mutex
	std     *Logger
	stdFile *os.File
)

// Init starts the package logger. It does nothing if the logger is already
// running or DisableEnv is set.
func Init(opts Options) error {
	stdMu.Lock()
	defer stdMu.Unlock()

	if std != nil || os.Getenv(DisableEnv) == "1" || opts.Level == Off {
		return nil
	}

	var w io.Writer = os.Stderr
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		stdFile = f
		w = f
	}

	std = New(w, opts.Level)
	return nil
}

// Shutdown drains and stops the package logger. It is safe to call more
// than once.
func Shutdown() {
	stdMu.Lock()
	defer stdMu.Unlock()

	if std == nil {
		return
	}
	std.Close()
	std = nil

	if stdFile != nil {
		_ = stdFile.Close()
		stdFile = nil
	}
}

func current() *Logger {
	stdMu.Lock()
	defer stdMu.Unlock()
	return std
}

func logf(level Level, format string, args ...any) {
	if l := current(); l != nil {
		l.Logf(level, format, args...)
	}
}

func Errorf(format string, args ...any) { logf(Error, format, args...) }
func Warnf(format string, args ...any)  { logf(Warn, format, args...) }
func Infof(format string, args ...any)  { logf(Info, format, args...) }
func Debugf(format string, args ...any) { logf(Debug, format, args...) }
func Tracef(format string, args ...any) { logf(Trace, format, args...) }
