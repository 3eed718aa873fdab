// =============================================================================
// Mineral Statistics ETL - Logging
// =============================================================================
//
// Every stage logs through the small Logger interface below so that tests can
// swap in a recorder and the command can swap in logrus.
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used across the pipeline.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// =============================================================================
// LOGRUS ADAPTER
// =============================================================================

type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger that writes text lines to w. Debug lines are only
// emitted when verbose is set.
func New(w io.Writer, verbose bool) Logger {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// With returns a logger that attaches key=value to every line. Loggers that
// are not backed by logrus are returned unchanged.
func With(l Logger, key string, value interface{}) Logger {
	if ll, ok := l.(*logrusLogger); ok {
		return &logrusLogger{entry: ll.entry.WithField(key, value)}
	}
	return l
}

func (l *logrusLogger) Debug(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }
func (l *logrusLogger) Info(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *logrusLogger) Warn(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *logrusLogger) Error(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }

// =============================================================================
// DISCARD AND RECORDER
// =============================================================================

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return discard{}
}

type discard struct{}

func (discard) Debug(string, ...interface{}) {}
func (discard) Info(string, ...interface{})  {}
func (discard) Warn(string, ...interface{})  {}
func (discard) Error(string, ...interface{}) {}

// Entry is a formatted line captured by a Recorder.
type Entry struct {
	Level   string
	Message string
}

// Recorder keeps every formatted line in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) add(level, msg string, args []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(msg, args...)})
}

func (r *Recorder) Debug(msg string, args ...interface{}) { r.add("debug", msg, args) }
func (r *Recorder) Info(msg string, args ...interface{})  { r.add("info", msg, args) }
func (r *Recorder) Warn(msg string, args ...interface{})  { r.add("warn", msg, args) }
func (r *Recorder) Error(msg string, args ...interface{}) { r.add("error", msg, args) }

// Entries returns a copy of the recorded lines.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the number of recorded lines at level.
func (r *Recorder) Count(level string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
