package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written without verbose: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("info line missing: %q", out)
	}

	buf.Reset()
	l = New(&buf, true)
	l.Debug("visible %s", "now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Errorf("debug line missing with verbose: %q", buf.String())
	}
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	l := With(New(&buf, false), "run", "abc")
	l.Warn("careful")
	if !strings.Contains(buf.String(), "run=abc") {
		t.Errorf("field missing: %q", buf.String())
	}
	r := &Recorder{}
	if With(r, "run", "abc") != Logger(r) {
		t.Errorf("non-logrus logger should be returned unchanged")
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Warn("a %s", "b")
	r.Warn("c")
	r.Error("d")
	if got := r.Count("warn"); got != 2 {
		t.Errorf("got %d warnings, want 2", got)
	}
	if got := r.Entries()[0].Message; got != "a b" {
		t.Errorf("got %q, want %q", got, "a b")
	}
}
