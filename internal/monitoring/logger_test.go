package monitoring

import (
	"fmt"
	"testing"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)
	Logf("hello %d", 1)
	if len(*lines) != 1 || (*lines)[0] != "hello 1" {
		t.Errorf("unexpected captured lines: %v", *lines)
	}

	// nil installs a no-op logger
	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger should not record, got %v", *lines)
	}
}

func TestTagged(t *testing.T) {
	lines := captureLogs(t)
	logf := Tagged("Publisher")
	logf("bound to %s", "tcp://*:5555")

	want := "[Publisher] bound to tcp://*:5555"
	if len(*lines) != 1 || (*lines)[0] != want {
		t.Errorf("got %v, want [%q]", *lines, want)
	}
}

func TestDebugf(t *testing.T) {
	lines := captureLogs(t)
	t.Cleanup(func() { SetDebug(false) })

	SetDebug(false)
	Debugf("sample %d", 1)
	if len(*lines) != 0 {
		t.Errorf("Debugf logged while disabled: %v", *lines)
	}

	SetDebug(true)
	if !DebugEnabled() {
		t.Fatal("DebugEnabled() = false after SetDebug(true)")
	}
	Debugf("sample %d", 2)
	if len(*lines) != 1 || (*lines)[0] != "sample 2" {
		t.Errorf("unexpected lines: %v", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}
