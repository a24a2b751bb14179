package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("evaluated %d folds", 3)
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op logger
	called = false
	SetLogger(nil)
	Logf("evaluated %d folds", 3)
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestVerbosef(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetVerbose(false)
	}()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Verbosef("fold %s", "(0, 0)")
	if len(lines) != 0 {
		t.Fatalf("Verbosef logged while verbose is off: %v", lines)
	}

	SetVerbose(true)
	Verbosef("fold %s", "(0, 0)")
	if len(lines) != 1 || lines[0] != "fold (0, 0)" {
		t.Errorf("Verbosef output = %v, want [fold (0, 0)]", lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}
