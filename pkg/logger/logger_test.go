package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestInitParsesLevel(t *testing.T) {
	for in, want := range map[string]string{
		"debug":    "debug",
		"WARN":     "warn",
		" Error ":  "error",
		"":         "info",
		"nonsense": "info",
	} {
		Init(in)
		if got := LevelString(); got != want {
			t.Errorf("Init(%q): LevelString() = %q, want %q", in, got, want)
		}
	}
}

func TestLevelFilteringAndPrintln(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Init("warn")
	Debugf("debug-msg")
	Infof("info-msg")
	Warnf("warn-msg")
	Errorf("error-msg")

	out := buf.String()
	if strings.Contains(out, "debug-msg") || strings.Contains(out, "info-msg") {
		t.Fatalf("debug/info messages should be suppressed at warn level: %q", out)
	}
	if !strings.Contains(out, "warn-msg") || !strings.Contains(out, "error-msg") {
		t.Fatalf("warn/error messages missing: %q", out)
	}

	buf.Reset()
	Println("hello")
	if strings.Contains(buf.String(), "hello") {
		t.Fatalf("Println should be suppressed at warn level")
	}

	Init("info")
	buf.Reset()
	Println("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("Println expected at info level, got: %q", buf.String())
	}
}

func TestWithPrefixesSortedFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	Init("info")

	With("story", "s1", "job", "recommendations").Infof("done in %dms", 12)
	out := buf.String()
	if !strings.Contains(out, "[INFO] job=recommendations story=s1 done in 12ms") {
		t.Fatalf("unexpected entry output: %q", out)
	}

	buf.Reset()
	With("orphan").Errorf("boom")
	if !strings.Contains(buf.String(), "orphan=? boom") {
		t.Fatalf("unexpected orphan key output: %q", buf.String())
	}
}
