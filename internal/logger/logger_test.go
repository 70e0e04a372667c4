package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProcessSinkWritesToDirFile(t *testing.T) {
	dir := t.TempDir()
	c := Config{Dir: dir}
	sink := c.ProcessSink("api")
	if sink == nil {
		t.Fatal("nil sink despite configured dir")
	}
	defer func() { _ = sink.Close() }()

	if _, err := sink.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "api.log"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "hello\n" {
		t.Fatalf("content: %q", string(b))
	}
}

func TestProcessSinkDisabledWithoutDir(t *testing.T) {
	if sink := (Config{}).ProcessSink("api"); sink != nil {
		t.Fatal("sink created with no dir configured")
	}
}

func TestSinkAtExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "child.log")
	sink := Config{}.Sink(path)
	defer func() { _ = sink.Close() }()

	if _, err := sink.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file missing: %v", err)
	}
}

func TestRotationDefaults(t *testing.T) {
	if got := valOr(0, DefaultMaxSizeMB); got != DefaultMaxSizeMB {
		t.Fatalf("zero not defaulted: %d", got)
	}
	if got := valOr(-1, DefaultMaxBackups); got != DefaultMaxBackups {
		t.Fatalf("negative not defaulted: %d", got)
	}
	if got := valOr(42, DefaultMaxAgeDays); got != 42 {
		t.Fatalf("explicit value overridden: %d", got)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("hidden")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn suppressed: %q", out)
	}
}

func TestColorHandlerTagsLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")
	log.Error("broken")

	if !strings.Contains(buf.String(), "\033[31m") {
		t.Fatalf("error line not colored: %q", buf.String())
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "nonsense")
	log.Debug("hidden")
	log.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("fallback level wrong: %q", buf.String())
	}
}
