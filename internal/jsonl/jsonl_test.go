package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriter_OneDocumentPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	if err := w.Write(map[string]string{"a": "1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(map[string]string{"b": "2"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}
	if lines[0] != `{"a":"1"}` || lines[1] != `{"b":"2"}` {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestWritePretty_TrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")

	if err := WritePretty(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("write pretty: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	s := string(data)
	if !strings.HasSuffix(s, "\n") {
		t.Error("expected trailing newline")
	}
	if !strings.Contains(s, "  \"n\": 1") {
		t.Errorf("expected indented output, got %q", s)
	}
}

func TestNewScanner_LongLines(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"pad":"`)
	b.WriteString(strings.Repeat("x", 1<<20))
	b.WriteString("\"}\n{\"next\":true}\n")

	s := NewScanner(strings.NewReader(b.String()))

	if !s.Scan() {
		t.Fatalf("first scan failed: %v", s.Err())
	}
	if len(s.Bytes()) < 1<<20 {
		t.Errorf("first line truncated to %d bytes", len(s.Bytes()))
	}
	if !s.Scan() {
		t.Fatalf("second scan failed: %v", s.Err())
	}
	if string(s.Bytes()) != `{"next":true}` {
		t.Errorf("second line = %q", s.Bytes())
	}
}
