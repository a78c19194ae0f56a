// Package jsonl reads and writes line-delimited JSON artifacts.
package jsonl

import (
	"bufio"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
)

// maxLineBytes accommodates deep book snapshots on a single line.
const maxLineBytes = 16 * 1024 * 1024

// Writer appends one JSON document per line. Every line goes straight to
// the file, so a crashed run leaves a readable prefix.
type Writer struct {
	f *os.File
}

// NewWriter creates or truncates the file at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Write marshals v and appends it as one line.
func (w *Writer) Write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal line: %w", err)
	}

	data = append(data, '\n')
	if _, err := w.f.Write(data); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// WritePretty writes v as indented JSON with a trailing newline.
func WritePretty(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// NewScanner returns a line scanner sized for large single-line documents.
func NewScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLineBytes)
	return s
}
