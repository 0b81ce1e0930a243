package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JsonlWriter appends one JSON object per line to a UTF-8 file. Writes are
// serialized and unbuffered so concurrent readers and post-crash inspection
// see every completed record.
type JsonlWriter struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// NewJsonlWriter opens path for writing, creating parent directories as
// needed. With append false the file is truncated; with append true new
// records follow any existing ones (the resume path).
func NewJsonlWriter(path string, appendMode bool) (*JsonlWriter, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &JsonlWriter{file: f}, nil
}

// Write serializes v as a single JSON line.
func (w *JsonlWriter) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("write record: writer is closed")
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close closes the file. It is safe to call more than once.
func (w *JsonlWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
