package wav

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// ErrClosed is returned by operations on a writer that has been finalized,
// closed or aborted.
var ErrClosed = errors.New("wav writer is closed")

// Writer streams PCM data into a WAV file whose size fields are patched
// when the writer is finalized.
//
// Write may be called from one goroutine while DataSize is read from another.
// Everything else must be serialized by the caller.
type Writer struct {
	file     *os.File
	path     string
	format   Format
	dataSize atomic.Int64
	closed   bool
}

// Create opens path for writing, truncating any previous content, and writes
// a placeholder header with zero size fields.
func Create(path string, format Format) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is empty")
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid WAV format: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	header, err := placeholderHeader(format).MarshalBinary()
	if err != nil {
		file.Close()
		return nil, err
	}
	if _, err := file.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	return &Writer{file: file, path: path, format: format}, nil
}

// Path returns the file the writer was created for
func (w *Writer) Path() string {
	return w.path
}

// Format returns the PCM format of the file
func (w *Writer) Format() Format {
	return w.format
}

// DataSize returns the number of PCM bytes written after the header
func (w *Writer) DataSize() int64 {
	return w.dataSize.Load()
}

// Write appends interleaved PCM bytes
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	n, err := w.file.Write(p)
	w.dataSize.Add(int64(n))
	if err != nil {
		return n, fmt.Errorf("failed to write PCM data: %w", err)
	}
	return n, nil
}

// Finalize patches the RIFF and data sizes with the number of bytes written
// and closes the file. The file is closed even when patching fails.
func (w *Writer) Finalize() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	size := w.DataSize()
	if size > MaxDataSize {
		w.file.Close()
		return fmt.Errorf("PCM payload of %d bytes exceeds the WAV size limit", size)
	}

	if err := PatchSizes(w.file, uint32(size)); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

// Close closes the file without touching the header
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

// Abort closes the file and removes it from disk
func (w *Writer) Abort() error {
	closeErr := w.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove output file: %w", err)
	}
	return closeErr
}
