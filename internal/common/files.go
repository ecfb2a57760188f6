package common

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic streams write() into a temp file next to destPath and
// renames it into place, so readers never observe a partial artifact.
// It returns the number of bytes written.
func WriteFileAtomic(destPath string, write func(w io.Writer) error) (int64, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create directory failed: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}
	tmpPath := f.Name()

	cw := &countingWriter{w: f}
	bw := bufio.NewWriterSize(cw, 256*1024)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("write failed: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename failed: %w", err)
	}

	return cw.n, nil
}

// WriteJSONAtomic encodes v as compact JSON and writes it atomically.
func WriteJSONAtomic(destPath string, v any) (int64, error) {
	return WriteFileAtomic(destPath, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	})
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
