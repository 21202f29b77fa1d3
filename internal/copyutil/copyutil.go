package copyutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams r into dst through a sibling tmp file: write, fsync,
// close, rename. dst is either fully written or untouched.
func WriteAtomic(dst string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	tmp := dst + ".tmp"

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	n, copyErr := io.Copy(out, r)
	syncErr := out.Sync()
	closeErr := out.Close()

	for _, e := range []error{copyErr, syncErr, closeErr} {
		if e != nil {
			_ = os.Remove(tmp)
			return n, e
		}
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("rename tmp->final: %w", err)
	}
	return n, nil
}

// WriteFileAtomic is WriteAtomic for an in-memory buffer.
func WriteFileAtomic(dst string, data []byte) error {
	_, err := WriteAtomic(dst, bytes.NewReader(data))
	return err
}

