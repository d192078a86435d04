// Package atomicfile replaces files without ever exposing a partially
// written version: data goes to a temporary file in the same directory,
// is synced, and is renamed over the target.
package atomicfile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Write atomically replaces path with data.
func Write(path string, data []byte) error {
	_, err := WriteFrom(path, bytes.NewReader(data))
	return err
}

// WriteFrom atomically replaces path with everything read from r and
// returns the number of bytes written. On error the target is untouched.
func WriteFrom(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "atomicfile: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, eris.Wrap(err, "atomicfile: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, eris.Wrapf(err, "atomicfile: write %s", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return n, eris.Wrapf(err, "atomicfile: sync %s", path)
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrapf(err, "atomicfile: close %s", path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return n, eris.Wrapf(err, "atomicfile: chmod %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, eris.Wrapf(err, "atomicfile: rename to %s", path)
	}
	return n, nil
}
