package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/byeongteuk/btmap/internal/atomicfile"
)

// FileStore keeps one JSON document per source in a directory, named
// <source>_progress.json. Every Apply rewrites the document atomically.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "progress: create dir")
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the document path for source.
func (s *FileStore) Path(source string) string {
	return filepath.Join(s.dir, source+"_progress.json")
}

// Load reads the document for source. A missing file is an empty document.
func (s *FileStore) Load(_ context.Context, source string) (*Document, error) {
	data, err := os.ReadFile(s.Path(source))
	if errors.Is(err, fs.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "progress: read %s", s.Path(source))
	}

	doc := NewDocument()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, eris.Wrapf(err, "progress: parse %s", s.Path(source))
	}
	doc.ensure()
	return doc, nil
}

// Apply writes doc in full.
func (s *FileStore) Apply(_ context.Context, source string, doc *Document, _ Change) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "progress: encode document")
	}
	if err := atomicfile.Write(s.Path(source), buf.Bytes()); err != nil {
		return eris.Wrapf(err, "progress: save %s", source)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
