// Package company persists the company document shared by every pipeline
// stage.
package company

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/byeongteuk/btmap/internal/atomicfile"
	"github.com/byeongteuk/btmap/internal/model"
)

// Store reads and writes the company document at Path.
type Store struct {
	Path string

	now func() time.Time
}

// NewStore returns a Store for the document at path.
func NewStore(path string) *Store {
	return &Store{Path: path, now: time.Now}
}

// Load returns the stored companies. A missing document yields an empty
// list. Unknown fields in stored records are ignored.
func (s *Store) Load() ([]*model.Company, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*model.Company{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "company: read %s", s.Path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []*model.Company{}, nil
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "company: parse %s", s.Path)
	}

	out := make([]*model.Company, 0, len(doc.Companies))
	for _, c := range doc.Companies {
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// Save writes the full list, stamped with the current time, replacing the
// document atomically.
func (s *Store) Save(companies []*model.Company) error {
	if companies == nil {
		companies = []*model.Company{}
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	doc := model.Document{
		LastUpdated: model.Timestamp{Time: now().UTC()},
		Companies:   companies,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "company: encode document")
	}

	if err := atomicfile.Write(s.Path, buf.Bytes()); err != nil {
		return eris.Wrap(err, "company: save")
	}
	return nil
}

// Index maps company id to company.
func Index(companies []*model.Company) map[string]*model.Company {
	idx := make(map[string]*model.Company, len(companies))
	for _, c := range companies {
		idx[c.ID] = c
	}
	return idx
}
