package registry

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/byeongteuk/btmap/internal/fetcher"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	biffMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// ErrLegacyXLS is returned for binary Excel 97-2003 workbooks, which cannot
// be read. Re-save the file as .xlsx.
var ErrLegacyXLS = eris.New("registry: binary .xls workbooks are not supported, save as .xlsx")

// ReadTable reads the registry spreadsheet at path. The format is sniffed
// from the content, not the extension: the registry serves an HTML table
// under an .xls name, and hand-edited copies are usually .xlsx.
func ReadTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, 8)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "registry: read %s", path)
		}
		return rows, nil
	case bytes.HasPrefix(head, biffMagic):
		return nil, ErrLegacyXLS
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, eris.Wrapf(err, "registry: rewind %s", path)
	}
	rows, err := fetcher.ReadHTMLTable(f, "")
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	return rows, nil
}
