package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of leading rows to skip
}

// ReadXLSX reads an XLSX file and returns all rows as trimmed string
// slices. Fully blank rows are dropped.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open workbook %s", path)
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows || row == nil {
			continue
		}
		cells := rowToStrings(row)
		if isBlank(cells) {
			continue
		}
		rows = append(rows, cells)
	}

	return rows, nil
}

// pickSheet selects by name when one is given, else by index.
func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if name := opts.SheetName; name != "" {
		if sheet, ok := f.Sheet[name]; ok {
			return sheet, nil
		}
		return nil, eris.Errorf("fetcher: workbook has no sheet %q", name)
	}
	if n := len(f.Sheets); opts.SheetIndex < 0 || opts.SheetIndex >= n {
		return nil, eris.Errorf("fetcher: sheet index %d out of range, workbook has %d", opts.SheetIndex, n)
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
