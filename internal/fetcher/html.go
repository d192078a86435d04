package fetcher

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// ReadHTMLTable reads the largest <table> of an HTML document and returns its
// rows as trimmed string slices, header row included. Government download
// endpoints commonly serve such tables under an .xls name, often in EUC-KR
// without a charset declaration; when the encoding cannot be determined and
// the bytes are not valid UTF-8, EUC-KR is assumed.
func ReadHTMLTable(r io.Reader, contentType string) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "html table: read")
	}

	decoded, err := decodeHTML(raw, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, eris.Wrap(err, "html table: parse")
	}

	var best *goquery.Selection
	bestRows := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		n := table.Find("tr").Length()
		if n > bestRows {
			best, bestRows = table, n
		}
	})
	if best == nil {
		return nil, eris.New("html table: no table found")
	}

	var rows [][]string
	best.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.Join(strings.Fields(cell.Text()), " "))
		})
		if len(cells) > 0 && !isBlank(cells) {
			rows = append(rows, cells)
		}
	})

	return rows, nil
}

func decodeHTML(raw []byte, contentType string) ([]byte, error) {
	enc, name, certain := charset.DetermineEncoding(raw, contentType)
	switch {
	case certain:
	case name == "utf-8" && utf8.Valid(raw):
		return raw, nil
	case name == "utf-8" || name == "windows-1252":
		enc = korean.EUCKR
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return nil, eris.Wrap(err, "html table: decode")
	}
	return out, nil
}
