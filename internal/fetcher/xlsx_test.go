package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"업체명", "주소"},
			{" (주)테스트 ", "서울특별시 강남구"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"업체명", "주소"}, rows[0])
	assert.Equal(t, []string{"(주)테스트", "서울특별시 강남구"}, rows[1])
}

func TestReadXLSX_SkipRowsAndBlank(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"병역지정업체 현황"},
			{"업체명"},
			{"", ""},
			{"가"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"업체명"}, {"가"}}, rows)
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"목록": {{"a"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "목록"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, rows)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "없음"})
	assert.Error(t, err)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})
	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	assert.Error(t, err)
}
