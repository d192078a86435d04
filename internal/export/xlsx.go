package export

import (
	"bytes"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/atomicfile"
	"github.com/byeongteuk/btmap/internal/model"
)

// SheetName is the worksheet holding the company rows.
const SheetName = "companies"

// Columns are the XLSX header labels, in order.
var Columns = []string{
	"ID", "회사명", "시도", "시군구", "주소", "위도", "경도",
	"선정년도", "업종", "기업규모", "주생산품", "전화",
	"현역 배정", "현역 복무", "보충역 배정", "보충역 복무",
	"잡플래닛 평점", "리뷰 수", "평균연봉(만원)", "잡플래닛 URL",
	"채용 중", "채용공고 수", "설립년도", "직원수", "원티드 URL",
}

// rowWriter appends typed cells to one row. Absent values become blank
// cells so every row keeps the header's column positions.
type rowWriter struct {
	row *xlsx.Row
}

func (w rowWriter) str(s string) { w.row.AddCell().SetString(s) }

func (w rowWriter) strp(s *string) { w.str(model.Deref(s)) }

func (w rowWriter) int(n int) { w.row.AddCell().SetInt(n) }

func (w rowWriter) intp(n *int) {
	if n == nil {
		w.str("")
		return
	}
	w.int(*n)
}

func (w rowWriter) floatp(f *float64) {
	if f == nil {
		w.str("")
		return
	}
	w.row.AddCell().SetFloat(*f)
}

func (w rowWriter) bool(b bool) {
	if b {
		w.str("Y")
		return
	}
	w.str("N")
}

// BuildXLSX lays out one row per company under a header row.
func BuildXLSX(companies []*model.Company) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := rowWriter{sheet.AddRow()}
	for _, col := range Columns {
		header.str(col)
	}

	for _, c := range companies {
		w := rowWriter{sheet.AddRow()}
		w.str(c.ID)
		w.str(c.Name)
		w.strp(c.Sido)
		w.strp(c.Sigungu)
		w.strp(c.Address)
		w.floatp(c.Lat)
		w.floatp(c.Lng)

		mma := c.MMA
		if mma == nil {
			mma = &model.RegistryData{}
		}
		w.intp(mma.SelectedYear)
		w.strp(mma.Industry)
		w.strp(mma.CompanySize)
		w.strp(mma.MainProduct)
		w.strp(mma.Phone)
		w.int(mma.ActiveQuota)
		w.int(mma.ActiveServing)
		w.int(mma.ReserveQuota)
		w.int(mma.ReserveServing)

		if jp := c.Jobplanet; jp != nil {
			w.floatp(jp.Rating)
			w.int(jp.ReviewCount)
			w.intp(jp.AvgSalary)
			w.strp(jp.URL)
		} else {
			for range 4 {
				w.str("")
			}
		}

		if wt := c.Wanted; wt != nil {
			w.bool(wt.IsHiring)
			w.int(wt.JobCount)
			w.intp(wt.FoundedYear)
			w.strp(wt.Employees)
			w.strp(wt.URL)
		} else {
			for range 5 {
				w.str("")
			}
		}
	}
	return f, nil
}

// WriteXLSX writes the company sheet to path.
func WriteXLSX(path string, companies []*model.Company) error {
	f, err := BuildXLSX(companies)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return eris.Wrap(err, "export: encode xlsx")
	}
	if err := atomicfile.Write(path, buf.Bytes()); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	zap.L().Info("export: wrote xlsx", zap.String("path", path), zap.Int("rows", len(companies)))
	return nil
}
