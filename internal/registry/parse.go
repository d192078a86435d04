package registry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/identity"
	"github.com/byeongteuk/btmap/internal/model"
)

// ErrNoRows is returned when the spreadsheet holds no data rows.
var ErrNoRows = eris.New("registry: spreadsheet has no data rows")

// headerScanRows bounds how far down the sheet the header row is searched
// for; exported sheets sometimes open with a title row.
const headerScanRows = 5

var (
	nameHeaders = []string{"업체명", "회사명", "기업명"}
	yearRe      = regexp.MustCompile(`\d{4}`)
)

// columns holds the index of each recognised column, -1 when absent.
type columns struct {
	name, address, region, year, phone int
	industry, size, product            int
	activeQuota, activeServing         int
	reserveQuota, reserveServing       int
	siteAddress                        bool
}

func newColumns() columns {
	return columns{
		name: -1, address: -1, region: -1, year: -1, phone: -1,
		industry: -1, size: -1, product: -1,
		activeQuota: -1, activeServing: -1,
		reserveQuota: -1, reserveServing: -1,
	}
}

// mapColumns assigns header cells to fields by substring. A header naming
// the workplace address (사업장 주소) wins over a plain 주소 column.
func mapColumns(header []string) columns {
	c := newColumns()
	for i, raw := range header {
		h := strings.Join(strings.Fields(raw), "")
		switch {
		case containsAny(h, nameHeaders...):
			if c.name < 0 {
				c.name = i
			}
		case strings.Contains(h, "사업장") && strings.Contains(h, "주소"):
			if !c.siteAddress {
				c.address, c.siteAddress = i, true
			}
		case strings.Contains(h, "주소"):
			if c.address < 0 {
				c.address = i
			}
		case strings.Contains(h, "지역"):
			c.region = i
		case containsAny(h, "선정년도", "지정년도"):
			c.year = i
		case strings.Contains(h, "전화"):
			c.phone = i
		case strings.Contains(h, "업종"):
			c.industry = i
		case strings.Contains(h, "기업규모") || h == "규모":
			c.size = i
		case strings.Contains(h, "생산품"):
			c.product = i
		case strings.Contains(h, "현역") && strings.Contains(h, "배정"):
			c.activeQuota = i
		case strings.Contains(h, "현역") && strings.Contains(h, "복무"):
			c.activeServing = i
		case strings.Contains(h, "보충역") && strings.Contains(h, "배정"):
			c.reserveQuota = i
		case strings.Contains(h, "보충역") && strings.Contains(h, "복무"):
			c.reserveServing = i
		}
	}
	return c
}

// findHeader returns the index of the first row naming a company column,
// or 0 when none of the leading rows does.
func findHeader(rows [][]string) int {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		for _, v := range rows[i] {
			if containsAny(strings.Join(strings.Fields(v), ""), nameHeaders...) {
				return i
			}
		}
	}
	return 0
}

// Parse converts registry rows, header included, into company records.
// Columns are recognised by header text; without a name header the first
// column is taken as the name. Rows without a name are skipped and
// companies sharing an id are kept once, first occurrence winning.
func Parse(rows [][]string) ([]*model.Company, error) {
	start := findHeader(rows)
	if len(rows) <= start+1 {
		return nil, ErrNoRows
	}

	cols := mapColumns(rows[start])
	if cols.name < 0 {
		zap.L().Warn("registry: no company name column, using the first column",
			zap.Strings("header", rows[start]),
		)
		cols.name = 0
	}

	var (
		companies  = make([]*model.Company, 0, len(rows)-start-1)
		seen       = make(map[string]bool, len(rows))
		skipped    int
		duplicates int
	)
	for _, row := range rows[start+1:] {
		c := parseRow(row, cols)
		if c == nil {
			skipped++
			continue
		}
		if seen[c.ID] {
			duplicates++
			continue
		}
		seen[c.ID] = true
		companies = append(companies, c)
	}

	zap.L().Info("registry: parsed spreadsheet",
		zap.Int("rows", len(rows)-start-1),
		zap.Int("companies", len(companies)),
		zap.Int("skipped", skipped),
		zap.Int("duplicates", duplicates),
	)
	return companies, nil
}

func parseRow(row []string, cols columns) *model.Company {
	name := cell(row, cols.name)
	if name == "" {
		return nil
	}
	address := cell(row, cols.address)
	region := cell(row, cols.region)

	regionSource := address
	if regionSource == "" {
		regionSource = region
	}
	sido, sigungu := Region(regionSource)
	if region == "" {
		region = sido
	}

	return &model.Company{
		ID:      identity.CompanyID(name, address),
		Name:    name,
		Sido:    model.Str(sido),
		Sigungu: model.Str(sigungu),
		Address: model.Str(address),
		MMA: &model.RegistryData{
			SelectedYear:   parseYear(cell(row, cols.year)),
			Address:        model.Str(address),
			Region:         model.Str(region),
			Phone:          model.Str(cell(row, cols.phone)),
			Industry:       model.Str(cell(row, cols.industry)),
			CompanySize:    model.Str(cell(row, cols.size)),
			MainProduct:    model.Str(cell(row, cols.product)),
			ActiveQuota:    parseCount(cell(row, cols.activeQuota)),
			ActiveServing:  parseCount(cell(row, cols.activeServing)),
			ReserveQuota:   parseCount(cell(row, cols.reserveQuota)),
			ReserveServing: parseCount(cell(row, cols.reserveServing)),
		},
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseYear reads "2019", "2019.0" or "2019년".
func parseYear(s string) *int {
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		y := int(f)
		return &y
	}
	if m := yearRe.FindString(s); m != "" {
		y, _ := strconv.Atoi(m)
		return &y
	}
	return nil
}

// parseCount reads a head count, treating anything unreadable as zero.
func parseCount(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
