// Package model defines the company document shared by every pipeline stage.
package model

// Source names a data source feeding the company document.
type Source string

const (
	SourceRegistry  Source = "mma"
	SourceJobplanet Source = "jobplanet"
	SourceWanted    Source = "wanted"
	SourceGeocode   Source = "geocode"
)

// Company is the canonical merged record for one designated company.
type Company struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Sido    *string  `json:"sido"`
	Sigungu *string  `json:"sigungu"`
	Address *string  `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`

	MMA       *RegistryData  `json:"mma,omitempty"`
	Jobplanet *JobplanetData `json:"jobplanet,omitempty"`
	Wanted    *WantedData    `json:"wanted,omitempty"`
}

// RegistryData holds the fields read from the government registry spreadsheet.
type RegistryData struct {
	SelectedYear   *int    `json:"selectedYear"`
	Address        *string `json:"address"`
	Region         *string `json:"region"`
	Phone          *string `json:"phone"`
	Industry       *string `json:"industry"`
	CompanySize    *string `json:"companySize"`
	MainProduct    *string `json:"mainProduct"`
	ReserveQuota   int     `json:"reserveQuota"`
	ReserveServing int     `json:"reserveServing"`
	ActiveQuota    int     `json:"activeQuota"`
	ActiveServing  int     `json:"activeServing"`
}

// JobplanetData holds company review data (rating, reviews, salary).
type JobplanetData struct {
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	AvgSalary   *int     `json:"avgSalary"` // 만원
	Address     *string  `json:"address"`
	URL         *string  `json:"url"`
}

// WantedJob is a single open position.
type WantedJob struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// WantedData holds hiring and company profile data.
type WantedData struct {
	IsHiring    bool        `json:"isHiring"`
	JobCount    int         `json:"jobCount"`
	Jobs        []WantedJob `json:"jobs"`
	Address     *string     `json:"address"`
	FoundedYear *int        `json:"foundedYear"`
	Employees   *string     `json:"employees"`
	URL         *string     `json:"url"`
}

// GeocodeData is the result recorded by the geocoding stage. Address is the
// exact string that was geocoded.
type GeocodeData struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// Document is the persisted company document.
type Document struct {
	LastUpdated Timestamp  `json:"lastUpdated"`
	Companies   []*Company `json:"companies"`
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the string behind p, or "" for nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// HasCoordinates reports whether both coordinates are set.
func (c *Company) HasCoordinates() bool {
	return c.Lat != nil && c.Lng != nil
}
