package wanted

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

type searchResponse struct {
	Data struct {
		Companies []searchHit `json:"companies"`
	} `json:"data"`
}

type searchHit struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FoundedYear *int   `json:"founded_year"`
}

type companyResponse struct {
	Company companyDetail `json:"company"`
}

type companyDetail struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name"`
	FoundedYear            *int   `json:"founded_year"`
	ConfirmedPositionCount int    `json:"confirmed_position_count"`
	CompanyAddress         *struct {
		FullLocation string `json:"full_location"`
	} `json:"company_address"`
	CompanyTags []struct {
		Title string `json:"title"`
	} `json:"company_tags"`
}

type jobsResponse struct {
	Data []struct {
		ID       int64  `json:"id"`
		Position string `json:"position"`
	} `json:"data"`
}

var companyPathRe = regexp.MustCompile(`/company/(\d+)`)

// CompanyID extracts the numeric company id from a Wanted company URL.
func CompanyID(rawURL string) (int64, bool) {
	m := companyPathRe.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (a *Adapter) searchURL(query string) string {
	q := url.Values{"query": {query}, "country": {"kr"}}
	return a.baseURL + "/api/v4/search?" + q.Encode()
}

func (a *Adapter) companyAPIURL(id int64) string {
	return fmt.Sprintf("%s/api/v4/companies/%d", a.baseURL, id)
}

func (a *Adapter) jobsAPIURL(id int64) string {
	return fmt.Sprintf("%s/api/v4/companies/%d/jobs", a.baseURL, id)
}

func (a *Adapter) companyPageURL(id int64) string {
	return fmt.Sprintf("%s/company/%d", a.baseURL, id)
}

func (a *Adapter) jobPageURL(id int64) string {
	return fmt.Sprintf("%s/wd/%d", a.baseURL, id)
}

func (a *Adapter) searchPageURL(query string) string {
	q := url.Values{"query": {query}, "tab": {"company"}}
	return a.baseURL + "/search?" + q.Encode()
}

// employeesTag returns the first tag that states a head count, e.g.
// "51~100명".
func employeesTag(d companyDetail) string {
	for _, t := range d.CompanyTags {
		if strings.Contains(t.Title, "명") {
			return strings.TrimSpace(t.Title)
		}
	}
	return ""
}
