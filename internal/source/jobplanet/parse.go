package jobplanet

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

var (
	companyPathRe = regexp.MustCompile(`/companies/(\d+)`)
	ratingRe      = regexp.MustCompile(`(\d+\.?\d*)`)
	reviewCountRe = regexp.MustCompile(`([\d,]+)건`)
	salaryRe      = regexp.MustCompile(`평균[^\d]*(\d[\d,]*)\s*만`)
	addressWordRe = regexp.MustCompile(`구|동|로|길|읍|면`)
)

// addressRes match an address starting with a province short name in the
// body text. Order matters: the first pattern that yields a plausible
// address wins.
var addressRes = func() []*regexp.Regexp {
	prefixes := []string{
		"서울", "경기", "부산", "인천", "대구", "대전", "광주", "울산", "세종",
		"강원", "충북", "충남", "전북", "전남", "경북", "경남", "제주",
	}
	out := make([]*regexp.Regexp, len(prefixes))
	for i, p := range prefixes {
		out[i] = regexp.MustCompile(`(` + p + `[^\n,]{10,50})`)
	}
	return out
}()

// candidate is a company link on the search results page.
type candidate struct {
	ID   string
	Name string
	URL  string
}

func parseDoc(p *Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, eris.Wrapf(err, "jobplanet: parse %s", p.URL)
	}
	return doc, nil
}

// searchCandidates lists the distinct company links with visible text, in
// page order.
func searchCandidates(p *Page, doc *goquery.Document) []candidate {
	var out []candidate
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := companyPathRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		name := strings.Join(strings.Fields(s.Text()), " ")
		if name == "" {
			return
		}
		seen[m[1]] = true
		out = append(out, candidate{ID: m[1], Name: name, URL: resolve(p.URL, href)})
	})
	return out
}

// parseRating reads the score shown in .rate_point.
func parseRating(doc *goquery.Document) *float64 {
	m := ratingRe.FindStringSubmatch(strings.TrimSpace(doc.Find(".rate_point").First().Text()))
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseReviewCount reads the count from a title like
// "회사명 | 기업리뷰 328건, 평점".
func parseReviewCount(title string) int {
	m := reviewCountRe.FindStringSubmatch(title)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	return n
}

// parseAddress finds the first regional address in the page text that
// contains a street or district word.
func parseAddress(text string) string {
	for _, re := range addressRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		addr := strings.TrimSpace(m[1])
		if addressWordRe.MatchString(addr) {
			return addr
		}
	}
	return ""
}

// salaryLink returns the absolute URL of the salary tab, if linked.
func salaryLink(p *Page, doc *goquery.Document) string {
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "/salaries") {
			link = resolve(p.URL, href)
			return false
		}
		return true
	})
	return link
}

// parseSalary reads the average salary in 만원 from text like
// "평균 연봉 6,961만원".
func parseSalary(text string) *int {
	m := salaryRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

// loginError returns the message of a visible sign-in error, if any.
func loginError(doc *goquery.Document) string {
	return strings.Join(strings.Fields(doc.Find(".error_message, .alert").First().Text()), " ")
}

func resolve(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return href
	}
	return b.ResolveReference(ref).String()
}
