package registry

import (
	"regexp"
	"strings"
)

// sidoAliases maps official province and metropolitan-city names to the
// short form used throughout the document.
var sidoAliases = map[string]string{
	"서울특별시":   "서울",
	"부산광역시":   "부산",
	"대구광역시":   "대구",
	"인천광역시":   "인천",
	"광주광역시":   "광주",
	"대전광역시":   "대전",
	"울산광역시":   "울산",
	"세종특별자치시": "세종",
	"경기도":     "경기",
	"강원도":     "강원",
	"강원특별자치도": "강원",
	"충청북도":    "충북",
	"충청남도":    "충남",
	"전라북도":    "전북",
	"전북특별자치도": "전북",
	"전라남도":    "전남",
	"경상북도":    "경북",
	"경상남도":    "경남",
	"제주특별자치도": "제주",
	"제주도":     "제주",
}

var (
	sidoRe = regexp.MustCompile(`^(서울특별시|부산광역시|대구광역시|인천광역시|광주광역시|대전광역시|울산광역시|세종특별자치시|` +
		`충청북도|충청남도|전라북도|전라남도|경상북도|경상남도|` +
		`경기도|강원특별자치도|강원도|전북특별자치도|제주특별자치도|제주도|` +
		`서울|부산|대구|인천|광주|대전|울산|세종|경기|강원|충북|충남|전북|전남|경북|경남|제주)`)
	sigunguRe      = regexp.MustCompile(`(?:시|도)\s*([가-힣]+(?:시|군|구))`)
	metroSigunguRe = regexp.MustCompile(`(?:서울|부산|대구|인천|광주|대전|울산)\s*([가-힣]+구)`)
	sigunguWordRe  = regexp.MustCompile(`^[가-힣]+(?:시|군|구)$`)
)

// Region derives the short province name (sido) and the city, county or
// district (sigungu) from a Korean address. Either may be empty.
func Region(address string) (sido, sigungu string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ""
	}

	rest := address
	if m := sidoRe.FindStringSubmatch(address); m != nil {
		sido = m[1]
		rest = address[len(m[0]):]
		if short, ok := sidoAliases[sido]; ok {
			sido = short
		}
	}

	// The first word after the province is the most reliable: in
	// "충남 천안시 서북구" the city, not the ward, is the sigungu.
	if sido != "" {
		if fields := strings.Fields(rest); len(fields) > 0 && sigunguWordRe.MatchString(fields[0]) {
			return sido, fields[0]
		}
	}

	if m := sigunguRe.FindStringSubmatch(address); m != nil {
		sigungu = m[1]
	} else if m := metroSigunguRe.FindStringSubmatch(address); m != nil {
		sigungu = m[1]
	}
	return sido, sigungu
}
