// Package identity resolves company identity across inconsistently named
// sources: canonical names, search variants, fuzzy matching and stable ids.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Name is the normalized form of a raw company name.
type Name struct {
	Original       string   `json:"original"`
	Core           string   `json:"core"`
	Foreign        string   `json:"foreign,omitempty"`
	SearchVariants []string `json:"search_variants"`
}

// Markers lists the corporate-entity words stripped from names.
// Longer words must precede words they contain.
var Markers = []string{"유한책임회사", "주식회사", "유한회사"}

// Abbreviations lists the single-word markers that are stripped only when
// wrapped in parentheses or brackets, e.g. (주), [유].
var Abbreviations = []string{"주", "유"}

var (
	markerRe       *regexp.Regexp
	leadingAbbrRe  *regexp.Regexp
	trailingAbbrRe *regexp.Regexp

	foreignRe       = regexp.MustCompile(`[(（]([A-Za-z][A-Za-z0-9\s.,&]+(?:Co\.?,?\s*Ltd\.?|Inc\.?|LLC|Corp\.?)?)\s*[)）]`)
	foreignSuffixRe = regexp.MustCompile(`(?i)\s*,?\s*(Co\.?,?\s*Ltd\.?|Inc\.?|LLC|Corp\.?)\s*$`)
	foreignParenRe  = regexp.MustCompile(`\s*[(（][A-Za-z][^)）]*[)）]\s*`)
	punctRe         = regexp.MustCompile(`[&\-.,]`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

func init() {
	compileMarkers()
}

// RegisterMarker adds a corporate-entity word to the strip list.
func RegisterMarker(word string) {
	word = strings.TrimSpace(word)
	if word == "" {
		return
	}
	for _, m := range Markers {
		if m == word {
			return
		}
	}
	Markers = append(Markers, word)
	compileMarkers()
}

func compileMarkers() {
	words := make([]string, len(Markers))
	for i, m := range Markers {
		words[i] = regexp.QuoteMeta(m)
	}
	markerRe = regexp.MustCompile(`\s*(?:` + strings.Join(words, "|") + `)\s*`)

	abbrs := make([]string, len(Abbreviations))
	for i, a := range Abbreviations {
		abbrs[i] = regexp.QuoteMeta(a)
	}
	abbr := `(?:[(（\[]\s*(?:` + strings.Join(abbrs, "|") + `)\s*[)）\]]|㈜)`
	leadingAbbrRe = regexp.MustCompile(`^\s*` + abbr + `\s*`)
	trailingAbbrRe = regexp.MustCompile(`\s*` + abbr + `\s*$`)
}

// Normalize derives the canonical core name, the embedded foreign-script name
// and the ordered search variants for a raw company name. It never fails;
// blank input yields the zero Name.
func Normalize(raw string) Name {
	raw = norm.NFC.String(raw)
	original := strings.TrimSpace(raw)
	if original == "" {
		return Name{}
	}

	var foreign string
	if m := foreignRe.FindStringSubmatch(original); m != nil {
		foreign = strings.TrimSpace(foreignSuffixRe.ReplaceAllString(strings.TrimSpace(m[1]), ""))
	}

	core := leadingAbbrRe.ReplaceAllString(original, "")
	core = markerRe.ReplaceAllString(core, " ")
	core = foreignParenRe.ReplaceAllString(core, " ")
	core = trailingAbbrRe.ReplaceAllString(core, "")
	core = collapse(core)
	if core == "" {
		core = collapse(original)
	}

	variants := make([]string, 0, 4)
	variants = append(variants, core)
	if foreign != "" {
		variants = append(variants, foreign)
	}
	if noSpace := strings.ReplaceAll(core, " ", ""); noSpace != core {
		variants = append(variants, noSpace)
	}
	if clean := collapse(punctRe.ReplaceAllString(core, "")); clean != core {
		variants = append(variants, clean)
	}

	return Name{
		Original:       original,
		Core:           core,
		Foreign:        foreign,
		SearchVariants: unique(variants),
	}
}

// CompanyID derives the stable company identifier from the registry name and
// address. Two companies sharing a core name but registered at different
// addresses receive distinct ids.
func CompanyID(name, address string) string {
	key := Normalize(name).Core + "|" + collapse(address)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
