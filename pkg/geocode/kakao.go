package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/byeongteuk/btmap/internal/resilience"
)

// KakaoKeywordURL is the Kakao Local keyword search endpoint.
const KakaoKeywordURL = "https://dapi.kakao.com/v2/local/search/keyword.json"

type kakaoResponse struct {
	Documents []struct {
		PlaceName       string `json:"place_name"`
		AddressName     string `json:"address_name"`
		RoadAddressName string `json:"road_address_name"`
		CategoryName    string `json:"category_name"`
		X               string `json:"x"`
		Y               string `json:"y"`
	} `json:"documents"`
}

// Kakao finds places by keyword, for companies whose address Naver cannot
// resolve.
type Kakao struct {
	apiKey string
	cfg    httpConfig
}

// NewKakao returns a Kakao provider.
func NewKakao(apiKey string, opts ...Option) *Kakao {
	return &Kakao{apiKey: apiKey, cfg: newHTTPConfig(KakaoKeywordURL, opts)}
}

// Name implements Provider.
func (k *Kakao) Name() string { return "kakao" }

// Available implements Provider.
func (k *Kakao) Available() bool { return k.apiKey != "" }

// Geocode implements Provider. The first document is taken as the most
// relevant.
func (k *Kakao) Geocode(ctx context.Context, q Query) (*Result, error) {
	keyword := strings.TrimSpace(q.Keyword)
	if keyword == "" {
		keyword = strings.TrimSpace(q.Address)
	}
	if keyword == "" {
		return &Result{Source: "kakao"}, nil
	}

	if err := k.cfg.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: kakao rate limit")
	}

	params := url.Values{"query": {keyword}, "size": {"5"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.cfg.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: kakao build request")
	}
	req.Header.Set("Authorization", "KakaoAK "+k.apiKey)

	resp, err := k.cfg.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: kakao request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus("geocode: kakao", resp.StatusCode); err != nil {
		return nil, err
	}

	var body kakaoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: kakao parse response"), resp.StatusCode)
	}
	if len(body.Documents) == 0 {
		return &Result{Source: "kakao"}, nil
	}

	doc := body.Documents[0]
	lat, latErr := strconv.ParseFloat(doc.Y, 64)
	lng, lngErr := strconv.ParseFloat(doc.X, 64)
	if latErr != nil || lngErr != nil {
		return nil, eris.Errorf("geocode: kakao returned bad coordinates x=%q y=%q", doc.X, doc.Y)
	}

	addr := doc.RoadAddressName
	if addr == "" {
		addr = doc.AddressName
	}
	return &Result{
		Lat:     lat,
		Lng:     lng,
		Address: addr,
		Source:  "kakao",
		Matched: true,
	}, nil
}
