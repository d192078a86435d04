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

// NaverGeocodeURL is the Naver Cloud Maps geocoding endpoint.
const NaverGeocodeURL = "https://maps.apigw.ntruss.com/map-geocode/v2/geocode"

type naverResponse struct {
	Status    string `json:"status"`
	Addresses []struct {
		RoadAddress  string `json:"roadAddress"`
		JibunAddress string `json:"jibunAddress"`
		X            string `json:"x"`
		Y            string `json:"y"`
	} `json:"addresses"`
	ErrorMessage string `json:"errorMessage"`
}

// Naver geocodes street addresses.
type Naver struct {
	clientID     string
	clientSecret string
	cfg          httpConfig
}

// NewNaver returns a Naver provider.
func NewNaver(clientID, clientSecret string, opts ...Option) *Naver {
	return &Naver{
		clientID:     clientID,
		clientSecret: clientSecret,
		cfg:          newHTTPConfig(NaverGeocodeURL, opts),
	}
}

// Name implements Provider.
func (n *Naver) Name() string { return "naver" }

// Available implements Provider.
func (n *Naver) Available() bool { return n.clientID != "" && n.clientSecret != "" }

// Geocode implements Provider.
func (n *Naver) Geocode(ctx context.Context, q Query) (*Result, error) {
	addr := strings.TrimSpace(q.Address)
	if addr == "" {
		return &Result{Source: "naver"}, nil
	}

	if err := n.cfg.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: naver rate limit")
	}

	reqURL := n.cfg.baseURL + "?" + url.Values{"query": {addr}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: naver build request")
	}
	req.Header.Set("X-NCP-APIGW-API-KEY-ID", n.clientID)
	req.Header.Set("X-NCP-APIGW-API-KEY", n.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := n.cfg.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: naver request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus("geocode: naver", resp.StatusCode); err != nil {
		return nil, err
	}

	var body naverResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geocode: naver parse response"), resp.StatusCode)
	}
	if body.Status != "" && body.Status != "OK" {
		return nil, eris.Errorf("geocode: naver status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Addresses) == 0 {
		return &Result{Source: "naver"}, nil
	}

	first := body.Addresses[0]
	lat, latErr := strconv.ParseFloat(first.Y, 64)
	lng, lngErr := strconv.ParseFloat(first.X, 64)
	if latErr != nil || lngErr != nil {
		return nil, eris.Errorf("geocode: naver returned bad coordinates x=%q y=%q", first.X, first.Y)
	}

	normalized := first.RoadAddress
	if normalized == "" {
		normalized = first.JibunAddress
	}
	return &Result{
		Lat:     lat,
		Lng:     lng,
		Address: normalized,
		Source:  "naver",
		Matched: true,
	}, nil
}
