package geocode

import (
	"net/http"
	"net/url"
	"strings"
)

// testOptions points a provider at the test server with pacing disabled.
func testOptions(testServerURL, target string) []Option {
	return []Option{
		WithHTTPClient(&http.Client{Transport: &redirectTransport{to: testServerURL, from: target}}),
		WithInterval(0),
	}
}

// redirectTransport sends requests whose URL starts with from to the test
// server instead, keeping the remainder of the URL.
type redirectTransport struct {
	from, to string
}

func (rt *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	raw := req.URL.String()
	rest, ok := strings.CutPrefix(raw, rt.from)
	if !ok {
		return http.DefaultTransport.RoundTrip(req)
	}
	u, err := url.Parse(rt.to + rest)
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL = u
	out.Host = u.Host
	return http.DefaultTransport.RoundTrip(out)
}
