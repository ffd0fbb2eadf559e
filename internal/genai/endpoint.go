package genai

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// googleAPIKeyHeader carries the key once a custom HTTP client replaces the SDK's authenticated one.
const googleAPIKeyHeader = "x-goog-api-key"

// endpointTransport sends every request to base, keeping the original path under base's path.
type endpointTransport struct {
	base   *url.URL
	apiKey string
	next   http.RoundTripper
}

func (t *endpointTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.URL.Path = strings.TrimSuffix(t.base.Path, "/") + req.URL.Path
	out.URL.RawPath = ""
	out.Host = t.base.Host
	if t.apiKey != "" && out.Header.Get(googleAPIKeyHeader) == "" {
		out.Header.Set(googleAPIKeyHeader, t.apiKey)
	}
	return t.next.RoundTrip(out)
}

// parseBaseURL accepts an absolute http(s) URL for an endpoint override.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base URL must be an absolute http(s) URL, got %q", raw)
	}
	return u, nil
}

// newEndpointClient returns an HTTP client that redirects provider calls to baseURL.
func newEndpointClient(baseURL, apiKey string) (*http.Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: &endpointTransport{
		base:   u,
		apiKey: apiKey,
		next:   http.DefaultTransport,
	}}, nil
}
