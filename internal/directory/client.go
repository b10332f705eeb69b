package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vpnswap/internal/model"
	"vpnswap/internal/netbind"
)

const maxBodyBytes = 4 << 20

// Fetcher queries the endpoint directory provider.
type Fetcher struct {
	http *http.Client
}

// NewFetcher creates a fetcher whose connections leave through wanIface, so
// the query works while the tunnel is down. An empty wanIface uses the default route.
func NewFetcher(wanIface string, timeout time.Duration) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = netbind.Dialer(wanIface, timeout).DialContext
	return &Fetcher{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// NewFetcherWithClient is used by tests to point at an httptest server.
func NewFetcherWithClient(c *http.Client) *Fetcher {
	return &Fetcher{http: c}
}

// Fetch returns the provider's candidates in the order it listed them.
// Transport failures, non-2xx responses and unparseable bodies all wrap model.ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, filterURL string) ([]model.Endpoint, error) {
	if filterURL == "" {
		return nil, fmt.Errorf("%w: directory url is empty", model.ErrFetch)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, filterURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	res, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFetch, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", model.ErrFetch, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return nil, fmt.Errorf("%w: request failed: %s: %s", model.ErrFetch, res.Status, msg)
		}
		return nil, fmt.Errorf("%w: request failed: %s", model.ErrFetch, res.Status)
	}
	return Parse(body)
}
