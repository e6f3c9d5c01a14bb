package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"carsync/internal/cache"
)

var (
	// ErrNetwork marks a fetch that produced no HTTP response at all.
	ErrNetwork = errors.New("network request failed")
	// ErrHostNotAllowed marks a cross-origin fetch to a host outside the
	// precache list.
	ErrHostNotAllowed = errors.New("cross-origin host not allowed")
)

// maxBodySize caps how much of an upstream body is buffered.
const maxBodySize = 32 << 20

// Request is an intercepted page request. URL is always absolute.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
}

// Accept returns the Accept header.
func (r *Request) Accept() string {
	return r.Header.Get("Accept")
}

// CacheKey is the identity the response is stored under.
func (r *Request) CacheKey() string {
	return cache.RequestKey(r.Method, r.URL.String())
}

// Response is a fully buffered response.
type Response struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	out := *r
	out.Header = r.Header.Clone()
	out.Body = append([]byte(nil), r.Body...)
	return &out
}

func (r *Response) toEntry(now time.Time) *cache.Entry {
	c := r.Clone()
	return &cache.Entry{
		Status:     c.Status,
		StatusText: c.StatusText,
		Header:     c.Header,
		Body:       c.Body,
		StoredAt:   now,
	}
}

func responseFromEntry(e *cache.Entry) *Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &Response{
		Status:     e.Status,
		StatusText: e.StatusText,
		Header:     h,
		Body:       append([]byte(nil), e.Body...),
	}
}

// Fetcher performs the network leg of a request. Any HTTP response,
// whatever its status, is a successful fetch; an error means the network
// could not be reached.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// HTTPFetcher sends same-origin requests to the upstream server and
// cross-origin requests straight to their host, when that host is allowed.
type HTTPFetcher struct {
	client   *http.Client
	origin   *url.URL
	upstream *url.URL
	allowed  map[string]bool
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
// crossOrigin lists the only foreign hosts it will contact.
func NewHTTPFetcher(origin, upstream *url.URL, timeout time.Duration, crossOrigin []string) *HTTPFetcher {
	allowed := make(map[string]bool, len(crossOrigin))
	for _, h := range crossOrigin {
		allowed[strings.ToLower(h)] = true
	}
	return &HTTPFetcher{
		allowed:  allowed,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		origin:   origin,
		upstream: upstream,
	}
}

// Fetch performs the request.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if !sameOrigin(req.URL, f.origin) && !f.allowed[strings.ToLower(req.URL.Host)] {
		return nil, fmt.Errorf("%w: %w: %q", ErrNetwork, ErrHostNotAllowed, req.URL.Host)
	}
	target := f.resolve(req.URL)

	hreq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	for k, vals := range req.Header {
		// The transport negotiates compression itself and hands back a
		// decoded body; cache keys do not vary by encoding.
		if isHopByHop(k) || strings.EqualFold(k, "Accept-Encoding") {
			continue
		}
		for _, v := range vals {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("User-Agent", "carsync/1.0")

	resp, err := f.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: response body exceeds %s", ErrNetwork, humanize.IBytes(maxBodySize))
	}

	header := http.Header{}
	for k, vals := range resp.Header {
		if isHopByHop(k) || strings.EqualFold(k, "Content-Length") {
			continue
		}
		header[k] = append([]string(nil), vals...)
	}

	return &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     header,
		Body:       body,
	}, nil
}

// CrossOriginHosts returns the foreign hosts named in the precache list.
func CrossOriginHosts(cfg Config) []string {
	var hosts []string
	for _, raw := range cfg.Precache {
		u, err := cfg.Origin.Parse(raw)
		if err != nil || sameOrigin(u, cfg.Origin) || slices.Contains(hosts, u.Host) {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

// resolve maps an origin URL onto the upstream server.
func (f *HTTPFetcher) resolve(u *url.URL) *url.URL {
	out := *u
	if !sameOrigin(u, f.origin) {
		return &out
	}
	out.Scheme = f.upstream.Scheme
	out.Host = f.upstream.Host
	out.Path = strings.TrimSuffix(f.upstream.Path, "/") + u.Path
	out.RawPath = ""
	return &out
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

func isHopByHop(header string) bool {
	switch http.CanonicalHeaderKey(header) {
	case "Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Host":
		return true
	}
	return false
}
