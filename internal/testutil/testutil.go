// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"carsync/internal/cache"
	"carsync/internal/config"
	"carsync/internal/models"
	"carsync/internal/router"
)

// Origin is the page origin used by test routers.
const Origin = "http://localhost:3000"

// NewActiveRouter builds a router over an in-memory registry with the
// default manifest and an empty precache list, then installs and activates
// it.
func NewActiveRouter(t testing.TB, fetcher router.Fetcher, registry *cache.Registry, clients router.Clients) *router.Router {
	t.Helper()

	cfg := &config.Config{
		OriginURL:    Origin,
		CachePrefix:  "carscraping",
		CacheVersion: "1.0.0",
	}
	m := config.DefaultManifest()
	m.Precache = nil

	rc, err := router.ConfigFrom(cfg, m)
	if err != nil {
		t.Fatalf("router config: %v", err)
	}
	r, err := router.New(rc, fetcher, registry, clients)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx := context.Background()
	if err := r.Install(ctx); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := r.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return r
}

// FakeFetcher serves canned responses keyed by absolute URL. Unknown URLs
// answer 404; offline mode and per-URL failures return router.ErrNetwork.
type FakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*router.Response
	failing   map[string]bool
	offline   bool
	calls     map[string]int
}

// NewFakeFetcher creates an empty fake fetcher.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		responses: make(map[string]*router.Response),
		failing:   make(map[string]bool),
		calls:     make(map[string]int),
	}
}

// Respond registers the response returned for url.
func (f *FakeFetcher) Respond(url string, status int, contentType, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &router.Response{
		Status:     status,
		StatusText: http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       []byte(body),
	}
}

// RespondWith registers a full response for url.
func (f *FakeFetcher) RespondWith(url string, resp *router.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = resp
}

// Fail makes fetches of url fail with a network error.
func (f *FakeFetcher) Fail(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[url] = true
}

// SetOffline makes every fetch fail with a network error.
func (f *FakeFetcher) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// Calls returns how many times url was fetched.
func (f *FakeFetcher) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// TotalCalls returns the number of fetches made.
func (f *FakeFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Fetch implements router.Fetcher.
func (f *FakeFetcher) Fetch(_ context.Context, req *router.Request) (*router.Response, error) {
	url := req.URL.String()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++

	if f.offline || f.failing[url] {
		return nil, fmt.Errorf("%w: fake offline", router.ErrNetwork)
	}
	if resp, ok := f.responses[url]; ok {
		return resp.Clone(), nil
	}
	return &router.Response{
		Status:     http.StatusNotFound,
		StatusText: http.StatusText(http.StatusNotFound),
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte("not found"),
	}, nil
}

// FakeClients records messages sent to pages.
type FakeClients struct {
	mu       sync.Mutex
	messages []models.ClientMessage
	focusURL map[string]bool
	focused  []string
}

// NewFakeClients creates a recorder. Pages showing any of urls accept focus.
func NewFakeClients(urls ...string) *FakeClients {
	c := &FakeClients{focusURL: make(map[string]bool)}
	for _, u := range urls {
		c.focusURL[u] = true
	}
	return c
}

// Broadcast implements router.Clients.
func (c *FakeClients) Broadcast(msg models.ClientMessage) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return 1
}

// Focus implements router.Clients.
func (c *FakeClients) Focus(url string, _ int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.focusURL[url] {
		return false
	}
	c.focused = append(c.focused, url)
	return true
}

// Messages returns a copy of the recorded broadcasts.
func (c *FakeClients) Messages() []models.ClientMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ClientMessage(nil), c.messages...)
}

// Focused returns the URLs that were focused.
func (c *FakeClients) Focused() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.focused...)
}
