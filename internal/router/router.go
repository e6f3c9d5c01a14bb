// Package router intercepts dashboard GET requests and answers them from the
// network, the cache stores or a synthesized offline response, depending on
// the request class.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"carsync/internal/cache"
	"carsync/internal/metrics"
	"carsync/internal/models"
)

// Clients receives worker-to-page messages.
type Clients interface {
	Broadcast(msg models.ClientMessage) int
	Focus(url string, timestamp int64) bool
}

// Config describes the stores and routing rules of one worker version.
type Config struct {
	Origin     *url.URL
	BaseName   string
	StaticName string
	DataName   string
	Title      string

	Precache         []string
	RefreshEndpoints []string
	Rules            Rules
}

// Router is the cache-aware request router. All response paths end in a
// well-formed Response; network and store failures degrade to fallbacks.
type Router struct {
	cfg        Config
	classifier *Classifier
	fetcher    Fetcher
	registry   *cache.Registry
	clients    Clients
	offline    []byte
	now        func() time.Time

	mu          sync.RWMutex
	state       State
	skipWaiting bool
}

// Option customizes a Router.
type Option func(*Router)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a router. It does not touch the stores until Install.
func New(cfg Config, fetcher Fetcher, registry *cache.Registry, clients Clients, opts ...Option) (*Router, error) {
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, errors.New("router: origin URL is required")
	}
	if cfg.Title == "" {
		cfg.Title = "CarScraping"
	}
	if cfg.Rules.OriginHost == "" {
		cfg.Rules.OriginHost = cfg.Origin.Hostname()
	}

	page, err := renderOfflinePage(cfg.Title)
	if err != nil {
		return nil, err
	}

	r := &Router{
		cfg:        cfg,
		classifier: NewClassifier(cfg.Rules),
		fetcher:    fetcher,
		registry:   registry,
		clients:    clients,
		offline:    page,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewRequest builds a GET request for rawURL, resolving relative URLs
// against the origin.
func (r *Router) NewRequest(rawURL string, header http.Header) (*Request, error) {
	u, err := r.cfg.Origin.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", rawURL, err)
	}
	if header == nil {
		header = http.Header{}
	}
	return &Request{Method: http.MethodGet, URL: u, Header: header}, nil
}

// OriginRequest builds a GET request for path and rawQuery on the origin.
// The host always comes from the origin, whatever the page sent.
func (r *Router) OriginRequest(path, rawQuery string, header http.Header) *Request {
	u := *r.cfg.Origin
	u.Path = path
	u.RawPath = ""
	u.RawQuery = rawQuery
	u.Fragment = ""
	if header == nil {
		header = http.Header{}
	}
	return &Request{Method: http.MethodGet, URL: &u, Header: header}
}

// Classify exposes the router's classification.
func (r *Router) Classify(req *Request) Class {
	return r.classifier.Classify(req)
}

// Serve answers an intercepted request. Until the worker has claimed its
// clients, and for requests it does not classify, the request goes to the
// network untouched.
func (r *Router) Serve(ctx context.Context, req *Request) *Response {
	if !r.Claimed() {
		return r.passthrough(ctx, req)
	}

	switch r.classifier.Classify(req) {
	case StaticAsset:
		return r.HandleStatic(ctx, req)
	case APIData:
		return r.HandleAPI(ctx, req)
	case HTMLNavigation:
		return r.HandleHTML(ctx, req)
	default:
		return r.passthrough(ctx, req)
	}
}

// HandleStatic serves cache-first.
func (r *Router) HandleStatic(ctx context.Context, req *Request) *Response {
	key := req.CacheKey()
	if e := r.match(ctx, key); e != nil {
		metrics.RecordResponse(StaticAsset.String(), "cache")
		return responseFromEntry(e)
	}

	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		slog.Warn("static resource fetch failed", "url", req.URL.String(), "error", err)
		if e := r.match(ctx, key); e != nil {
			metrics.RecordResponse(StaticAsset.String(), "cache")
			return responseFromEntry(e)
		}
		metrics.RecordResponse(StaticAsset.String(), "offline")
		return offlineStaticResponse()
	}

	if resp.Status == http.StatusOK {
		r.put(ctx, r.cfg.StaticName, key, resp)
	}
	metrics.RecordResponse(StaticAsset.String(), "network")
	return resp
}

// HandleAPI serves network-first, falling back to the data store and then
// to an offline payload shaped for the endpoint family.
func (r *Router) HandleAPI(ctx context.Context, req *Request) *Response {
	key := req.CacheKey()

	resp, err := r.fetcher.Fetch(ctx, req)
	if err == nil {
		if resp.Status == http.StatusOK {
			r.put(ctx, r.cfg.DataName, key, resp)
			r.notify(req.URL.String())
		}
		metrics.RecordResponse(APIData.String(), "network")
		return resp
	}

	slog.Info("network failed, trying cache", "url", req.URL.String(), "error", err)

	if e := r.match(ctx, key); e != nil {
		out := responseFromEntry(e)
		cacheDate := e.Header.Get("Date")
		if cacheDate == "" {
			cacheDate = r.now().UTC().Format(time.RFC3339)
		}
		out.Header.Set(HeaderServedBy, ServedByCache)
		out.Header.Set(HeaderCacheDate, cacheDate)
		metrics.RecordResponse(APIData.String(), "cache")
		return out
	}

	metrics.RecordResponse(APIData.String(), "offline")
	return offlineAPIResponse(req.URL.Path)
}

// HandleHTML serves network-first with the cached root document, then the
// offline page, as fallbacks.
func (r *Router) HandleHTML(ctx context.Context, req *Request) *Response {
	resp, err := r.fetcher.Fetch(ctx, req)
	if err == nil {
		metrics.RecordResponse(HTMLNavigation.String(), "network")
		return resp
	}

	slog.Info("serving offline page", "url", req.URL.String(), "error", err)

	root := r.cfg.Origin.ResolveReference(&url.URL{Path: "/"})
	if e := r.match(ctx, cache.RequestKey(http.MethodGet, root.String())); e != nil {
		metrics.RecordResponse(HTMLNavigation.String(), "cache")
		return responseFromEntry(e)
	}

	metrics.RecordResponse(HTMLNavigation.String(), "offline")
	return offlinePageResponse(r.offline)
}

func (r *Router) passthrough(ctx context.Context, req *Request) *Response {
	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		slog.Warn("passthrough fetch failed", "url", req.URL.String(), "error", err)
		metrics.RecordResponse(Unhandled.String(), "error")
		return &Response{
			Status:     http.StatusBadGateway,
			StatusText: http.StatusText(http.StatusBadGateway),
			Header:     http.Header{"Content-Type": []string{"text/plain"}},
			Body:       []byte("Upstream unavailable"),
		}
	}
	metrics.RecordResponse(Unhandled.String(), "network")
	return resp
}

// match searches every store. Store failures count as a miss.
func (r *Router) match(ctx context.Context, key string) *cache.Entry {
	e, err := r.registry.Match(ctx, key)
	if err != nil {
		slog.Error("cache lookup failed", "key", key, "error", err)
		return nil
	}
	return e
}

// put writes a clone of resp. Store failures are logged and otherwise
// ignored; the live response is still returned.
func (r *Router) put(ctx context.Context, storeName, key string, resp *Response) {
	store, err := r.registry.Open(ctx, storeName)
	if err != nil {
		slog.Error("failed to open cache store", "store", storeName, "error", err)
		return
	}
	if err := store.Put(ctx, key, resp.toEntry(r.now())); err != nil {
		slog.Error("failed to write cache entry", "store", storeName, "key", key, "error", err)
	}
}

func (r *Router) notify(url string) {
	if r.clients == nil {
		return
	}
	r.clients.Broadcast(models.ClientMessage{
		Type:      models.ClientDataUpdate,
		URL:       url,
		Timestamp: r.now().UnixMilli(),
	})
}
