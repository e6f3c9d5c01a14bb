package main

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carsync/internal/cache"
	"carsync/internal/clients"
	"carsync/internal/config"
	"carsync/internal/handlers/api"
	"carsync/internal/jobs"
	"carsync/internal/live"
	"carsync/internal/metrics"
	"carsync/internal/models"
	"carsync/internal/router"
	"carsync/internal/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	manifest, err := config.LoadManifest(cfg.ManifestFile)
	if err != nil {
		log.Fatalf("Failed to load manifest: %v", err)
	}

	// Initialize cache stores
	var backend cache.Backend
	switch cfg.CacheBackend {
	case "redis":
		backend = cache.NewRedisBackend(cfg.RedisURL)
		log.Println("Cache backend: redis")
	default:
		backend = cache.NewMemoryBackend()
		log.Println("Cache backend: memory")
	}
	registry := cache.NewRegistry(backend)
	defer registry.Close()

	metrics.Init(registry)

	hub := clients.NewHub(cfg.ClientBuffer)

	// Initialize router
	routerCfg, err := router.ConfigFrom(cfg, manifest)
	if err != nil {
		log.Fatalf("Invalid router configuration: %v", err)
	}
	origin, _ := url.Parse(cfg.OriginURL)
	upstream, _ := url.Parse(cfg.UpstreamURL)
	fetcher := router.NewHTTPFetcher(origin, upstream, cfg.FetchTimeout, router.CrossOriginHosts(routerCfg))

	rt, err := router.New(routerCfg, fetcher, registry, hub)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// Install and activate. A failed precache leaves the worker installed
	// and passing requests through; it still activates so the data store
	// serves as API fallback.
	if err := rt.Install(ctx); err != nil {
		log.Printf("Warning: install failed: %v", err)
	}
	if err := rt.Activate(ctx); err != nil {
		log.Fatalf("Failed to activate worker: %v", err)
	}

	// Live update channel
	var session api.LiveSession
	if cfg.LiveEnabled {
		ch, err := newLiveChannel(cfg, hub, rt)
		if err != nil {
			log.Fatalf("Failed to set up live updates: %v", err)
		}
		lc := ch.Config()
		log.Printf("Live updates: %s (reconnect every %v, poll every %v)", lc.URL, lc.ReconnectDelay, lc.PollInterval)
		session = ch.Session()
		go ch.Run(ctx)
	} else {
		log.Println("Live updates disabled. Set LIVE_ENABLED=true to enable.")
	}

	// Periodic background sync
	if cfg.SyncInterval > 0 {
		scheduler := jobs.NewSyncScheduler(rt, router.SyncTagCars, cfg.SyncInterval)
		go scheduler.Start(ctx)
	}

	srv := server.New(cfg)
	srv.RegisterRoutes(ctx, server.Deps{
		Router:   rt,
		Registry: registry,
		Hub:      hub,
		Live:     session,
	})

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

// newLiveChannel connects the live channel to the upstream socket. Updates
// and status changes are relayed to attached pages; polling refreshes the
// data endpoints through the router.
func newLiveChannel(cfg *config.Config, hub *clients.Hub, rt *router.Router) (*live.Channel, error) {
	socketURL := cfg.LiveURL
	if socketURL == "" {
		var err error
		socketURL, err = live.SocketURL(cfg.UpstreamURL)
		if err != nil {
			return nil, err
		}
	}

	relay := func(kind models.UpdateKind) func(json.RawMessage) {
		return func(payload json.RawMessage) {
			hub.Broadcast(models.ClientMessage{
				Type:      models.ClientLiveUpdate,
				Timestamp: time.Now().UnixMilli(),
				Update:    &models.UpdateMessage{Type: kind, Payload: payload},
			})
		}
	}

	handlers := live.Handlers{
		ScrapingProgress: relay(models.UpdateScrapingProgress),
		NewCars:          relay(models.UpdateNewCars),
		AnalyticsUpdate:  relay(models.UpdateAnalytics),
		PriceAlert:       relay(models.UpdatePriceAlert),
		Status: func(status live.Status) {
			hub.Broadcast(models.ClientMessage{
				Type:      models.ClientLiveStatus,
				Timestamp: time.Now().UnixMilli(),
				Status:    string(status),
			})
		},
	}

	log.Printf("Live updates from %s", socketURL)
	return live.New(live.Config{
		URL:            socketURL,
		ReconnectDelay: cfg.LiveReconnectDelay,
		PollInterval:   cfg.LivePollInterval,
	}, live.WebSocketDialer{Origin: cfg.OriginURL}, handlers, rt), nil
}
