package jobs

import (
	"context"
	"log"
	"time"
)

// Syncer runs a background sync for a tag.
type Syncer interface {
	Sync(ctx context.Context, tag string) error
}

// SyncScheduler fires a background sync on a fixed interval, standing in
// for the periodic sync registration a browser would make.
type SyncScheduler struct {
	syncer   Syncer
	tag      string
	interval time.Duration
}

// NewSyncScheduler creates a scheduler for tag.
func NewSyncScheduler(syncer Syncer, tag string, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		syncer:   syncer,
		tag:      tag,
		interval: interval,
	}
}

// Start begins the background sync loop.
func (s *SyncScheduler) Start(ctx context.Context) {
	log.Printf("Sync scheduler started (tag: %s, interval: %v)", s.tag, s.interval)

	// Run immediately on start
	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sync scheduler stopped")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *SyncScheduler) run(ctx context.Context) {
	if err := s.syncer.Sync(ctx, s.tag); err != nil {
		log.Printf("Sync scheduler: sync %s failed: %v", s.tag, err)
	}
}
