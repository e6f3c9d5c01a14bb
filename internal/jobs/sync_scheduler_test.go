package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSyncer struct {
	mu   sync.Mutex
	tags []string
	err  error
}

func (s *recordingSyncer) Sync(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tag)
	return s.err
}

func (s *recordingSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tags)
}

func TestSyncSchedulerRunsOnStartAndInterval(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"successful syncs", nil},
		{"failing syncs keep the loop running", errors.New("upstream down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &recordingSyncer{err: tt.err}
			s := NewSyncScheduler(syncer, "background-sync-cars", 5*time.Millisecond)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				s.Start(ctx)
				close(done)
			}()

			deadline := time.After(2 * time.Second)
			for syncer.count() < 3 {
				select {
				case <-deadline:
					t.Fatalf("expected at least 3 syncs, got %d", syncer.count())
				case <-time.After(5 * time.Millisecond):
				}
			}

			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("scheduler did not stop")
			}

			syncer.mu.Lock()
			defer syncer.mu.Unlock()
			for _, tag := range syncer.tags {
				if tag != "background-sync-cars" {
					t.Errorf("unexpected tag %q", tag)
				}
			}
		})
	}
}
