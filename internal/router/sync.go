package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
)

// SyncTagCars is the background sync tag that refreshes car analytics.
const SyncTagCars = "background-sync-cars"

const analyticsPath = "/api/analytics/"

// Sync runs a background sync for tag. Unknown tags are ignored.
func (r *Router) Sync(ctx context.Context, tag string) error {
	if tag != SyncTagCars {
		slog.Debug("ignoring background sync tag", "tag", tag)
		return nil
	}

	log.Println("Worker: background sync for car data")
	if err := r.refresh(ctx, analyticsPath); err != nil {
		log.Printf("Worker: background sync failed: %v", err)
		return err
	}
	return nil
}

// Refresh re-fetches every refresh endpoint into the data store. It returns
// the joined errors of endpoints that could not be reached.
func (r *Router) Refresh(ctx context.Context) error {
	var errs []error
	for _, endpoint := range r.cfg.RefreshEndpoints {
		if err := r.refresh(ctx, endpoint); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// refresh fetches endpoint and stores it when the upstream answers 200.
func (r *Router) refresh(ctx context.Context, endpoint string) error {
	req, err := r.NewRequest(endpoint, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}
	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", endpoint, err)
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("refresh %s: unexpected status %d", endpoint, resp.Status)
	}
	r.put(ctx, r.cfg.DataName, req.CacheKey(), resp)
	r.notify(endpoint)
	return nil
}
