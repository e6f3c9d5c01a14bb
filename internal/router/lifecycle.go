package router

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"

	"github.com/dustin/go-humanize"
)

// State is the worker lifecycle state.
type State int

// Lifecycle states.
const (
	StateNew State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	default:
		return "new"
	}
}

// State returns the current lifecycle state.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Claimed reports whether the router intercepts requests.
func (r *Router) Claimed() bool {
	return r.State() == StateActivated
}

// SkipWaitingRequested reports whether the worker asked to activate without
// waiting.
func (r *Router) SkipWaitingRequested() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skipWaiting
}

func (r *Router) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Install precaches the static resource list and opens the data store. The
// precache is all-or-nothing: if any resource fails, nothing is written and
// the worker stays installed without requesting an immediate takeover.
func (r *Router) Install(ctx context.Context) error {
	log.Println("Worker: installing...")
	r.setState(StateInstalling)

	data, err := r.registry.Open(ctx, r.cfg.DataName)
	if err != nil {
		r.setState(StateInstalled)
		return fmt.Errorf("open data store: %w", err)
	}
	log.Printf("Worker: data store %s initialized", data.Name())

	if err := r.precache(ctx); err != nil {
		log.Printf("Worker: installation failed: %v", err)
		r.setState(StateInstalled)
		return err
	}

	r.mu.Lock()
	r.state = StateInstalled
	r.skipWaiting = true
	r.mu.Unlock()
	log.Println("Worker: installation complete")
	return nil
}

func (r *Router) precache(ctx context.Context) error {
	type fetched struct {
		key  string
		resp *Response
	}
	results := make([]fetched, 0, len(r.cfg.Precache))

	for _, raw := range r.cfg.Precache {
		req, err := r.NewRequest(raw, nil)
		if err != nil {
			return err
		}
		resp, err := r.fetcher.Fetch(ctx, req)
		if err != nil {
			return fmt.Errorf("precache %s: %w", raw, err)
		}
		if resp.Status != http.StatusOK {
			return fmt.Errorf("precache %s: unexpected status %d", raw, resp.Status)
		}
		results = append(results, fetched{key: req.CacheKey(), resp: resp})
	}

	store, err := r.registry.Open(ctx, r.cfg.StaticName)
	if err != nil {
		return fmt.Errorf("open static store: %w", err)
	}
	var total uint64
	for _, f := range results {
		total += uint64(len(f.resp.Body))
	}
	log.Printf("Worker: caching %d static resources (%s)", len(results), humanize.Bytes(total))
	for _, f := range results {
		if err := store.Put(ctx, f.key, f.resp.toEntry(r.now())); err != nil {
			return fmt.Errorf("store %s: %w", f.key, err)
		}
	}
	return nil
}

// Activate purges every store that does not belong to this version and then
// claims all clients.
func (r *Router) Activate(ctx context.Context) error {
	log.Println("Worker: activating...")
	r.setState(StateActivating)

	names, err := r.registry.Names(ctx)
	if err != nil {
		r.setState(StateInstalled)
		return fmt.Errorf("list stores: %w", err)
	}

	keep := []string{r.cfg.StaticName, r.cfg.DataName, r.cfg.BaseName}
	for _, name := range names {
		if slices.Contains(keep, name) {
			continue
		}
		log.Printf("Worker: deleting old store %s", name)
		if _, err := r.registry.Delete(ctx, name); err != nil {
			r.setState(StateInstalled)
			return fmt.Errorf("delete store %s: %w", name, err)
		}
	}

	r.setState(StateActivated)
	log.Println("Worker: activation complete")
	return nil
}

// SkipWaiting requests immediate takeover. An installed worker waiting for
// activation activates right away.
func (r *Router) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	r.skipWaiting = true
	waiting := r.state == StateInstalled
	r.mu.Unlock()

	if !waiting {
		return nil
	}
	return r.Activate(ctx)
}
