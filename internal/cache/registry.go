package cache

import (
	"context"
	"fmt"
	"slices"
)

const (
	keyPrefix     = "carsync:"
	registryIndex = keyPrefix + "stores"
)

// Registry manages the named stores kept in a single backend. Store names and
// per-store key lists live in backend indexes, so stores can be listed and
// purged without scanning the backend.
type Registry struct {
	backend Backend
}

// NewRegistry creates a registry over the given backend.
func NewRegistry(backend Backend) *Registry {
	return &Registry{backend: backend}
}

// Open returns the named store, creating it if needed.
func (r *Registry) Open(ctx context.Context, name string) (*Store, error) {
	if err := r.indexAdd(ctx, registryIndex, name); err != nil {
		return nil, err
	}
	return &Store{name: name, reg: r}, nil
}

// Lookup returns an existing store without creating it. It returns
// ErrStoreNotFound when no store has the name.
func (r *Registry) Lookup(ctx context.Context, name string) (*Store, error) {
	names, err := r.Names(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, name) {
		return nil, fmt.Errorf("%w: %q", ErrStoreNotFound, name)
	}
	return &Store{name: name, reg: r}, nil
}

// Names lists every store in creation order.
func (r *Registry) Names(ctx context.Context) ([]string, error) {
	return r.indexMembers(ctx, registryIndex)
}

// Delete removes a store and all of its entries. It reports whether the
// store existed.
func (r *Registry) Delete(ctx context.Context, name string) (bool, error) {
	names, err := r.Names(ctx)
	if err != nil {
		return false, err
	}
	if !slices.Contains(names, name) {
		return false, nil
	}

	keys, err := r.indexMembers(ctx, storeIndexKey(name))
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if err := r.backend.Delete(entryKey(name, k)); err != nil {
			return false, fmt.Errorf("%w: delete entry %q: %v", ErrBackend, k, err)
		}
	}
	if err := r.backend.Delete(storeIndexKey(name)); err != nil {
		return false, fmt.Errorf("%w: delete index of %q: %v", ErrBackend, name, err)
	}
	if err := r.backend.IndexRemove(ctx, registryIndex, name); err != nil {
		return false, fmt.Errorf("%w: drop store %q: %v", ErrBackend, name, err)
	}
	return true, nil
}

// Clear deletes every store.
func (r *Registry) Clear(ctx context.Context) error {
	names, err := r.Names(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := r.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Match looks the key up in every store, in store creation order, and
// returns the first hit. A miss returns nil, nil.
func (r *Registry) Match(ctx context.Context, key string) (*Entry, error) {
	names, err := r.Names(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		s := &Store{name: name, reg: r}
		e, err := s.Match(ctx, key)
		if err != nil {
			return nil, err
		}
		if e != nil {
			return e, nil
		}
	}
	return nil, nil
}

// Close releases the backend.
func (r *Registry) Close() error {
	return r.backend.Close()
}

func (r *Registry) indexAdd(ctx context.Context, key, member string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.backend.IndexAdd(ctx, key, member); err != nil {
		return fmt.Errorf("%w: add to %q: %v", ErrBackend, key, err)
	}
	return nil
}

func (r *Registry) indexMembers(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := r.backend.IndexMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrBackend, key, err)
	}
	return out, nil
}

func storeIndexKey(store string) string {
	return keyPrefix + "store:" + store + ":keys"
}

func entryKey(store, key string) string {
	return keyPrefix + "store:" + store + ":entry:" + key
}
