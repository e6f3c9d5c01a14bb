package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a named key to response mapping.
type Store struct {
	name string
	reg  *Registry
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Put writes an entry, replacing any previous value for the key. A store
// deleted after it was opened is recreated on the next write.
func (s *Store) Put(ctx context.Context, key string, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry %q: %w", key, err)
	}

	if err := s.reg.indexAdd(ctx, registryIndex, s.name); err != nil {
		return err
	}
	if err := s.reg.backend.Set(entryKey(s.name, key), raw, 0); err != nil {
		return fmt.Errorf("%w: write entry %q: %v", ErrBackend, key, err)
	}
	return s.reg.indexAdd(ctx, storeIndexKey(s.name), key)
}

// Match returns the entry stored under key, or nil, nil on a miss.
func (s *Store) Match(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.reg.backend.Get(entryKey(s.name, key))
	if err != nil {
		return nil, fmt.Errorf("%w: read entry %q: %v", ErrBackend, key, err)
	}
	if raw == nil {
		return nil, nil
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorruptEntry, key, err)
	}
	return &e, nil
}

// Keys lists the stored keys in insertion order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.reg.indexMembers(ctx, storeIndexKey(s.name))
}

// Len returns the number of stored entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	keys, err := s.Keys(ctx)
	return len(keys), err
}
