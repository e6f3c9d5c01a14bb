package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(body string) *Entry {
	return &Entry{
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"application/json"}},
		Body:     []byte(body),
		StoredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStorePutMatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryBackend())

	s, err := reg.Open(ctx, "data-v1")
	require.NoError(t, err)

	key := RequestKey(http.MethodGet, "http://localhost:3000/api/cars/")
	miss, err := s.Match(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, s.Put(ctx, key, newEntry(`[1]`)))
	require.NoError(t, s.Put(ctx, key, newEntry(`[2]`)))

	got, err := s.Match(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `[2]`, string(got.Body), "last writer wins")
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistryMatchSearchesAllStores(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryBackend())

	static, err := reg.Open(ctx, "static-v1")
	require.NoError(t, err)
	data, err := reg.Open(ctx, "data-v1")
	require.NoError(t, err)

	require.NoError(t, static.Put(ctx, "GET /a", newEntry("static")))
	require.NoError(t, data.Put(ctx, "GET /b", newEntry("data")))

	a, err := reg.Match(ctx, "GET /a")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "static", string(a.Body))

	b, err := reg.Match(ctx, "GET /b")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "data", string(b.Body))

	c, err := reg.Match(ctx, "GET /c")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRegistryDeleteRemovesEntries(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	reg := NewRegistry(backend)

	old, err := reg.Open(ctx, "static-v0")
	require.NoError(t, err)
	require.NoError(t, old.Put(ctx, "GET /x", newEntry("x")))
	require.NoError(t, old.Put(ctx, "GET /y", newEntry("y")))

	_, err = reg.Open(ctx, "static-v1")
	require.NoError(t, err)

	deleted, err := reg.Delete(ctx, "static-v0")
	require.NoError(t, err)
	assert.True(t, deleted)

	names, err := reg.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"static-v1"}, names)

	hit, err := reg.Match(ctx, "GET /x")
	require.NoError(t, err)
	assert.Nil(t, hit)

	again, err := reg.Delete(ctx, "static-v0")
	require.NoError(t, err)
	assert.False(t, again)

	for _, k := range []string{"GET /x", "GET /y"} {
		raw, err := backend.Get(entryKey("static-v0", k))
		require.NoError(t, err)
		assert.Nil(t, raw, k)
	}
	keys, err := backend.IndexMembers(ctx, storeIndexKey("static-v0"))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStorePutAfterClearRecreatesStore(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryBackend())

	s, err := reg.Open(ctx, "data-v1")
	require.NoError(t, err)
	require.NoError(t, reg.Clear(ctx))

	_, err = reg.Lookup(ctx, "data-v1")
	assert.ErrorIs(t, err, ErrStoreNotFound)

	require.NoError(t, s.Put(ctx, "GET /api/", newEntry("{}")))
	_, err = reg.Lookup(ctx, "data-v1")
	assert.NoError(t, err)
}

func TestSharedBackendConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	first := NewRegistry(backend)
	second := NewRegistry(backend)

	const writes = 40
	var wg sync.WaitGroup
	for i := range writes {
		reg := first
		if i%2 == 1 {
			reg = second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := reg.Open(ctx, "data-v1")
			if err != nil {
				t.Error(err)
				return
			}
			if err := s.Put(ctx, fmt.Sprintf("GET /api/cars/%d", i), newEntry("{}")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	s, err := first.Lookup(ctx, "data-v1")
	require.NoError(t, err)
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, writes, n)

	names, err := second.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"data-v1"}, names)

	deleted, err := second.Delete(ctx, "data-v1")
	require.NoError(t, err)
	require.True(t, deleted)
	for i := range writes {
		raw, err := backend.Get(entryKey("data-v1", fmt.Sprintf("GET /api/cars/%d", i)))
		require.NoError(t, err)
		assert.Nil(t, raw)
	}
}

type failingBackend struct{ *MemoryBackend }

func (failingBackend) IndexMembers(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestRegistryBackendFailure(t *testing.T) {
	reg := NewRegistry(failingBackend{NewMemoryBackend()})
	_, err := reg.Names(context.Background())
	assert.ErrorIs(t, err, ErrBackend)
}

func TestRegistryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reg := NewRegistry(NewMemoryBackend())
	_, err := reg.Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryLookupDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(NewMemoryBackend())

	_, err := reg.Lookup(ctx, "data-v1")
	assert.True(t, errors.Is(err, ErrStoreNotFound))

	names, err := reg.Names(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = reg.Open(ctx, "data-v1")
	require.NoError(t, err)
	s, err := reg.Lookup(ctx, "data-v1")
	require.NoError(t, err)
	assert.Equal(t, "data-v1", s.Name())
}
