package cache

import "errors"

// Cache error sentinels.
var (
	ErrStoreNotFound = errors.New("cache store not found")
	ErrBackend       = errors.New("cache backend failure")
	ErrCorruptEntry  = errors.New("cache entry could not be decoded")
)
