// Package cache holds small in-process caches used by long-running
// processes.
package cache

// Cache is a keyed store with bounded size and expiry.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}
