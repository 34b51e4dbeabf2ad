package cache

import "time"

// memoryCleanup is how often expired OCR text is evicted from memory
const memoryCleanup = 10 * time.Minute

// LayeredCache keeps OCR text on disk across runs and in memory for the
// current process. A rerun of a batch finds every document on disk, so the OCR
// provider is never billed twice for the same bytes. A disk hit is copied into
// memory because the same document is usually looked up again within the run
// (a retried batch entry, a duplicate file, a repeated API request), and
// decoding the JSON entry each time is wasted work.
type LayeredCache struct {
	memory    Cache
	disk      Cache
	memoryTTL time.Duration
}

// NewLayeredCache creates a cache persisting to diskDir. Entries live
// memoryTTL in memory and diskTTL on disk.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:    NewMemoryCache(memoryTTL, memoryCleanup),
		disk:      NewDiskCache(diskDir, diskTTL),
		memoryTTL: memoryTTL,
	}
}

// Get returns the OCR text for key, promoting a disk hit into memory
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if text, found := c.memory.Get(key); found {
		return text, true
	}

	text, found := c.disk.Get(key)
	if !found {
		return nil, false
	}
	_ = c.memory.Set(key, text, 0)
	return text, true
}

// Set persists text to disk and keeps it in memory for at most the memory
// TTL. The memory copy is kept even when the disk write fails, so the current
// run still avoids a second OCR call; the disk error is returned.
func (c *LayeredCache) Set(key string, text []byte, ttl time.Duration) error {
	diskErr := c.disk.Set(key, text, ttl)

	memTTL := ttl
	if c.memoryTTL > 0 && (memTTL == 0 || memTTL > c.memoryTTL) {
		memTTL = c.memoryTTL
	}
	_ = c.memory.Set(key, text, memTTL)
	return diskErr
}

// Delete removes key from both layers
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
