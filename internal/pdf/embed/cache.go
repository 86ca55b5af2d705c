package embed

import (
	"container/list"
	"crypto/sha256"
	"sync"
)

// defaultImageCacheSize is the number of decoded images an engine keeps
const defaultImageCacheSize = 16

// ImageCache is a thread-safe LRU of decoded images keyed by a digest of
// their data URL. Decoding failures are never cached.
type ImageCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	items    map[[sha256.Size]byte]*list.Element
	hits     int64
	misses   int64
}

type cachedImage struct {
	key [sha256.Size]byte
	img *Image
}

// CacheStats reports cache usage
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
}

// NewImageCache creates a cache holding up to capacity images. A
// non-positive capacity selects the default.
func NewImageCache(capacity int) *ImageCache {
	if capacity <= 0 {
		capacity = defaultImageCacheSize
	}
	return &ImageCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[[sha256.Size]byte]*list.Element),
	}
}

// Decode returns the decoded image for dataURL, decoding it on a miss
func (c *ImageCache) Decode(dataURL string) (*Image, error) {
	key := sha256.Sum256([]byte(dataURL))

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		c.hits++
		img := el.Value.(*cachedImage).img
		c.mu.Unlock()
		return img, nil
	}
	c.misses++
	c.mu.Unlock()

	img, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	c.put(key, img)
	return img, nil
}

func (c *ImageCache) put(key [sha256.Size]byte, img *Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cachedImage{key: key, img: img})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cachedImage).key)
	}
}

// Len returns the number of cached images
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every cached image and resets the counters
func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[[sha256.Size]byte]*list.Element)
	c.hits, c.misses = 0, 0
}

// Stats returns hit and miss counts
func (c *ImageCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: c.order.Len(), Capacity: c.capacity}
}
