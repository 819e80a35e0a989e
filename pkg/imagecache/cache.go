// Package imagecache holds decoded, resized source pictures keyed by content.
//
// # Keys
//
// A key is derived from the file's absolute path, a SHA-256 digest of its
// bytes, its byte length and the requested size (see [Key]). Editing a file
// in place therefore invalidates its entries even though the path is reused.
//
// # Eviction
//
// Two independent policies apply:
//
//   - On a miss, the decoded buffer is inserted and, if the item count now
//     exceeds the configured maximum, the single least recently used entry
//     is evicted.
//   - [Cache.Sweep], run periodically by [Cache.Start], orders entries by
//     descending buffer size and then by ascending last access, and removes
//     them in that order until the total footprint fits the byte budget.
//
// The sweep deliberately prefers large, stale buffers over pure recency.
//
// # Failures
//
// A file that cannot be read or decoded is logged once and remembered as
// unavailable for the life of the cache; [Cache.GetOrLoad] then returns a
// nil handle and a nil error for it. Callers treat that as "skip this cell".
package imagecache

import (
	"bytes"
	"cmp"
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/observability"
)

// Handle is a decoded buffer owned by the cache. Its fields never change after
// insertion; eviction only drops the cache's reference, so a cell still
// holding Image keeps it alive.
type Handle struct {
	Key   string
	Path  string
	Image *image.NRGBA
	Size  int

	lastAccess atomic.Int64
}

// LastAccess returns when the handle was last inserted or hit.
func (h *Handle) LastAccess() time.Time {
	return time.Unix(0, h.lastAccess.Load())
}

func (h *Handle) touch(t time.Time) { h.lastAccess.Store(t.UnixNano()) }

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Items       int   `json:"items"`
	Bytes       int64 `json:"bytes"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Sweeps      int64 `json:"sweeps"`
	Unavailable int   `json:"unavailable"`
}

// Cache is a content-addressed, bounded store of decoded images.
// It is safe for concurrent use.
type Cache struct {
	maxItems      int
	maxBytes      int64
	sweepInterval time.Duration
	decode        DecodeFunc
	filter        imaging.ResampleFilter
	logger        *log.Logger
	now           func() time.Time

	mu          sync.Mutex
	items       *lru.Cache[string, *Handle]
	bytes       int64
	unavailable map[string]error
	inflight    map[string]*call
	stats       Stats
	closed      bool
}

// call is an in-progress decode shared by concurrent loads of the same key.
type call struct {
	done   chan struct{}
	handle *Handle
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxItems:      DefaultMaxItems,
		maxBytes:      DefaultMaxBytes,
		sweepInterval: DefaultSweepInterval,
		decode:        defaultDecode,
		filter:        imaging.Lanczos,
		logger:        log.New(io.Discard),
		now:           time.Now,
		unavailable:   make(map[string]error),
		inflight:      make(map[string]*call),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Capacity is one above the item budget; insert evicts explicitly so the
	// LRU never drops an entry behind our byte accounting.
	items, _ := lru.New[string, *Handle](c.maxItems + 1)
	c.items = items
	return c
}

// GetOrLoad returns the buffer for path resized to size, decoding it on a
// miss. A nil handle with a nil error means the image is unavailable.
// A non-nil error is returned only for cancellation or a closed cache.
func (c *Cache) GetOrLoad(ctx context.Context, path string, size image.Point) (*Handle, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidDimensions, "target size %v must be positive", size)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve %s", path)
	}

	if c.Unavailable(abs) {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		c.markUnavailable(abs, errors.Wrap(errors.ErrCodeDecode, err, "read %s", abs))
		return nil, nil
	}
	key := Key(abs, data, size)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New(errors.ErrCodeClosed, "image cache is closed")
	}
	if h, ok := c.items.Get(key); ok {
		h.touch(c.now())
		c.stats.Hits++
		c.mu.Unlock()
		observability.Cache().OnCacheHit(ctx, abs)
		return h, nil
	}
	if inflight, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.handle, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	pending := &call{done: make(chan struct{})}
	c.inflight[key] = pending
	c.stats.Misses++
	c.mu.Unlock()

	observability.Cache().OnCacheMiss(ctx, abs)
	h := c.load(abs, key, data, size)

	c.mu.Lock()
	delete(c.inflight, key)
	if h != nil && !c.closed {
		c.insert(ctx, h)
	}
	c.mu.Unlock()

	pending.handle = h
	close(pending.done)
	return h, nil
}

// load decodes and resizes outside the lock.
func (c *Cache) load(abs, key string, data []byte, size image.Point) *Handle {
	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		c.markUnavailable(abs, errors.Wrap(errors.ErrCodeDecode, err, "decode %s", abs))
		return nil
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		c.markUnavailable(abs, errors.New(errors.ErrCodeDecode, "%s has empty bounds", abs))
		return nil
	}

	out := fit(img, size, c.filter)
	h := &Handle{
		Key:   key,
		Path:  abs,
		Image: out,
		Size:  len(out.Pix),
	}
	h.touch(c.now())
	return h
}

// fit center-crops non-square sources to a square and then fills size.
// For square targets the fill is a plain resize; for other targets it crops
// the square around its center instead of stretching it.
func fit(img image.Image, size image.Point, filter imaging.ResampleFilter) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		side := min(b.Dx(), b.Dy())
		img = imaging.CropCenter(img, side, side)
	}
	return imaging.Fill(img, size.X, size.Y, imaging.Center, filter)
}

// insert adds h and evicts the least recently used entry when over budget.
// Callers hold c.mu.
func (c *Cache) insert(ctx context.Context, h *Handle) {
	if old, ok := c.items.Peek(h.Key); ok {
		c.bytes -= int64(old.Size)
	}
	c.items.Add(h.Key, h)
	c.bytes += int64(h.Size)

	if c.items.Len() > c.maxItems {
		if key, victim, ok := c.items.RemoveOldest(); ok {
			c.release(ctx, "lru", victim)
			c.logger.Debug("evicted image", "policy", "lru", "key", key[:12], "bytes", victim.Size)
		}
	}
}

// release drops the cache's reference to a buffer. Callers hold c.mu.
func (c *Cache) release(ctx context.Context, policy string, h *Handle) {
	c.bytes -= int64(h.Size)
	c.stats.Evictions++
	observability.Cache().OnCacheEvict(ctx, policy, h.Size)
}

// Sweep removes entries ordered by descending size, then ascending last
// access, until the cache fits its byte budget. It returns the number of
// entries removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Sweeps++
	if c.bytes <= c.maxBytes {
		return 0
	}

	handles := make([]*Handle, 0, c.items.Len())
	for _, key := range c.items.Keys() {
		if h, ok := c.items.Peek(key); ok {
			handles = append(handles, h)
		}
	}
	slices.SortStableFunc(handles, func(a, b *Handle) int {
		if n := cmp.Compare(b.Size, a.Size); n != 0 {
			return n
		}
		return a.LastAccess().Compare(b.LastAccess())
	})

	removed := 0
	for _, h := range handles {
		if c.bytes <= c.maxBytes {
			break
		}
		c.items.Remove(h.Key)
		c.release(context.Background(), "sweep", h)
		removed++
	}
	if removed > 0 {
		c.logger.Debug("swept image cache", "removed", removed, "bytes", c.bytes, "budget", c.maxBytes)
	}
	return removed
}

// Start runs [Cache.Sweep] every sweep interval until ctx is done.
func (c *Cache) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Unavailable reports whether path previously failed to load.
func (c *Cache) Unavailable(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, bad := c.unavailable[abs]
	return bad
}

func (c *Cache) markUnavailable(abs string, err error) {
	c.mu.Lock()
	_, seen := c.unavailable[abs]
	c.unavailable[abs] = err
	c.mu.Unlock()
	if !seen {
		c.logger.Warn("image unavailable", "path", abs, "err", err)
	}
}

// Len returns the number of cached buffers.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Items = c.items.Len()
	s.Bytes = c.bytes
	s.Unavailable = len(c.unavailable)
	return s
}

// Close releases every buffer. Later loads fail with a CLOSED error.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.items.Purge()
	c.bytes = 0
	return nil
}
