package imagecache

import (
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP with image.Decode
)

// Defaults for a cache built without options.
const (
	DefaultMaxItems      = 64
	DefaultMaxBytes      = 512 << 20
	DefaultSweepInterval = 2 * time.Minute
)

// DecodeFunc decodes an image from its raw bytes.
type DecodeFunc func(r io.Reader) (image.Image, error)

// Option configures a Cache.
type Option func(*Cache)

// WithMaxItems bounds the number of cached buffers. Inserting past the bound
// evicts the least recently used entry.
func WithMaxItems(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxItems = n
		}
	}
}

// WithMaxBytes sets the byte budget enforced by [Cache.Sweep].
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithSweepInterval sets how often [Cache.Start] runs the size sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithLogger sets the logger used for decode failures and evictions.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDecoder replaces the image decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(c *Cache) {
		if fn != nil {
			c.decode = fn
		}
	}
}

// WithFilter sets the resampling filter used when resizing.
func WithFilter(f imaging.ResampleFilter) Option {
	return func(c *Cache) { c.filter = f }
}

// WithClock overrides time.Now, for tests that need stable access times.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// defaultDecode honours EXIF orientation so portrait phone shots are not
// tiled sideways.
func defaultDecode(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}
