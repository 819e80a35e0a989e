package canvas

import (
	"context"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/imagecache"
	"github.com/matzehuels/tilepaper/pkg/layout"
)

// Loader resolves a source path to a buffer of exactly size pixels.
// *imagecache.Cache satisfies it. A nil handle with a nil error means the
// image is unavailable.
type Loader interface {
	GetOrLoad(ctx context.Context, path string, size image.Point) (*imagecache.Handle, error)
}

// Cell is one tile of a canvas. Its pixel state is only mutated while the
// owning canvas is held by its caller.
type Cell struct {
	Index    int
	Geometry layout.Cell

	path string
	key  string
	buf  *image.NRGBA
}

// Path returns the absolute path currently displayed, or "".
func (c *Cell) Path() string { return c.path }

// Key returns the cache key of the displayed image, or "".
func (c *Cell) Key() string { return c.key }

// Cover is a loaded image ready to be blitted into a cell. It is produced
// off the canvas lock by [Cell.Prepare] and committed under it by
// [Canvas.Commit].
type Cover struct {
	Cell  int
	Path  string
	Key   string
	Rect  image.Rectangle
	Image *image.NRGBA
}

// Current reports whether path is already displayed with a live buffer.
func (c *Cell) Current(path string) bool {
	if c.buf == nil || c.path == "" {
		return false
	}
	return c.path == normalize(path)
}

// Prepare loads path at the cell's integer size for a canvas of the given
// dimensions. A nil cover with a nil error means the source is unavailable
// and the cell should be skipped this cycle.
func (c *Cell) Prepare(ctx context.Context, path string, canvasW, canvasH int, loader Loader) (*Cover, error) {
	abs := normalize(path)
	rect := c.Geometry.Rect(canvasW, canvasH)
	if rect.Empty() {
		return nil, errors.New(errors.ErrCodeInvalidDimensions, "cell %d has empty bounds %v", c.Index, rect)
	}

	h, err := loader.GetOrLoad(ctx, abs, rect.Size())
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}

	img := h.Image
	if img.Bounds().Size() != rect.Size() {
		img = imaging.Fill(img, rect.Dx(), rect.Dy(), imaging.Center, imaging.Lanczos)
	}
	return &Cover{Cell: c.Index, Path: abs, Key: h.Key, Rect: rect, Image: img}, nil
}

// SetCover loads path and blits it into the cell. It is a no-op when path is
// already displayed. On any error the cell keeps its previous image.
func (c *Cell) SetCover(ctx context.Context, path string, dst *Canvas, loader Loader) error {
	if c.Current(path) {
		return nil
	}
	cover, err := c.Prepare(ctx, path, dst.Width, dst.Height, loader)
	if err != nil {
		return err
	}
	if cover == nil {
		return errors.New(errors.ErrCodeDecode, "%s is unavailable", path)
	}
	return dst.Commit(cover)
}

// blit copies the cover into pix and records it as current.
func (c *Cell) blit(pix *image.NRGBA, cover *Cover) {
	xdraw.Draw(pix, cover.Rect, cover.Image, cover.Image.Bounds().Min, xdraw.Src)
	c.path = cover.Path
	c.key = cover.Key
	c.buf = cover.Image
}

func (c *Cell) release() {
	c.buf = nil
	c.path = ""
	c.key = ""
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
