// Package canvas holds the composited output buffers and their tiles.
//
// A [Canvas] owns one full-resolution pixel buffer and the [Cell]s planned
// for it by the layout package. Callers serialize mutation themselves; the
// engine does so with its refresh lock. [Canvas.Dispose] may race with a
// reader: the buffer pointer is swapped to nil first, so a concurrent
// [Canvas.Snapshot] sees nothing to draw instead of a half-released buffer.
package canvas

import (
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/layout"
)

// Output file names in the destination folder.
const (
	SingleFile     = "wallpaper.jpg"
	monitorPattern = "wallpaper_monitor_%d.jpg"
)

// MonitorFile returns the output name for the 1-based monitor ordinal n.
func MonitorFile(n int) string { return fmt.Sprintf(monitorPattern, n) }

// Target says where a canvas ends up.
type Target struct {
	// Ordinal is the 1-based monitor position, or 0 for the whole desktop.
	Ordinal int
	// Device is the OS device identity, empty when unmatched.
	Device string
	// Primary marks the canvas of the primary monitor.
	Primary bool
	// File is the output file name, relative to the destination folder.
	File string
}

// Canvas is one output image and its cells.
type Canvas struct {
	Target Target
	Width  int
	Height int
	Plan   layout.Plan

	pix     atomic.Pointer[image.NRGBA]
	cells   []*Cell
	updated map[int]time.Time
}

// New plans a rows×cols grid on a width×height canvas filled with black.
func New(width, height, rows, cols int, target Target) (*Canvas, error) {
	plan, err := layout.Compute(width, height, rows, cols)
	if err != nil {
		return nil, err
	}
	if target.File == "" {
		target.File = SingleFile
		if target.Ordinal > 0 {
			target.File = MonitorFile(target.Ordinal)
		}
	}

	c := &Canvas{
		Target:  target,
		Width:   width,
		Height:  height,
		Plan:    plan,
		cells:   make([]*Cell, len(plan.Cells)),
		updated: make(map[int]time.Time),
	}
	for i, g := range plan.Cells {
		c.cells[i] = &Cell{Index: i, Geometry: g}
	}
	c.pix.Store(imaging.New(width, height, color.Black))
	return c, nil
}

// Cells returns the canvas cells in row-major order.
func (c *Canvas) Cells() []*Cell { return c.cells }

// Len returns the number of cells.
func (c *Canvas) Len() int { return len(c.cells) }

// Commit blits a prepared cover into its cell.
func (c *Canvas) Commit(cover *Cover) error {
	pix := c.pix.Load()
	if pix == nil {
		return errors.New(errors.ErrCodeClosed, "canvas %s is disposed", c.Target.File)
	}
	if cover.Cell < 0 || cover.Cell >= len(c.cells) {
		return errors.New(errors.ErrCodeInternal, "cell %d out of range", cover.Cell)
	}
	if !cover.Rect.In(pix.Bounds()) {
		return errors.New(errors.ErrCodeInvalidDimensions, "cover %v exceeds canvas %v", cover.Rect, pix.Bounds())
	}
	c.cells[cover.Cell].blit(pix, cover)
	return nil
}

// Displayed returns the set of paths currently shown on this canvas.
func (c *Canvas) Displayed() map[string]struct{} {
	out := make(map[string]struct{}, len(c.cells))
	for _, cell := range c.cells {
		if p := cell.Path(); p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

// LastUpdated returns when cell i last changed.
func (c *Canvas) LastUpdated(i int) (time.Time, bool) {
	t, ok := c.updated[i]
	return t, ok
}

// MarkUpdated records that cell i changed at t.
func (c *Canvas) MarkUpdated(i int, t time.Time) { c.updated[i] = t }

// ResetCooldowns forgets every update timestamp.
func (c *Canvas) ResetCooldowns() { clear(c.updated) }

// Due returns the indices of cells never updated or updated at least
// cooldown before now.
func (c *Canvas) Due(now time.Time, cooldown time.Duration) []int {
	var due []int
	for i := range c.cells {
		t, ok := c.updated[i]
		if !ok || now.Sub(t) >= cooldown {
			due = append(due, i)
		}
	}
	return due
}

// Snapshot copies the pixel buffer, or returns nil once disposed.
func (c *Canvas) Snapshot() *image.NRGBA {
	pix := c.pix.Load()
	if pix == nil {
		return nil
	}
	return imaging.Clone(pix)
}

// Disposed reports whether Dispose has run.
func (c *Canvas) Disposed() bool { return c.pix.Load() == nil }

// Detach drops only the pixel buffer. Unlike Dispose it is safe while
// another goroutine holds the canvas: a concurrent Commit either blits into
// the detached buffer or fails with CLOSED, and cells are left untouched.
func (c *Canvas) Detach() { c.pix.Store(nil) }

// Dispose drops the pixel buffer and every cell buffer reference. The caller
// must hold the canvas.
func (c *Canvas) Dispose() {
	c.pix.Store(nil)
	for _, cell := range c.cells {
		cell.release()
	}
	clear(c.updated)
}
