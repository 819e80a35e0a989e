package engine

import (
	"context"
	"image"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/tilepaper/pkg/canvas"
	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/observability"
	"github.com/matzehuels/tilepaper/pkg/source"
)

// Skip reasons reported in [CycleResult.Skipped].
const (
	SkipNoImages    = "no eligible images"
	SkipLockTimeout = "canvases busy"
	SkipNothingDue  = "no cells due"
	SkipRebuilt     = "canvases rebuilt during cycle"
)

// CycleResult summarises one refresh cycle.
type CycleResult struct {
	ID         string        `json:"id"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Candidates int           `json:"candidates"`
	Updated    int           `json:"updated"`
	Outputs    []string      `json:"outputs,omitempty"`
	Skipped    string        `json:"skipped,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// job is one cell scheduled for a new image.
type job struct {
	canvas *canvas.Canvas
	cell   *canvas.Cell
	path   string
	cover  *canvas.Cover
}

// output is a snapshot ready to be encoded.
type output struct {
	target canvas.Target
	pixels *image.NRGBA
}

// Refresh runs one cycle now. Steady-state failures are logged and
// reflected in the result; the returned error is non-nil only when the
// engine is closed or not initialised, or ctx is cancelled.
func (e *Engine) Refresh(ctx context.Context) (CycleResult, error) {
	return e.cycle(ctx, false)
}

func (e *Engine) cycle(ctx context.Context, force bool) (CycleResult, error) {
	switch e.State() {
	case StateUninitialized:
		return CycleResult{}, errors.New(errors.ErrCodeInternal, "engine is not initialised")
	case StateDisposed:
		return CycleResult{}, errors.New(errors.ErrCodeClosed, "engine is closed")
	}

	cfg := e.Config()
	res := CycleResult{ID: uuid.NewString(), Started: e.now()}
	logger := e.logger.With("cycle", res.ID[:8])
	finish := func(err error) (CycleResult, error) {
		res.Duration = time.Since(res.Started)
		if err != nil && res.Error == "" {
			res.Error = err.Error()
		}
		observability.Engine().OnCycleComplete(ctx, res.ID, res.Updated, res.Duration, err)
		e.record(res)
		return res, nil
	}
	skip := func(reason string) (CycleResult, error) {
		res.Skipped = reason
		observability.Engine().OnCycleSkipped(ctx, reason)
		e.record(res)
		return res, nil
	}

	pool, scanned := e.scan(cfg, logger)

	// Plan under the lock.
	if err := e.acquire(ctx); err != nil {
		if errors.Is(err, errors.ErrCodeLockTimeout) {
			logger.Warn("skipping cycle", "reason", err)
			return skip(SkipLockTimeout)
		}
		return res, err
	}
	if scanned {
		e.pool = pool
	}
	if len(e.pool) == 0 {
		if !e.poolWarned {
			logger.Warn("nothing to compose", "folder", cfg.SourceFolder)
			e.poolWarned = true
		}
		e.release()
		return skip(SkipNoImages)
	}
	e.poolWarned = false

	gen := e.generation.Load()
	first := force || e.fresh
	jobs, candidates := e.plan(cfg, first)
	e.release()

	res.Candidates = candidates
	observability.Engine().OnCycleStart(ctx, res.ID, candidates)
	if len(jobs) == 0 {
		return skip(SkipNothingDue)
	}

	// Decode and resize without the lock.
	if err := e.load(ctx, jobs, logger); err != nil {
		return finish(err)
	}

	// Blit under the lock, unless the canvases were replaced meanwhile.
	if err := e.acquire(ctx); err != nil {
		if errors.Is(err, errors.ErrCodeLockTimeout) {
			logger.Warn("skipping cycle", "reason", err)
			return skip(SkipLockTimeout)
		}
		return res, err
	}
	if e.generation.Load() != gen {
		e.release()
		logger.Info("discarding cycle", "reason", SkipRebuilt)
		return skip(SkipRebuilt)
	}
	res.Updated = e.commit(jobs, logger)
	if first && res.Updated > 0 {
		e.fresh = false
	}
	var outs []output
	if res.Updated > 0 || first {
		outs = e.snapshots()
	}
	perMonitor := e.perMonitor
	e.release()

	if len(outs) == 0 {
		return finish(nil)
	}

	// Encode, write and apply without the lock.
	paths, err := e.persist(cfg, outs)
	res.Outputs = paths
	if err != nil {
		logger.Error("write wallpaper", "err", err)
		return finish(err)
	}
	if err := e.apply(ctx, outs, paths, perMonitor); err != nil {
		logger.Error("apply wallpaper", "err", err)
		return finish(err)
	}
	logger.Info("refreshed", "cells", res.Updated, "candidates", candidates, "took", time.Since(res.Started).Round(time.Millisecond))
	return finish(nil)
}

// scan re-reads the source folder when rescanning is on or no cycle has
// run yet. scanned is false when the current pool should be kept. A folder
// that can no longer be read yields an empty pool.
func (e *Engine) scan(cfg *config.Config, logger *log.Logger) (paths []string, scanned bool) {
	e.mu.Lock()
	have := e.cycles > 0
	e.mu.Unlock()
	if have && !cfg.Rescan {
		return nil, false
	}
	paths, err := source.Scan(cfg.SourceFolder)
	if err != nil {
		logger.Warn("scan source folder", "err", err)
		return nil, true
	}
	return paths, true
}

// plan picks cells and images for this cycle. Callers hold the lock.
func (e *Engine) plan(cfg *config.Config, first bool) ([]*job, int) {
	now := e.now()
	cooldown := cfg.CellCooldown.Duration()
	var jobs []*job
	candidates := 0

	for _, c := range e.canvases {
		var due []int
		if first {
			due = make([]int, c.Len())
			for i := range due {
				due[i] = i
			}
		} else {
			due = c.Due(now, cooldown)
		}
		candidates += len(due)
		if len(due) == 0 {
			continue
		}

		n := len(due)
		if !first {
			n = selectCount(e.randIntN, len(due), c.Len())
		}
		chosen := e.choose(due, n)

		taken := c.Displayed()
		cells := c.Cells()
		for _, idx := range chosen {
			e.rngMu.Lock()
			path, ok := source.Pick(e.rng, e.pool, func(p string) bool {
				_, used := taken[p]
				return used || e.cache.Unavailable(p)
			})
			e.rngMu.Unlock()
			if !ok {
				break
			}
			taken[path] = struct{}{}
			jobs = append(jobs, &job{canvas: c, cell: cells[idx], path: path})
		}
	}
	return jobs, candidates
}

// selectCount returns how many of due cells to refresh on a canvas of total
// cells: all of them when three or fewer are due, otherwise a uniform draw
// from [3, min(due, total/4+1)]. The upper bound is inclusive, floored at 3
// and never above due.
func selectCount(intN func(int) int, due, total int) int {
	if due <= 3 {
		return due
	}
	hi := max(min(due, total/4+1), 3)
	return 3 + intN(hi-3+1)
}

// choose returns n distinct entries of due in random order.
func (e *Engine) choose(due []int, n int) []int {
	out := append([]int(nil), due...)
	e.rngMu.Lock()
	e.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	e.rngMu.Unlock()
	return out[:n]
}

// load prepares every job concurrently. Unavailable images leave the job
// without a cover. Only cancellation aborts the batch.
func (e *Engine) load(ctx context.Context, jobs []*job, logger *log.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, j := range jobs {
		g.Go(func() error {
			cover, err := j.cell.Prepare(gctx, j.path, j.canvas.Width, j.canvas.Height, e.cache)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("load image", "path", j.path, "err", err)
				return nil
			}
			j.cover = cover
			return nil
		})
	}
	return g.Wait()
}

// commit blits loaded covers and returns how many cells changed. A cover is
// dropped if its image appeared elsewhere on the canvas since planning.
// Callers hold the lock.
func (e *Engine) commit(jobs []*job, logger *log.Logger) int {
	now := e.now()
	shown := make(map[*canvas.Canvas]map[string]struct{})
	updated := 0
	for _, j := range jobs {
		if j.cover == nil || j.canvas.Disposed() {
			continue
		}
		taken, ok := shown[j.canvas]
		if !ok {
			taken = j.canvas.Displayed()
			shown[j.canvas] = taken
		}
		if _, dup := taken[j.cover.Path]; dup && j.cell.Path() != j.cover.Path {
			continue
		}
		prev := j.cell.Path()
		if err := j.canvas.Commit(j.cover); err != nil {
			logger.Warn("blit image", "cell", j.cell.Index, "err", err)
			continue
		}
		delete(taken, prev)
		taken[j.cover.Path] = struct{}{}
		j.canvas.MarkUpdated(j.cell.Index, now)
		updated++
	}
	return updated
}

// snapshots copies every live canvas. Callers hold the lock.
func (e *Engine) snapshots() []output {
	outs := make([]output, 0, len(e.canvases))
	for _, c := range e.canvases {
		if px := c.Snapshot(); px != nil {
			outs = append(outs, output{target: c.Target, pixels: px})
		}
	}
	return outs
}

// apply hands the written files to the wallpaper setter.
func (e *Engine) apply(ctx context.Context, outs []output, paths []string, perMonitor bool) error {
	if !perMonitor {
		return e.applier.Apply(ctx, paths[0])
	}

	targets := make(map[string]string, len(outs))
	fallback := paths[0]
	unmapped := false
	for i, o := range outs {
		if o.target.Primary {
			fallback = paths[i]
		}
		if o.target.Device == "" {
			unmapped = true
			continue
		}
		targets[o.target.Device] = paths[i]
	}
	return e.applier.ApplyMonitors(ctx, targets, fallback, unmapped)
}

func (e *Engine) record(res CycleResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycles++
	e.last = &res
}

// outputPath joins the destination folder and a canvas file name.
func outputPath(cfg *config.Config, t canvas.Target) string {
	return filepath.Join(cfg.DestinationFolder, t.File)
}
