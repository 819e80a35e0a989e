// Package engine drives periodic wallpaper composition.
//
// An [Engine] owns the canvases (one for the whole desktop, or one per
// monitor), refreshes a random subset of their cells on a jittered timer,
// writes each canvas to a JPEG in the destination folder and hands the
// files to a [wallpaper.Applier]. It rebuilds its canvases when the display
// topology or the configuration changes.
//
// # Lifecycle
//
//	Uninitialized --Init/Start--> Running <--> Reconfiguring
//	      any state --Close--> Disposed
//
// # Locking
//
// The canvases are guarded by a weighted semaphore acquired with a bounded
// wait (config lock_timeout). A refresh cycle holds it only while planning
// and while blitting; decoding and JPEG encoding run without it. A cycle
// that cannot get the lock in time is skipped, and the timer rearms
// regardless. Reconfiguration bumps a generation counter so a cycle that
// loaded images for the old canvases discards them.
package engine

import (
	"context"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/tilepaper/pkg/canvas"
	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/display"
	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/imagecache"
	"github.com/matzehuels/tilepaper/pkg/wallpaper"
)

// State is the engine lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateRunning
	StateReconfiguring
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateReconfiguring:
		return "reconfiguring"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Engine is the update orchestrator. Create it with [New].
type Engine struct {
	logger   *log.Logger
	provider display.Provider
	notifier display.Notifier
	applier  *wallpaper.Resilient
	cache    *imagecache.Cache
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	state atomic.Int32
	lock  *semaphore.Weighted

	// Guarded by lock.
	canvases   []*canvas.Canvas
	monitors   []display.Monitor
	matches    []display.Match
	perMonitor bool
	fresh      bool
	pool       []string
	poolWarned bool
	generation atomic.Uint64

	mu          sync.Mutex
	cfg         *config.Config
	runCtx      context.Context
	runCancel   context.CancelFunc
	reconfigure context.CancelFunc
	reconfigWG  sync.WaitGroup
	unsubscribe func()
	loopDone    chan struct{}
	kick        chan struct{}
	closed      chan struct{}
	cycles      int
	last        *CycleResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDisplay sets where monitors come from and who reports topology changes.
// A nil notifier disables automatic reconfiguration.
func WithDisplay(p display.Provider, n display.Notifier) Option {
	return func(e *Engine) {
		e.provider = p
		e.notifier = n
	}
}

// WithApplier sets the wallpaper applier. It is wrapped with retries.
func WithApplier(a wallpaper.Applier) Option {
	return func(e *Engine) { e.applier = wallpaper.NewResilient(a, 0, 0, nil) }
}

// WithResilientApplier sets an already wrapped applier.
func WithResilientApplier(r *wallpaper.Resilient) Option {
	return func(e *Engine) { e.applier = r }
}

// WithCache shares an image cache instead of creating one from config.
// Close closes it too.
func WithCache(c *imagecache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithClock overrides time.Now for cool-down bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRand seeds cell and image selection.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

// New creates an engine for cfg. Defaults: a static single-monitor display
// of the configured size, the command applier from cfg.Apply, and a cache
// built from cfg.Cache.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		logger: log.New(io.Discard),
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x7469_6c65)),
		lock:   semaphore.NewWeighted(1),
		cfg:    cfg,
		kick:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.provider == nil {
		s := display.SingleMonitor(cfg.Width, cfg.Height)
		e.provider, e.notifier = s, s
	}
	if e.applier == nil {
		cmd := wallpaper.NewCommand(cfg.Apply.Command, cfg.Apply.MonitorCommand)
		e.applier = wallpaper.NewResilient(cmd, cfg.Apply.Attempts, 0, e.logger)
	}
	if e.cache == nil {
		e.cache = imagecache.New(
			imagecache.WithMaxItems(cfg.Cache.MaxItems),
			imagecache.WithMaxBytes(cfg.Cache.MaxBytes),
			imagecache.WithSweepInterval(cfg.Cache.SweepInterval.Duration()),
			imagecache.WithLogger(e.logger.With("component", "cache")),
		)
	}
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Cache returns the engine's image cache.
func (e *Engine) Cache() *imagecache.Cache { return e.cache }

// Config returns the active configuration. Callers must not modify it.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// acquire takes the canvas lock, waiting at most lock_timeout.
func (e *Engine) acquire(ctx context.Context) error {
	timeout := e.Config().LockTimeout.Duration()
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := e.lock.Acquire(lctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(errors.ErrCodeLockTimeout, err, "canvases busy for %s", timeout)
	}
	return nil
}

func (e *Engine) release() { e.lock.Release(1) }

func (e *Engine) randIntN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

func (e *Engine) randInt64N(n int64) int64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Int64N(n)
}

// nextDelay draws the next refresh delay uniformly from
// [min_interval, max_interval] seconds.
func (e *Engine) nextDelay() time.Duration {
	cfg := e.Config()
	lo := time.Duration(cfg.MinInterval) * time.Second
	span := time.Duration(cfg.MaxInterval-cfg.MinInterval) * time.Second
	return lo + time.Duration(e.randInt64N(int64(span)+1))
}
