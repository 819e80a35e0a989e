package engine

import (
	"context"
	"os"
	"time"

	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/observability"
	"github.com/matzehuels/tilepaper/pkg/source"
)

// Init validates folders, reads the image pool and monitors and builds the
// canvases. Only validation failures are returned; an empty pool is logged
// and leaves every cycle a no-op until pictures appear.
func (e *Engine) Init(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateUninitialized), int32(StateRunning)) {
		return errors.New(errors.ErrCodeInternal, "engine already %s", e.State())
	}
	if err := e.init(ctx); err != nil {
		e.state.Store(int32(StateUninitialized))
		return err
	}
	return nil
}

func (e *Engine) init(ctx context.Context) error {
	cfg := e.Config()
	if err := errors.ValidateFolder("source", cfg.SourceFolder); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DestinationFolder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFolder, err, "create destination folder %q", cfg.DestinationFolder)
	}
	if err := errors.ValidateFolder("destination", cfg.DestinationFolder); err != nil {
		return err
	}

	pool, err := source.Scan(cfg.SourceFolder)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		e.logger.Warn("no eligible images", "folder", cfg.SourceFolder)
	}

	monitors, matches, err := e.snapshot(ctx, cfg)
	if err != nil {
		return err
	}
	set, err := e.build(cfg, monitors, matches)
	if err != nil {
		return err
	}

	if err := e.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	e.pool = pool
	e.poolWarned = len(pool) == 0
	e.install(set)
	e.release()

	e.mu.Lock()
	e.runCtx, e.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Unlock()
	e.cache.Start(e.runCtx)

	e.logger.Info("engine ready",
		"canvases", len(set.canvases),
		"per_monitor", set.perMonitor,
		"images", len(pool),
	)
	return nil
}

// Start initialises the engine, subscribes to topology changes when
// auto_reconfigure is set and starts the refresh loop. The first cycle runs
// immediately.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Init(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.AutoReconfigure && e.notifier != nil {
		e.unsubscribe = e.notifier.Subscribe(func() {
			e.Reconfigure("display topology changed")
		})
	}
	e.loopDone = make(chan struct{})
	go e.loop(e.runCtx, e.loopDone)
	return nil
}

// loop runs cycles until ctx is done, rearming after each one whatever
// its outcome.
func (e *Engine) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-e.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := e.cycle(ctx, false); err != nil && ctx.Err() == nil {
			e.logger.Error("refresh cycle", "err", err)
		}

		delay := e.nextDelay()
		e.logger.Debug("next refresh", "in", delay.Round(time.Millisecond))
		timer.Reset(delay)
	}
}

// Kick asks the loop to run a cycle now instead of waiting for its timer.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Reconfigure cancels any reconfiguration in progress and starts a new one:
// re-read monitors, rebuild canvases (which resets cool-downs), then force a
// refresh of every cell. The returned channel yields the outcome once.
func (e *Engine) Reconfigure(reason string) <-chan error {
	result := make(chan error, 1)

	e.mu.Lock()
	if e.State() == StateDisposed || e.runCtx == nil {
		e.mu.Unlock()
		result <- errors.New(errors.ErrCodeClosed, "engine is not running")
		return result
	}
	if e.reconfigure != nil {
		e.reconfigure()
	}
	ctx, cancel := context.WithCancel(e.runCtx)
	e.reconfigure = cancel
	e.reconfigWG.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.reconfigWG.Done()
		defer cancel()
		err := e.reconfigureNow(ctx, reason)
		if err != nil && ctx.Err() == nil {
			e.logger.Warn("reconfiguration abandoned", "reason", reason, "err", err)
		}
		result <- err
	}()
	return result
}

func (e *Engine) reconfigureNow(ctx context.Context, reason string) error {
	if e.state.CompareAndSwap(int32(StateRunning), int32(StateReconfiguring)) {
		defer e.state.CompareAndSwap(int32(StateReconfiguring), int32(StateRunning))
	}
	cfg := e.Config()
	e.logger.Info("reconfiguring", "reason", reason)

	monitors, matches, err := e.snapshot(ctx, cfg)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return err
	}

	set, err := e.build(cfg, monitors, matches)
	if err != nil {
		observability.Engine().OnReconfigure(ctx, reason, 0, err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.acquire(ctx); err != nil {
		observability.Engine().OnReconfigure(ctx, reason, 0, err)
		return err
	}
	if err := ctx.Err(); err != nil {
		e.release()
		return err
	}
	e.install(set)
	e.release()
	observability.Engine().OnReconfigure(ctx, reason, len(set.canvases), nil)

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = e.cycle(ctx, true)
	return err
}

// UpdateConfig validates cfg, makes it current and reconfigures.
func (e *Engine) UpdateConfig(cfg *config.Config) (<-chan error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return e.Reconfigure("configuration changed"), nil
}

// Close stops the loop, cancels reconfiguration, unsubscribes from topology
// changes and releases every buffer. Disposal happens on another goroutine;
// the returned channel closes when it is done. Close is idempotent.
func (e *Engine) Close() <-chan struct{} {
	prev := State(e.state.Swap(int32(StateDisposed)))
	if prev == StateDisposed {
		return e.closed
	}

	e.mu.Lock()
	if e.reconfigure != nil {
		e.reconfigure()
	}
	if e.runCancel != nil {
		e.runCancel()
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	loopDone := e.loopDone
	timeout := e.cfg.LockTimeout.Duration()
	e.mu.Unlock()

	go func() {
		defer close(e.closed)
		if loopDone != nil {
			<-loopDone
		}
		e.reconfigWG.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		locked := e.lock.Acquire(ctx, 1) == nil
		cancel()

		// Without the lock a cycle may still be committing, so only the
		// atomic pixel buffers are dropped and the cells are left alone.
		// Nothing writes e.canvases once the loop and reconfigurations
		// have stopped.
		canvases := e.canvases
		if locked {
			e.canvases = nil
			for _, c := range canvases {
				c.Dispose()
			}
			e.release()
		} else {
			e.logger.Warn("canvas lock busy at shutdown, detaching buffers only", "timeout", timeout)
			for _, c := range canvases {
				c.Detach()
			}
		}
		_ = e.cache.Close()
		e.logger.Debug("engine disposed", "canvases", len(canvases), "locked", locked)
	}()
	return e.closed
}
