package wallpaper

import (
	"context"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/observability"
	"github.com/matzehuels/tilepaper/pkg/retry"
)

// Resilient wraps an Applier with bounded retries and a fallback.
type Resilient struct {
	inner    Applier
	attempts int
	delay    time.Duration
	logger   *log.Logger
}

// NewResilient retries each operation up to attempts times starting at
// delay. Non-positive values select 3 attempts and 250ms.
func NewResilient(inner Applier, attempts int, delay time.Duration, logger *log.Logger) *Resilient {
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resilient{inner: inner, attempts: attempts, delay: delay, logger: logger}
}

// SupportsPerMonitor delegates to the wrapped applier.
func (r *Resilient) SupportsPerMonitor() bool { return r.inner.SupportsPerMonitor() }

// Apply sets path on the whole desktop, retrying transient failures.
func (r *Resilient) Apply(ctx context.Context, path string) error {
	start := time.Now()
	err := retry.Do(ctx, r.attempts, r.delay, func() error {
		return r.inner.Apply(ctx, path)
	})
	observability.Apply().OnApply(ctx, "desktop", path, time.Since(start), err)
	return err
}

// ApplyPerMonitor applies each device on its own, retrying failures per
// device. It returns an error naming the devices that still failed.
func (r *Resilient) ApplyPerMonitor(ctx context.Context, targets map[string]string) error {
	failed := r.applyEach(ctx, targets)
	if len(failed) == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeApply, "per-monitor apply failed for %v", failed)
}

// ApplyMonitors applies targets per device and falls back to a whole-desktop
// apply of fallback when the wrapped applier cannot target monitors or a
// device still fails after its retries.
//
// When unmapped is set, fallback goes to the whole desktop first so monitors
// without a device get the primary canvas, and the mapped devices are set on
// top of it. A device that then fails keeps the fallback image.
func (r *Resilient) ApplyMonitors(ctx context.Context, targets map[string]string, fallback string, unmapped bool) error {
	if !r.inner.SupportsPerMonitor() || len(targets) == 0 {
		return r.Apply(ctx, fallback)
	}

	if unmapped {
		r.logger.Debug("applying desktop wallpaper under unmapped monitors", "path", fallback)
		base := r.Apply(ctx, fallback)
		failed := r.applyEach(ctx, targets)
		if base != nil {
			return errors.Wrap(errors.ErrCodeApply, base, "desktop apply of %s for unmapped monitors", fallback)
		}
		if len(failed) > 0 {
			r.logger.Warn("devices kept the desktop wallpaper", "failed", failed, "path", fallback)
		}
		return nil
	}

	failed := r.applyEach(ctx, targets)
	if len(failed) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.logger.Warn("falling back to desktop wallpaper", "failed", failed, "path", fallback)
	if err := r.Apply(ctx, fallback); err != nil {
		return errors.Wrap(errors.ErrCodeApply, err, "fallback apply of %s", fallback)
	}
	return nil
}

func (r *Resilient) applyEach(ctx context.Context, targets map[string]string) []string {
	var failed []string
	for _, device := range slices.Sorted(maps.Keys(targets)) {
		path := targets[device]
		start := time.Now()
		err := retry.Do(ctx, r.attempts, r.delay, func() error {
			return r.inner.ApplyPerMonitor(ctx, map[string]string{device: path})
		})
		observability.Apply().OnApply(ctx, device, path, time.Since(start), err)
		if err != nil {
			r.logger.Warn("apply wallpaper", "device", device, "err", err)
			failed = append(failed, device)
		}
	}
	return failed
}
