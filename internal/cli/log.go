package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tilepaper/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// =============================================================================
// Hook Logging
// =============================================================================

// logHooks reports engine, cache and apply events at debug level. It is
// installed by commands that do not run the dashboard.
type logHooks struct {
	logger *log.Logger
}

func (h logHooks) OnCycleStart(_ context.Context, id string, candidates int) {
	h.logger.Debug("cycle started", "cycle", id, "candidates", candidates)
}

func (h logHooks) OnCycleComplete(_ context.Context, id string, updated int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("cycle failed", "cycle", id, "took", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("cycle complete", "cycle", id, "updated", updated, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnCycleSkipped(_ context.Context, reason string) {
	h.logger.Debug("cycle skipped", "reason", reason)
}

func (h logHooks) OnReconfigure(_ context.Context, reason string, canvases int, err error) {
	h.logger.Debug("reconfigured", "reason", reason, "canvases", canvases, "err", err)
}

func (h logHooks) OnCacheHit(context.Context, string) {}

func (h logHooks) OnCacheMiss(_ context.Context, path string) {
	h.logger.Debug("decoding", "path", path)
}

func (h logHooks) OnCacheEvict(_ context.Context, policy string, size int) {
	h.logger.Debug("evicted", "policy", policy, "bytes", size)
}

func (h logHooks) OnApply(_ context.Context, target, path string, d time.Duration, err error) {
	h.logger.Debug("applied", "target", target, "path", path, "took", d.Round(time.Millisecond), "err", err)
}

// installLogHooks registers h for every hook category and returns a func
// that restores the no-op hooks.
func installLogHooks(l *log.Logger) func() {
	h := logHooks{logger: l}
	observability.SetEngineHooks(h)
	observability.SetCacheHooks(h)
	observability.SetApplyHooks(h)
	return observability.Reset
}
