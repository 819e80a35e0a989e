package engine

import (
	"context"
	"math"

	"github.com/matzehuels/tilepaper/pkg/canvas"
	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/display"
	"github.com/matzehuels/tilepaper/pkg/errors"
)

// layoutSet is everything rebuilt on reconfiguration.
type layoutSet struct {
	canvases   []*canvas.Canvas
	monitors   []display.Monitor
	matches    []display.Match
	perMonitor bool
}

// snapshot reads monitors and devices and applies configured overrides.
// A provider failure yields an empty list, which builds a single canvas.
func (e *Engine) snapshot(ctx context.Context, cfg *config.Config) ([]display.Monitor, []display.Match, error) {
	monitors, err := e.provider.Monitors(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		e.logger.Warn("enumerate monitors", "err", err)
		return nil, nil, nil
	}
	for i := range monitors {
		o, ok := cfg.Override(monitors[i].Ordinal())
		if !ok {
			continue
		}
		if o.Rows > 0 {
			monitors[i].Rows = o.Rows
		}
		if o.Cols > 0 {
			monitors[i].Cols = o.Cols
		}
		if o.DPIScale > 0 {
			monitors[i].Scale = o.DPIScale
		}
	}

	devices, err := e.provider.Devices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		e.logger.Warn("enumerate devices", "err", err)
	}
	matches := display.MatchDevices(monitors, devices)
	for _, m := range matches {
		if m.Pass == display.ByIndex {
			e.logger.Debug("device matched by position", "monitor", monitors[m.Monitor].String(), "device", m.Device)
		}
	}
	return monitors, matches, nil
}

// build creates canvases for the given monitors.
func (e *Engine) build(cfg *config.Config, monitors []display.Monitor, matches []display.Match) (*layoutSet, error) {
	perMonitor := cfg.PerMonitor && len(monitors) > 0
	if cfg.PerMonitor && !e.applier.SupportsPerMonitor() {
		e.logger.Warn("per-monitor mode unsupported by the wallpaper setter, composing one canvas")
		perMonitor = false
	}

	set := &layoutSet{monitors: monitors, matches: matches, perMonitor: perMonitor}
	if !perMonitor {
		c, err := canvas.New(cfg.Width, cfg.Height, cfg.Rows, cfg.Cols, canvas.Target{Primary: true})
		if err != nil {
			return nil, err
		}
		set.canvases = []*canvas.Canvas{c}
		return set, nil
	}

	for i, m := range monitors {
		w, h := m.Bounds.Dx(), m.Bounds.Dy()
		if cfg.AdaptDPI && m.Scale > 0 {
			w = int(math.Round(float64(w) * m.Scale))
			h = int(math.Round(float64(h) * m.Scale))
		}
		rows, cols := gridFor(cfg, m)

		target := canvas.Target{Ordinal: m.Ordinal(), Primary: m.Primary}
		if i < len(matches) {
			target.Device = matches[i].Device
		}
		c, err := canvas.New(w, h, rows, cols, target)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "monitor %s", m.String())
		}
		set.canvases = append(set.canvases, c)
	}

	if _, ok := display.Primary(monitors); ok && !anyPrimary(set.canvases) {
		set.canvases[0].Target.Primary = true
	}
	return set, nil
}

// gridFor returns the grid for a monitor: an explicit override wins,
// otherwise portrait monitors swap the configured rows and columns.
func gridFor(cfg *config.Config, m display.Monitor) (rows, cols int) {
	rows, cols = cfg.Rows, cfg.Cols
	if m.Rows > 0 || m.Cols > 0 {
		if m.Rows > 0 {
			rows = m.Rows
		}
		if m.Cols > 0 {
			cols = m.Cols
		}
		return rows, cols
	}
	if m.Orientation == display.Portrait {
		rows, cols = cols, rows
	}
	return rows, cols
}

func anyPrimary(cs []*canvas.Canvas) bool {
	for _, c := range cs {
		if c.Target.Primary {
			return true
		}
	}
	return false
}

// install swaps in a new layout and disposes the old canvases. Callers hold
// the canvas lock.
func (e *Engine) install(set *layoutSet) {
	old := e.canvases
	e.canvases = set.canvases
	e.monitors = set.monitors
	e.matches = set.matches
	e.perMonitor = set.perMonitor
	e.fresh = true
	e.generation.Add(1)
	for _, c := range old {
		c.Dispose()
	}
}
