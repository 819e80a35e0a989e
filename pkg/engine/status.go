package engine

import (
	"context"

	"github.com/matzehuels/tilepaper/pkg/display"
	"github.com/matzehuels/tilepaper/pkg/imagecache"
)

// Status is a point-in-time view of the engine for dashboards and the
// control server.
type Status struct {
	State      string           `json:"state"`
	PerMonitor bool             `json:"per_monitor"`
	Images     int              `json:"images"`
	Cycles     int              `json:"cycles"`
	Canvases   []CanvasStatus   `json:"canvases"`
	Monitors   []MonitorStatus  `json:"monitors,omitempty"`
	Cache      imagecache.Stats `json:"cache"`
	LastCycle  *CycleResult     `json:"last_cycle,omitempty"`
}

// CanvasStatus describes one canvas.
type CanvasStatus struct {
	File      string   `json:"file"`
	Device    string   `json:"device,omitempty"`
	Primary   bool     `json:"primary"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Base      int      `json:"base"`
	Displayed []string `json:"displayed"`
}

// MonitorStatus pairs a monitor with its device match.
type MonitorStatus struct {
	display.Monitor
	Device string `json:"device,omitempty"`
	Match  string `json:"match"`
}

// Status reports the engine state. It waits for the canvas lock like a
// cycle does and fails with a LOCK_TIMEOUT error when it cannot get it.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	e.mu.Lock()
	st := Status{State: e.State().String(), Cycles: e.cycles, LastCycle: e.last}
	e.mu.Unlock()
	st.Cache = e.cache.Stats()

	if e.State() == StateUninitialized || e.State() == StateDisposed {
		return st, nil
	}
	if err := e.acquire(ctx); err != nil {
		return st, err
	}
	defer e.release()

	st.PerMonitor = e.perMonitor
	st.Images = len(e.pool)
	for _, c := range e.canvases {
		cs := CanvasStatus{
			File:    c.Target.File,
			Device:  c.Target.Device,
			Primary: c.Target.Primary,
			Width:   c.Width,
			Height:  c.Height,
			Rows:    c.Plan.Rows,
			Cols:    c.Plan.Cols,
			Base:    c.Plan.Base,
		}
		for _, cell := range c.Cells() {
			cs.Displayed = append(cs.Displayed, cell.Path())
		}
		st.Canvases = append(st.Canvases, cs)
	}
	for i, m := range e.monitors {
		ms := MonitorStatus{Monitor: m, Match: display.Unmatched.String()}
		if i < len(e.matches) {
			ms.Device = e.matches[i].Device
			ms.Match = e.matches[i].Pass.String()
		}
		st.Monitors = append(st.Monitors, ms)
	}
	return st, nil
}
