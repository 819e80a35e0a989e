package display

import (
	"context"
	"image"
	"slices"
	"sync"
)

// Static is a Provider with a fixed monitor list, used headless and when no
// display server is reachable. Set replaces the list and notifies
// subscribers, so it also serves as a manual Notifier.
type Static struct {
	*hub

	mu       sync.RWMutex
	monitors []Monitor
}

// NewStatic returns a provider reporting monitors. Indices are reassigned
// in order and orientation is derived from the bounds.
func NewStatic(monitors ...Monitor) *Static {
	s := &Static{hub: newHub(0, nil, nil)}
	s.monitors = normalizeStatic(monitors)
	return s
}

// SingleMonitor returns a Static with one primary monitor of the given size.
func SingleMonitor(width, height int) *Static {
	return NewStatic(Monitor{
		Name:    "default",
		Bounds:  image.Rect(0, 0, width, height),
		Primary: true,
		Scale:   1,
	})
}

// Monitors returns a copy of the configured list.
func (s *Static) Monitors(context.Context) ([]Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.monitors), nil
}

// Devices reports one device per monitor, named after it.
func (s *Static) Devices(context.Context) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, len(s.monitors))
	for i, m := range s.monitors {
		out[i] = Device{ID: m.Name, Bounds: m.Bounds}
	}
	return out, nil
}

// Set replaces the monitor list and signals a topology change.
func (s *Static) Set(monitors ...Monitor) {
	s.mu.Lock()
	s.monitors = normalizeStatic(monitors)
	s.mu.Unlock()
	s.changed()
}

func normalizeStatic(in []Monitor) []Monitor {
	out := slices.Clone(in)
	for i := range out {
		out[i].Index = i
		out[i].Orientation = OrientationOf(out[i].Bounds)
		if out[i].Scale <= 0 {
			out[i].Scale = 1
		}
	}
	return out
}
