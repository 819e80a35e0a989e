// Package display describes physical monitors and how to reach them.
//
// A [Provider] snapshots the current monitor layout and the OS device
// identities wallpapers are applied to. A [Notifier] reports topology
// changes with no payload; subscribers re-snapshot through the provider.
//
// Monitors and devices come from separate views of the system and do not
// necessarily line up. [MatchDevices] reconciles them with a pure two-pass
// algorithm: exact rectangle equality first, then positional fallback.
package display

import (
	"context"
	"fmt"
	"image"
	"math"
	"slices"
)

// Orientation of a monitor's current mode.
type Orientation int

const (
	Landscape Orientation = iota
	Portrait
)

func (o Orientation) String() string {
	if o == Portrait {
		return "portrait"
	}
	return "landscape"
}

// Monitor is one physical display as reported by a [Provider].
type Monitor struct {
	// Index is the 0-based position in the provider's ordering.
	Index int `json:"index"`
	// Name is the provider's name for the output, e.g. "DP-1".
	Name        string          `json:"name"`
	Bounds      image.Rectangle `json:"bounds"`
	Primary     bool            `json:"primary"`
	Scale       float64         `json:"scale"`
	Orientation Orientation     `json:"orientation"`
	// Rows and Cols override the grid shape when non-zero.
	Rows int `json:"rows,omitempty"`
	Cols int `json:"cols,omitempty"`
}

// Ordinal returns the 1-based monitor number used in output file names.
func (m Monitor) Ordinal() int { return m.Index + 1 }

func (m Monitor) String() string {
	return fmt.Sprintf("%d:%s %dx%d+%d+%d", m.Ordinal(), m.Name,
		m.Bounds.Dx(), m.Bounds.Dy(), m.Bounds.Min.X, m.Bounds.Min.Y)
}

// Device is an OS-level target for per-monitor wallpaper application.
type Device struct {
	ID     string          `json:"id"`
	Bounds image.Rectangle `json:"bounds"`
}

// Provider enumerates monitors and devices.
type Provider interface {
	Monitors(ctx context.Context) ([]Monitor, error)
	Devices(ctx context.Context) ([]Device, error)
}

// Notifier reports display topology changes. The returned function removes
// the subscription; calling it more than once is safe.
type Notifier interface {
	Subscribe(fn func()) (unsubscribe func())
}

// OrientationOf derives orientation from a rectangle.
func OrientationOf(r image.Rectangle) Orientation {
	if r.Dy() > r.Dx() {
		return Portrait
	}
	return Landscape
}

// Primary returns the primary monitor, or the first one when none is
// flagged. ok is false for an empty list.
func Primary(monitors []Monitor) (m Monitor, ok bool) {
	if len(monitors) == 0 {
		return Monitor{}, false
	}
	if i := slices.IndexFunc(monitors, func(m Monitor) bool { return m.Primary }); i >= 0 {
		return monitors[i], true
	}
	return monitors[0], true
}

// Desktop returns the union of all monitor bounds.
func Desktop(monitors []Monitor) image.Rectangle {
	var r image.Rectangle
	for _, m := range monitors {
		r = r.Union(m.Bounds)
	}
	return r
}

// ScaleFromDPI converts a physical density into a scale factor relative to
// 96 DPI, rounded to the nearest quarter and never below 1.
func ScaleFromDPI(dpi float64) float64 {
	if dpi <= 0 || math.IsNaN(dpi) || math.IsInf(dpi, 0) {
		return 1
	}
	s := math.Round(dpi/96*4) / 4
	return max(s, 1)
}

// =============================================================================
// Device matching
// =============================================================================

// MatchPass says which rule paired a monitor with a device.
type MatchPass int

const (
	Unmatched MatchPass = iota
	ByRect
	ByIndex
)

func (p MatchPass) String() string {
	switch p {
	case ByRect:
		return "rect"
	case ByIndex:
		return "index"
	default:
		return "none"
	}
}

// Match pairs monitors[Monitor] with a device identity.
type Match struct {
	Monitor int       `json:"monitor"`
	Device  string    `json:"device,omitempty"`
	Pass    MatchPass `json:"pass"`
}

// MatchDevices pairs each monitor with a device. Pass one pairs exact
// rectangle matches. Pass two gives each still-unmatched monitor i the
// i-th device, provided pass one has not claimed it. The result has one
// entry per monitor, in monitor order; unmatched entries have an empty
// Device.
func MatchDevices(monitors []Monitor, devices []Device) []Match {
	out := make([]Match, len(monitors))
	claimed := make([]bool, len(devices))

	for i, m := range monitors {
		out[i].Monitor = i
		for j, d := range devices {
			if !claimed[j] && d.Bounds == m.Bounds {
				out[i].Device = d.ID
				out[i].Pass = ByRect
				claimed[j] = true
				break
			}
		}
	}

	for i := range out {
		if out[i].Pass != Unmatched || i >= len(devices) || claimed[i] {
			continue
		}
		out[i].Device = devices[i].ID
		out[i].Pass = ByIndex
		claimed[i] = true
	}
	return out
}
