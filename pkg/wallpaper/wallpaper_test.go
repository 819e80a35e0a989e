package wallpaper

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/retry"
)

// fakeApplier records calls and fails devices listed in failures the given
// number of times.
type fakeApplier struct {
	mu          sync.Mutex
	perMonitor  bool
	failures    map[string]int
	desktopErr  error
	desktop     []string
	monitorRuns []string
	order       []string // "desktop" or the device, in call order
}

func (f *fakeApplier) SupportsPerMonitor() bool { return f.perMonitor }

func (f *fakeApplier) Apply(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.desktop = append(f.desktop, path)
	f.order = append(f.order, "desktop")
	return f.desktopErr
}

func (f *fakeApplier) ApplyPerMonitor(_ context.Context, targets map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for device := range targets {
		f.monitorRuns = append(f.monitorRuns, device)
		f.order = append(f.order, device)
		if f.failures[device] > 0 {
			f.failures[device]--
			return retry.Retryable(fmt.Errorf("%s busy", device))
		}
	}
	return nil
}

func TestCommandExpandsPlaceholders(t *testing.T) {
	var got [][]string
	c := NewCommand(nil, []string{"xwallpaper", "--output", "{device}", "--zoom", "{path}"})
	c.run = func(_ context.Context, argv []string) error {
		got = append(got, argv)
		return nil
	}

	if err := c.Apply(context.Background(), "/tmp/w.jpg"); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyPerMonitor(context.Background(), map[string]string{"DP-1": "/tmp/m1.jpg"}); err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"feh", "--no-fehbg", "--bg-fill", "/tmp/w.jpg"},
		{"xwallpaper", "--output", "DP-1", "--zoom", "/tmp/m1.jpg"},
	}
	if len(got) != len(want) {
		t.Fatalf("ran %d commands, want %d", len(got), len(want))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("argv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCommandWithoutMonitorTemplate(t *testing.T) {
	c := NewCommand([]string{"true"}, nil)
	if c.SupportsPerMonitor() {
		t.Error("SupportsPerMonitor() = true without a monitor command")
	}
	err := c.ApplyPerMonitor(context.Background(), map[string]string{"a": "b"})
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("error = %v, want UNSUPPORTED", err)
	}
}

func TestRunArgvMissingBinary(t *testing.T) {
	err := runArgv(context.Background(), []string{"tilepaper-no-such-setter-binary"})
	if !errors.Is(err, errors.ErrCodeApply) {
		t.Errorf("error = %v, want APPLY_FAILED", err)
	}
	if retry.IsRetryable(err) {
		t.Error("a missing binary should not be retried")
	}
}

func TestResilientRetriesThenSucceeds(t *testing.T) {
	inner := &fakeApplier{perMonitor: true, failures: map[string]int{"DP-1": 2}}
	r := NewResilient(inner, 3, time.Millisecond, nil)

	err := r.ApplyMonitors(context.Background(), map[string]string{"DP-1": "a.jpg", "DP-2": "b.jpg"}, "a.jpg", false)
	if err != nil {
		t.Fatalf("ApplyMonitors: %v", err)
	}
	if len(inner.desktop) != 0 {
		t.Errorf("fallback used %v, want none", inner.desktop)
	}
	if n := countOf(inner.monitorRuns, "DP-1"); n != 3 {
		t.Errorf("DP-1 attempted %d times, want 3", n)
	}
}

func TestResilientFallsBackToPrimary(t *testing.T) {
	inner := &fakeApplier{perMonitor: true, failures: map[string]int{"DP-2": 10}}
	r := NewResilient(inner, 3, time.Millisecond, nil)

	err := r.ApplyMonitors(context.Background(), map[string]string{"DP-1": "a.jpg", "DP-2": "b.jpg"}, "primary.jpg", false)
	if err != nil {
		t.Fatalf("fallback succeeded, want nil error, got %v", err)
	}
	if n := countOf(inner.monitorRuns, "DP-2"); n != 3 {
		t.Errorf("DP-2 attempted %d times, want 3", n)
	}
	if !slices.Equal(inner.desktop, []string{"primary.jpg"}) {
		t.Errorf("desktop applies = %v, want [primary.jpg]", inner.desktop)
	}
}

func TestResilientReportsFailedFallback(t *testing.T) {
	inner := &fakeApplier{
		perMonitor: true,
		failures:   map[string]int{"DP-1": 10},
		desktopErr: errors.New(errors.ErrCodeApply, "no desktop"),
	}
	r := NewResilient(inner, 2, time.Millisecond, nil)

	err := r.ApplyMonitors(context.Background(), map[string]string{"DP-1": "a.jpg"}, "a.jpg", false)
	if !errors.Is(err, errors.ErrCodeApply) {
		t.Errorf("error = %v, want APPLY_FAILED", err)
	}
}

func TestResilientUnmappedUsesFallback(t *testing.T) {
	inner := &fakeApplier{perMonitor: true}
	r := NewResilient(inner, 3, time.Millisecond, nil)

	targets := map[string]string{"DP-1": "a.jpg", "DP-2": "b.jpg"}
	if err := r.ApplyMonitors(context.Background(), targets, "a.jpg", true); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(inner.desktop, []string{"a.jpg"}) {
		t.Errorf("desktop applies = %v, want one fallback", inner.desktop)
	}
	// The desktop apply must not land on top of the per-device wallpapers.
	if want := []string{"desktop", "DP-1", "DP-2"}; !slices.Equal(inner.order, want) {
		t.Errorf("apply order = %v, want %v", inner.order, want)
	}
}

func TestResilientUnmappedKeepsFallbackForFailedDevice(t *testing.T) {
	inner := &fakeApplier{perMonitor: true, failures: map[string]int{"DP-2": 10}}
	r := NewResilient(inner, 2, time.Millisecond, nil)

	targets := map[string]string{"DP-1": "a.jpg", "DP-2": "b.jpg"}
	if err := r.ApplyMonitors(context.Background(), targets, "a.jpg", true); err != nil {
		t.Fatalf("ApplyMonitors: %v", err)
	}
	if len(inner.desktop) != 1 {
		t.Errorf("desktop applies = %v, want exactly one", inner.desktop)
	}
	if last := inner.order[len(inner.order)-1]; last == "desktop" {
		t.Errorf("apply order = %v, desktop must not be applied last", inner.order)
	}
}

func TestResilientUnmappedReportsFailedDesktop(t *testing.T) {
	inner := &fakeApplier{perMonitor: true, desktopErr: errors.New(errors.ErrCodeApply, "no desktop")}
	r := NewResilient(inner, 1, time.Millisecond, nil)

	err := r.ApplyMonitors(context.Background(), map[string]string{"DP-1": "a.jpg"}, "a.jpg", true)
	if !errors.Is(err, errors.ErrCodeApply) {
		t.Errorf("error = %v, want APPLY_FAILED", err)
	}
	if countOf(inner.monitorRuns, "DP-1") != 1 {
		t.Errorf("mapped device should still be applied, runs = %v", inner.monitorRuns)
	}
}

func TestResilientWithoutPerMonitorSupport(t *testing.T) {
	inner := &fakeApplier{}
	r := NewResilient(inner, 3, time.Millisecond, nil)

	if err := r.ApplyMonitors(context.Background(), map[string]string{"DP-1": "a.jpg"}, "whole.jpg", false); err != nil {
		t.Fatal(err)
	}
	if len(inner.monitorRuns) != 0 {
		t.Error("per-monitor apply attempted on an applier that does not support it")
	}
	if !slices.Equal(inner.desktop, []string{"whole.jpg"}) {
		t.Errorf("desktop applies = %v", inner.desktop)
	}
}

func countOf(list []string, v string) int {
	n := 0
	for _, s := range list {
		if s == v {
			n++
		}
	}
	return n
}
