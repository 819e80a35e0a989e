package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/display"
	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/imagecache"
	"github.com/matzehuels/tilepaper/pkg/wallpaper"
)

// =============================================================================
// Fixtures
// =============================================================================

type fakeApplier struct {
	mu         sync.Mutex
	perMonitor bool
	desktop    []string
	monitors   []map[string]string
}

func (f *fakeApplier) SupportsPerMonitor() bool { return f.perMonitor }

func (f *fakeApplier) Apply(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.desktop = append(f.desktop, path)
	return nil
}

func (f *fakeApplier) ApplyPerMonitor(_ context.Context, targets map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitors = append(f.monitors, targets)
	return nil
}

func (f *fakeApplier) desktopCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.desktop)
}

func (f *fakeApplier) devices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.monitors {
		for d := range m {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// makeImages writes n distinct solid PNGs into dir.
func makeImages(t *testing.T, dir string, n int) []string {
	t.Helper()
	var paths []string
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("img%02d.png", i))
		c := color.NRGBA{R: uint8(i * 37), G: uint8(255 - i*11), B: uint8(i * 5), A: 255}
		if err := imaging.Save(imaging.New(32, 32, c), path); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func testConfig(t *testing.T, rows, cols int) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SourceFolder = t.TempDir()
	cfg.DestinationFolder = filepath.Join(t.TempDir(), "out")
	cfg.Width = cols * 40
	cfg.Height = rows * 40
	cfg.Rows = rows
	cfg.Cols = cols
	return cfg
}

type harness struct {
	engine  *Engine
	applier *fakeApplier
	clock   *fakeClock
	display *display.Static
}

func newHarness(t *testing.T, cfg *config.Config, perMonitor bool, monitors ...display.Monitor) *harness {
	t.Helper()
	h := &harness{applier: &fakeApplier{perMonitor: perMonitor}, clock: newClock()}
	if len(monitors) == 0 {
		h.display = display.SingleMonitor(cfg.Width, cfg.Height)
	} else {
		h.display = display.NewStatic(monitors...)
	}
	e, err := New(cfg,
		WithDisplay(h.display, h.display),
		WithResilientApplier(wallpaper.NewResilient(h.applier, 1, time.Millisecond, nil)),
		WithClock(h.clock.Now),
		WithRand(rand.New(rand.NewPCG(7, 11))),
	)
	if err != nil {
		t.Fatal(err)
	}
	h.engine = e
	t.Cleanup(func() { <-e.Close() })
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	if err := h.engine.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
}

func (h *harness) refresh(t *testing.T) CycleResult {
	t.Helper()
	res, err := h.engine.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Error != "" {
		t.Fatalf("cycle error: %s", res.Error)
	}
	return res
}

func (h *harness) displayed(t *testing.T, canvas int) []string {
	t.Helper()
	st, err := h.engine.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st.Canvases[canvas].Displayed
}

func assertUnique(t *testing.T, paths []string) {
	t.Helper()
	seen := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if seen[p] {
			t.Fatalf("path %s displayed twice on one canvas: %v", p, paths)
		}
		seen[p] = true
	}
}

// =============================================================================
// Startup
// =============================================================================

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	cfg.Rows = 0
	if _, err := New(cfg); !errors.Is(err, errors.ErrCodeInvalidDimensions) {
		t.Errorf("New() error = %v, want INVALID_DIMENSIONS", err)
	}
}

func TestInitRejectsMissingSource(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	cfg.SourceFolder = filepath.Join(cfg.SourceFolder, "missing")
	h := newHarness(t, cfg, false)

	err := h.engine.Init(context.Background())
	if !errors.Is(err, errors.ErrCodeInvalidFolder) || !errors.IsStartup(err) {
		t.Errorf("Init() error = %v, want startup INVALID_FOLDER", err)
	}
	if h.engine.State() != StateUninitialized {
		t.Errorf("State() = %s after failed Init", h.engine.State())
	}
}

func TestRefreshBeforeInit(t *testing.T) {
	h := newHarness(t, testConfig(t, 2, 2), false)
	if _, err := h.engine.Refresh(context.Background()); err == nil {
		t.Error("Refresh before Init should fail")
	}
}

func TestEmptyPoolIsNotFatal(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	h := newHarness(t, cfg, false)
	h.init(t)

	res := h.refresh(t)
	if res.Skipped != SkipNoImages {
		t.Errorf("Skipped = %q, want %q", res.Skipped, SkipNoImages)
	}

	// Pictures added later are picked up by the rescan.
	makeImages(t, cfg.SourceFolder, 4)
	res = h.refresh(t)
	if res.Updated != 4 {
		t.Errorf("Updated = %d after adding images, want 4", res.Updated)
	}
}

// =============================================================================
// Refresh cycle
// =============================================================================

func TestFirstCycleUpdatesEveryCell(t *testing.T) {
	cfg := testConfig(t, 2, 3)
	makeImages(t, cfg.SourceFolder, 10)
	h := newHarness(t, cfg, false)
	h.init(t)

	res := h.refresh(t)
	if res.Candidates != 6 || res.Updated != 6 {
		t.Errorf("Candidates=%d Updated=%d, want 6 and 6", res.Candidates, res.Updated)
	}

	want := filepath.Join(cfg.DestinationFolder, "wallpaper.jpg")
	if !slices.Equal(res.Outputs, []string{want}) {
		t.Errorf("Outputs = %v, want [%s]", res.Outputs, want)
	}
	img, err := imaging.Open(want)
	if err != nil {
		t.Fatalf("output not readable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != cfg.Width || b.Dy() != cfg.Height {
		t.Errorf("output size = %v, want %dx%d", b.Size(), cfg.Width, cfg.Height)
	}
	if got := h.applier.desktopCalls(); !slices.Equal(got, []string{want}) {
		t.Errorf("applied %v, want [%s]", got, want)
	}

	entries, _ := os.ReadDir(cfg.DestinationFolder)
	if len(entries) != 1 {
		t.Errorf("destination holds %d files, temporary files should be gone", len(entries))
	}
}

func TestCooldownBlocksImmediateRefresh(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	makeImages(t, cfg.SourceFolder, 8)
	h := newHarness(t, cfg, false)
	h.init(t)

	h.refresh(t)
	h.clock.Advance(5 * time.Second)
	res := h.refresh(t)

	if res.Updated != 0 || res.Skipped != SkipNothingDue {
		t.Errorf("Updated=%d Skipped=%q, want no cells due", res.Updated, res.Skipped)
	}
	if n := len(h.applier.desktopCalls()); n != 1 {
		t.Errorf("applied %d times, want 1", n)
	}
}

func TestRecentlyUpdatedCellsAreNotSelected(t *testing.T) {
	cfg := testConfig(t, 4, 4)
	makeImages(t, cfg.SourceFolder, 40)
	h := newHarness(t, cfg, false)
	h.init(t)

	h.refresh(t)
	h.clock.Advance(11 * time.Second)
	before := h.displayed(t, 0)

	res := h.refresh(t)
	if res.Candidates != 16 {
		t.Errorf("Candidates = %d, want 16 after the cool-down", res.Candidates)
	}
	if res.Updated < 3 || res.Updated > 5 {
		t.Errorf("Updated = %d, want between 3 and 16/4+1", res.Updated)
	}
	middle := h.displayed(t, 0)
	changed := changedCells(before, middle)
	if len(changed) != res.Updated {
		t.Fatalf("%d cells changed, result says %d", len(changed), res.Updated)
	}

	// Immediately after: cells from the last cycle are cooling down.
	res = h.refresh(t)
	if res.Candidates != 16-len(changed) {
		t.Errorf("Candidates = %d, want %d", res.Candidates, 16-len(changed))
	}
	after := h.displayed(t, 0)
	for _, i := range changedCells(middle, after) {
		if slices.Contains(changed, i) {
			t.Errorf("cell %d refreshed twice within the cool-down", i)
		}
	}
}

func changedCells(a, b []string) []int {
	var out []int
	for i := range a {
		if a[i] != b[i] {
			out = append(out, i)
		}
	}
	return out
}

func TestNoDuplicateImagesPerCanvas(t *testing.T) {
	cfg := testConfig(t, 3, 3)
	makeImages(t, cfg.SourceFolder, 12)
	h := newHarness(t, cfg, false)
	h.init(t)

	for range 15 {
		h.refresh(t)
		assertUnique(t, h.displayed(t, 0))
		h.clock.Advance(11 * time.Second)
	}
	shown := h.displayed(t, 0)
	if slices.Contains(shown, "") {
		t.Errorf("every cell should show an image: %v", shown)
	}
}

func TestExhaustedPoolSkipsRemainingCells(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	makeImages(t, cfg.SourceFolder, 2)
	h := newHarness(t, cfg, false)
	h.init(t)

	res := h.refresh(t)
	if res.Updated != 2 {
		t.Errorf("Updated = %d, want 2 with only two images", res.Updated)
	}
	assertUnique(t, h.displayed(t, 0))
}

func TestUnavailableImagesAreSkipped(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	makeImages(t, cfg.SourceFolder, 3)
	bad := filepath.Join(cfg.SourceFolder, "broken.jpg")
	if err := os.WriteFile(bad, []byte("not a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, cfg, false)
	h.init(t)

	res := h.refresh(t)
	if res.Updated != 3 {
		t.Errorf("Updated = %d, want 3 with one broken file", res.Updated)
	}
	if !h.engine.Cache().Unavailable(bad) {
		t.Error("broken file should be marked unavailable")
	}
	if slices.Contains(h.displayed(t, 0), bad) {
		t.Error("broken file must not be displayed")
	}
}

func TestSelectCount(t *testing.T) {
	lowest := func(int) int { return 0 }
	highest := func(n int) int { return n - 1 }

	tests := []struct {
		name       string
		due, total int
		intN       func(int) int
		want       int
	}{
		{"none due", 0, 16, highest, 0},
		{"two due", 2, 16, highest, 2},
		{"three due", 3, 16, highest, 3},
		{"small canvas floors at three", 4, 4, highest, 3},
		{"upper bound is a quarter plus one", 16, 16, highest, 5},
		{"upper bound on forty cells", 40, 40, highest, 11},
		{"upper bound limited by due", 10, 100, highest, 10},
		{"lower bound", 50, 100, lowest, 3},
		{"large canvas", 100, 100, highest, 26},
		{"never more than due", 5, 100, highest, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectCount(tt.intN, tt.due, tt.total); got != tt.want {
				t.Errorf("selectCount(%d, %d) = %d, want %d", tt.due, tt.total, got, tt.want)
			}
		})
	}
}

func TestNextDelayWithinRange(t *testing.T) {
	cfg := testConfig(t, 1, 1)
	cfg.MinInterval, cfg.MaxInterval = 2, 5
	h := newHarness(t, cfg, false)

	for range 200 {
		d := h.engine.nextDelay()
		if d < 2*time.Second || d > 5*time.Second {
			t.Fatalf("nextDelay() = %v, want within [2s, 5s]", d)
		}
	}
}

// =============================================================================
// Monitors
// =============================================================================

func monitor(name string, x, y, w, h int, primary bool) display.Monitor {
	return display.Monitor{Name: name, Bounds: image.Rect(x, y, x+w, y+h), Primary: primary}
}

func TestPerMonitorCanvases(t *testing.T) {
	cfg := testConfig(t, 2, 4)
	cfg.PerMonitor = true
	makeImages(t, cfg.SourceFolder, 10)
	h := newHarness(t, cfg, true,
		monitor("A", 0, 0, 200, 100, true),
		monitor("B", 200, 0, 100, 200, false),
	)
	h.init(t)
	res := h.refresh(t)

	wantOut := []string{
		filepath.Join(cfg.DestinationFolder, "wallpaper_monitor_1.jpg"),
		filepath.Join(cfg.DestinationFolder, "wallpaper_monitor_2.jpg"),
	}
	if !slices.Equal(res.Outputs, wantOut) {
		t.Errorf("Outputs = %v, want %v", res.Outputs, wantOut)
	}

	st, err := h.engine.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.PerMonitor || len(st.Canvases) != 2 {
		t.Fatalf("status = %+v, want two per-monitor canvases", st)
	}
	if c := st.Canvases[0]; c.Rows != 2 || c.Cols != 4 || c.Device != "A" || !c.Primary {
		t.Errorf("landscape canvas = %+v", c)
	}
	if c := st.Canvases[1]; c.Rows != 4 || c.Cols != 2 || c.Device != "B" || c.Width != 100 || c.Height != 200 {
		t.Errorf("portrait canvas should swap rows and cols: %+v", c)
	}
	for i := range st.Canvases {
		assertUnique(t, st.Canvases[i].Displayed)
	}
	if got := h.applier.devices(); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("per-monitor devices = %v, want [A B]", got)
	}
	if len(h.applier.desktopCalls()) != 0 {
		t.Error("no fallback expected when every monitor is matched")
	}
}

func TestPerMonitorOverridesAndDPI(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	cfg.PerMonitor = true
	cfg.AdaptDPI = true
	cfg.Monitors = []config.MonitorOverride{{Index: 2, Rows: 1, Cols: 3, DPIScale: 2}}
	makeImages(t, cfg.SourceFolder, 4)
	h := newHarness(t, cfg, true,
		monitor("A", 0, 0, 100, 100, true),
		monitor("B", 100, 0, 90, 60, false),
	)
	h.init(t)

	st, _ := h.engine.Status(context.Background())
	if c := st.Canvases[0]; c.Width != 100 || c.Rows != 2 || c.Cols != 2 {
		t.Errorf("monitor 1 = %+v, want 100 wide 2x2", c)
	}
	if c := st.Canvases[1]; c.Width != 180 || c.Height != 120 || c.Rows != 1 || c.Cols != 3 {
		t.Errorf("monitor 2 = %+v, want 180x120 1x3", c)
	}
}

func TestPerMonitorUnsupportedUsesSingleCanvas(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	cfg.PerMonitor = true
	makeImages(t, cfg.SourceFolder, 4)
	h := newHarness(t, cfg, false,
		monitor("A", 0, 0, 100, 100, true),
		monitor("B", 100, 0, 100, 100, false),
	)
	h.init(t)
	res := h.refresh(t)

	if len(res.Outputs) != 1 || filepath.Base(res.Outputs[0]) != "wallpaper.jpg" {
		t.Errorf("Outputs = %v, want single wallpaper.jpg", res.Outputs)
	}
}

func TestGridFor(t *testing.T) {
	cfg := &config.Config{Rows: 2, Cols: 5}
	tests := []struct {
		name       string
		m          display.Monitor
		rows, cols int
	}{
		{"landscape", display.Monitor{}, 2, 5},
		{"portrait swaps", display.Monitor{Orientation: display.Portrait}, 5, 2},
		{"override wins over portrait", display.Monitor{Orientation: display.Portrait, Rows: 3}, 3, 5},
		{"full override", display.Monitor{Rows: 1, Cols: 1}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c := gridFor(cfg, tt.m)
			if r != tt.rows || c != tt.cols {
				t.Errorf("gridFor() = %dx%d, want %dx%d", r, c, tt.rows, tt.cols)
			}
		})
	}
}

// =============================================================================
// Reconfiguration and shutdown
// =============================================================================

func TestReconfigureRebuildsCanvases(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	cfg.PerMonitor = true
	makeImages(t, cfg.SourceFolder, 6)
	h := newHarness(t, cfg, true, monitor("A", 0, 0, 80, 80, true))
	h.init(t)
	h.refresh(t)

	h.display.Set(
		monitor("A", 0, 0, 80, 80, true),
		monitor("B", 80, 0, 80, 80, false),
	)
	if err := <-h.engine.Reconfigure("test"); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}

	st, _ := h.engine.Status(context.Background())
	if len(st.Canvases) != 2 {
		t.Fatalf("got %d canvases after reconfiguration, want 2", len(st.Canvases))
	}
	// The forced refresh filled both canvases even though the old cells
	// were still cooling down.
	for i, c := range st.Canvases {
		if slices.Contains(c.Displayed, "") {
			t.Errorf("canvas %d has empty cells after forced refresh", i)
		}
	}
	if h.engine.State() != StateRunning {
		t.Errorf("State() = %s, want running", h.engine.State())
	}
}

func TestUpdateConfigReconfigures(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	makeImages(t, cfg.SourceFolder, 6)
	h := newHarness(t, cfg, false)
	h.init(t)

	next := *cfg
	next.Rows, next.Cols = 1, 2
	done, err := h.engine.UpdateConfig(&next)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	st, _ := h.engine.Status(context.Background())
	if c := st.Canvases[0]; c.Rows != 1 || c.Cols != 2 {
		t.Errorf("canvas grid = %dx%d, want 1x2", c.Rows, c.Cols)
	}

	bad := next
	bad.Cols = 0
	if _, err := h.engine.UpdateConfig(&bad); err == nil {
		t.Error("invalid config should be rejected")
	}
}

func TestStartFollowsTopologyChanges(t *testing.T) {
	cfg := testConfig(t, 1, 1)
	cfg.PerMonitor = true
	cfg.MinInterval, cfg.MaxInterval = 600, 600
	makeImages(t, cfg.SourceFolder, 3)
	h := newHarness(t, cfg, true, monitor("A", 0, 0, 50, 50, true))

	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.display.Set(
		monitor("A", 0, 0, 50, 50, true),
		monitor("B", 50, 0, 50, 50, false),
		monitor("C", 100, 0, 50, 50, false),
	)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if st, err := h.engine.Status(context.Background()); err == nil && len(st.Canvases) == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("engine did not rebuild canvases after the topology change")
}

func TestSharedCacheServesSecondEngine(t *testing.T) {
	cfg := testConfig(t, 1, 2)
	makeImages(t, cfg.SourceFolder, 2)
	shared := imagecache.New(imagecache.WithMaxItems(16))

	for i := range 2 {
		s := display.SingleMonitor(cfg.Width, cfg.Height)
		e, err := New(cfg,
			WithDisplay(s, s),
			WithApplier(&fakeApplier{}),
			WithCache(shared),
		)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { <-e.Close() })
		if err := e.Init(context.Background()); err != nil {
			t.Fatalf("engine %d Init: %v", i, err)
		}
		if res, err := e.Refresh(context.Background()); err != nil || res.Updated != 2 {
			t.Fatalf("engine %d Refresh = %+v, %v", i, res, err)
		}
	}

	st := shared.Stats()
	if st.Misses != 2 || st.Hits != 2 {
		t.Errorf("shared cache hits/misses = %d/%d, want 2/2", st.Hits, st.Misses)
	}
}

func TestKickRunsCycleEarly(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	cfg.MinInterval, cfg.MaxInterval = 600, 600
	makeImages(t, cfg.SourceFolder, 8)
	h := newHarness(t, cfg, false)

	if err := h.engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitCycles := func(n int) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if st, err := h.engine.Status(context.Background()); err == nil && st.Cycles >= n {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("engine did not reach %d cycles", n)
	}

	waitCycles(1)
	h.engine.Kick()
	waitCycles(2)
}

func TestCloseDisposes(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	makeImages(t, cfg.SourceFolder, 4)
	h := newHarness(t, cfg, false)
	h.init(t)
	h.refresh(t)

	select {
	case <-h.engine.Close():
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not finish")
	}
	if h.engine.State() != StateDisposed {
		t.Errorf("State() = %s, want disposed", h.engine.State())
	}
	if _, err := h.engine.Refresh(context.Background()); !errors.Is(err, errors.ErrCodeClosed) {
		t.Errorf("Refresh after Close = %v, want CLOSED", err)
	}
	if err := <-h.engine.Reconfigure("late"); !errors.Is(err, errors.ErrCodeClosed) {
		t.Errorf("Reconfigure after Close = %v, want CLOSED", err)
	}
	<-h.engine.Close() // idempotent
}

func TestCloseWithBusyLockOnlyDetaches(t *testing.T) {
	cfg := testConfig(t, 2, 2)
	cfg.LockTimeout = config.Duration(20 * time.Millisecond)
	makeImages(t, cfg.SourceFolder, 4)
	h := newHarness(t, cfg, false)
	h.init(t)
	h.refresh(t)

	// Hold the canvas lock the way a long-running cycle would.
	if err := h.engine.lock.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	canvases := h.engine.canvases

	select {
	case <-h.engine.Close():
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not finish")
	}
	if len(h.engine.canvases) != len(canvases) {
		t.Error("canvases must not be replaced without the lock")
	}
	for _, c := range canvases {
		if !c.Disposed() {
			t.Error("pixel buffer should be detached")
		}
		for _, cell := range c.Cells() {
			if cell.Path() == "" {
				t.Error("cells must be left alone without the lock")
			}
		}
	}
	h.engine.release()
}
