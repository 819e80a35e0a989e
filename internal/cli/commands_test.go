package cli

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/errors"
)

// writeConfig writes body to a config file in a temp dir and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// pictureFolder writes n small solid-color PNGs.
func pictureFolder(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		img := imaging.New(30, 20, color.NRGBA{R: uint8(40 * i), G: 80, B: 120, A: 255})
		if err := imaging.Save(img, filepath.Join(dir, fmt.Sprintf("pic%02d.png", i))); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestParsePair(t *testing.T) {
	tests := []struct {
		in      string
		a, b    int
		wantErr bool
	}{
		{"1920x1080", 1920, 1080, false},
		{"3X5", 3, 5, false},
		{"2×4", 2, 4, false},
		{" 7 , 9 ", 7, 9, false},
		{"1920", 0, 0, true},
		{"0x4", 0, 0, true},
		{"ax4", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, b, err := parsePair(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePair(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && (a != tt.a || b != tt.b) {
				t.Errorf("parsePair(%q) = %d, %d, want %d, %d", tt.in, a, b, tt.a, tt.b)
			}
		})
	}
}

func TestLayoutCommand(t *testing.T) {
	c, out, _ := newTestCLI()
	path := writeConfig(t, "")
	preview := filepath.Join(t.TempDir(), "grid.png")

	err := execute(c, "--config", path, "layout", "400x200", "--grid", "2x4", "--cells", "--preview", preview)
	if err != nil {
		t.Fatal(err)
	}

	text := out.String()
	for _, want := range []string{"400x200", "100px", "2 rows x 4 cols", "Preview written"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	img, err := imaging.Open(preview)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 200 {
		t.Errorf("preview size = %v, want 400x200", b)
	}
}

func TestLayoutCommandRejectsBadSize(t *testing.T) {
	c, _, _ := newTestCLI()
	path := writeConfig(t, "")

	err := execute(c, "--config", path, "layout", "400")
	if errors.GetCode(err) != errors.ErrCodeInvalidDimensions {
		t.Errorf("error code = %q, want %q (err: %v)", errors.GetCode(err), errors.ErrCodeInvalidDimensions, err)
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	c, out, _ := newTestCLI()
	if err := execute(c, "--config", path, "config", "path"); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Errorf("config path = %q, want %q", out.String(), path)
	}

	if err := execute(c, "--config", path, "config", "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config init did not write %s: %v", path, err)
	}
	if err := execute(c, "--config", path, "config", "init"); err == nil {
		t.Error("config init should refuse to overwrite")
	}
	if err := execute(c, "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}

	out.Reset()
	if err := execute(c, "--config", path, "config", "show"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "rows = 3") {
		t.Errorf("config show should print defaults:\n%s", out.String())
	}
}

func TestMonitorsCommandStatic(t *testing.T) {
	path := writeConfig(t, `
[display]
backend = "static"

[[display.static]]
name = "left"
width = 1920
height = 1080
primary = true

[[display.static]]
name = "right"
x = 1920
width = 1080
height = 1920
`)
	c, out, _ := newTestCLI()
	if err := execute(c, "--config", path, "monitors"); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	for _, want := range []string{"2 monitors", "left", "right", "portrait", "rect", "desktop 3000x1920"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestOnceCommandComposes(t *testing.T) {
	src := pictureFolder(t, 6)
	dst := t.TempDir()
	path := writeConfig(t, `
[display]
backend = "static"
`)

	c, out, _ := newTestCLI()
	err := execute(c, "--config", path, "once", "--no-apply",
		"--source", src, "--destination", dst,
		"--width", "80", "--height", "80", "--rows", "2", "--cols", "2")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "Composed 4 tiles") {
		t.Errorf("output should report 4 tiles:\n%s", out.String())
	}
	img, err := imaging.Open(filepath.Join(dst, "wallpaper.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 80 {
		t.Errorf("wallpaper size = %v, want 80x80", b)
	}
}

func TestOnceCommandBadSource(t *testing.T) {
	path := writeConfig(t, "")
	c, _, _ := newTestCLI()

	err := execute(c, "--config", path, "once", "--no-apply",
		"--source", filepath.Join(t.TempDir(), "missing"), "--destination", t.TempDir())
	if errors.GetCode(err) != errors.ErrCodeInvalidFolder {
		t.Errorf("error code = %q, want %q (err: %v)", errors.GetCode(err), errors.ErrCodeInvalidFolder, err)
	}
}

func TestOverridesOnlyApplyChangedFlags(t *testing.T) {
	var o overrides
	cmd := &cobra.Command{Use: "test"}
	o.register(cmd)
	if err := cmd.ParseFlags([]string{"--rows", "4", "--per-monitor", "--source", "/pics"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Cols = 7
	if err := o.apply(cmd, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Rows != 4 || !cfg.PerMonitor || cfg.SourceFolder != "/pics" {
		t.Errorf("changed flags not applied: rows=%d per_monitor=%v source=%q", cfg.Rows, cfg.PerMonitor, cfg.SourceFolder)
	}
	if cfg.Cols != 7 || cfg.Width != 1920 {
		t.Errorf("unset flags overwrote config: cols=%d width=%d", cfg.Cols, cfg.Width)
	}
}

func TestOverridesValidate(t *testing.T) {
	var o overrides
	cmd := &cobra.Command{Use: "test"}
	o.register(cmd)
	if err := cmd.ParseFlags([]string{"--rows", "0"}); err != nil {
		t.Fatal(err)
	}
	err := o.apply(cmd, config.Default())
	if errors.GetCode(err) != errors.ErrCodeInvalidDimensions {
		t.Errorf("error code = %q, want %q", errors.GetCode(err), errors.ErrCodeInvalidDimensions)
	}
}
