// Package wallpaper hands finished images to the desktop.
//
// An [Applier] sets a file as the background of the whole desktop or of
// individual monitors. [Command] runs external setter programs; [Resilient]
// adds per-monitor retries and a whole-desktop fallback on top of any
// Applier.
package wallpaper

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/matzehuels/tilepaper/pkg/errors"
	"github.com/matzehuels/tilepaper/pkg/retry"
)

// Applier sets desktop backgrounds.
type Applier interface {
	// Apply sets path as the background of the whole desktop.
	Apply(ctx context.Context, path string) error
	// ApplyPerMonitor sets each device's background to its mapped path.
	ApplyPerMonitor(ctx context.Context, targets map[string]string) error
	// SupportsPerMonitor reports whether ApplyPerMonitor can work at all.
	SupportsPerMonitor() bool
}

// Placeholders substituted into command arguments.
const (
	PathPlaceholder   = "{path}"
	DevicePlaceholder = "{device}"
)

// DefaultCommand sets a single image across all X11 screens.
var DefaultCommand = []string{"feh", "--no-fehbg", "--bg-fill", PathPlaceholder}

// Command applies wallpapers by running external programs. Each argument
// may contain {path} and, for the per-monitor command, {device}.
type Command struct {
	Desktop []string
	Monitor []string

	// run is swapped out in tests.
	run func(ctx context.Context, argv []string) error
}

// NewCommand builds a command applier. An empty desktop command uses
// [DefaultCommand]; an empty monitor command disables per-monitor mode.
func NewCommand(desktop, monitor []string) *Command {
	if len(desktop) == 0 {
		desktop = DefaultCommand
	}
	return &Command{Desktop: desktop, Monitor: monitor, run: runArgv}
}

// SupportsPerMonitor reports whether a monitor command is configured.
func (c *Command) SupportsPerMonitor() bool { return len(c.Monitor) > 0 }

// Apply runs the desktop command for path.
func (c *Command) Apply(ctx context.Context, path string) error {
	return c.run(ctx, expand(c.Desktop, path, ""))
}

// ApplyPerMonitor runs the monitor command once per device. It stops at the
// first failure.
func (c *Command) ApplyPerMonitor(ctx context.Context, targets map[string]string) error {
	if !c.SupportsPerMonitor() {
		return errors.New(errors.ErrCodeUnsupported, "no per-monitor command configured")
	}
	for device, path := range targets {
		if err := c.run(ctx, expand(c.Monitor, path, device)); err != nil {
			return err
		}
	}
	return nil
}

func expand(tmpl []string, path, device string) []string {
	out := make([]string, len(tmpl))
	r := strings.NewReplacer(PathPlaceholder, path, DevicePlaceholder, device)
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// runArgv executes argv. A missing binary is permanent; a non-zero exit is
// retryable since setters commonly fail while the compositor restarts.
func runArgv(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "empty wallpaper command")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return errors.Wrap(errors.ErrCodeApply, err, "%s not found in PATH", argv[0])
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		return retry.Retryable(errors.Wrap(errors.ErrCodeApply, err, "%s: %s", argv[0], msg))
	}
	return nil
}
