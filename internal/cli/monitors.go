package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tilepaper/pkg/display"
	"github.com/matzehuels/tilepaper/pkg/engine"
)

var monitorHeaders = []string{"#", "Name", "Bounds", "Scale", "Orientation", "Device", "Match"}

// monitorsCommand creates the monitors command, which lists the monitors the
// display backend reports and the device each one maps to.
func (c *CLI) monitorsCommand() *cobra.Command {
	var (
		backend string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "monitors",
		Short: "List monitors and their wallpaper devices",
		Long: `List monitors in the order tilepaper numbers them, with the device each
one is matched to for per-monitor wallpapers.

With --watch the list is printed again whenever the display layout changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("display") {
				cfg.Display.Backend = backend
			}

			d, err := c.openDisplay(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx := cmd.Context()
			if err := c.printMonitors(ctx, d); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return c.watchMonitors(ctx, d)
		},
	}

	cmd.Flags().StringVar(&backend, "display", "", "display backend: auto, randr, static")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "print again on every topology change")

	return cmd
}

func (c *CLI) printMonitors(ctx context.Context, d *display.Display) error {
	monitors, err := d.Monitors(ctx)
	if err != nil {
		return err
	}
	devices, err := d.Devices(ctx)
	if err != nil {
		return err
	}
	if len(monitors) == 0 {
		c.printWarning("No monitors reported by the %s backend", d.Backend)
		return nil
	}

	matches := display.MatchDevices(monitors, devices)
	status := make([]engine.MonitorStatus, len(monitors))
	for i, m := range monitors {
		status[i] = engine.MonitorStatus{Monitor: m, Device: matches[i].Device, Match: matches[i].Pass.String()}
	}

	c.printInfo("%d monitors, %d devices (%s backend)", len(monitors), len(devices), d.Backend)
	c.printTable(monitorHeaders, monitorRows(status))
	desktop := display.Desktop(monitors)
	c.printDetail("desktop %dx%d at %d,%d", desktop.Dx(), desktop.Dy(), desktop.Min.X, desktop.Min.Y)
	return nil
}

func (c *CLI) watchMonitors(ctx context.Context, d *display.Display) error {
	changed := make(chan struct{}, 1)
	unsubscribe := d.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	c.printNewline()
	c.printDetail("watching for display changes, ctrl+c to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			c.printNewline()
			if err := c.printMonitors(ctx, d); err != nil {
				c.printError("%v", err)
			}
		}
	}
}

func monitorRows(monitors []engine.MonitorStatus) [][]string {
	rows := make([][]string, 0, len(monitors))
	for _, m := range monitors {
		ordinal := fmt.Sprintf("%d", m.Ordinal())
		if m.Primary {
			ordinal += " " + iconPrimary
		}
		b := m.Bounds
		rows = append(rows, []string{
			ordinal,
			orDash(m.Name),
			fmt.Sprintf("%dx%d+%d+%d", b.Dx(), b.Dy(), b.Min.X, b.Min.Y),
			fmt.Sprintf("%.2f", m.Scale),
			m.Orientation.String(),
			orDash(m.Device),
			m.Match,
		})
	}
	return rows
}
