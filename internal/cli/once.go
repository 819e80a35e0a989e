package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/engine"
)

// composeOnly is an applier that leaves the desktop alone.
type composeOnly struct{}

func (composeOnly) Apply(context.Context, string) error                      { return nil }
func (composeOnly) ApplyPerMonitor(context.Context, map[string]string) error { return nil }
func (composeOnly) SupportsPerMonitor() bool                                 { return true }

// onceCommand creates the once command, which composes and applies a full
// wallpaper and exits.
func (c *CLI) onceCommand() *cobra.Command {
	var (
		o       overrides
		noApply bool
	)

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Compose the wallpaper once and exit",
		Long: `Compose a complete wallpaper, fill every tile, apply it and exit.

With --no-apply the files are written to the destination folder but the
desktop is left untouched, which is handy for previews and headless use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := o.apply(cmd, cfg); err != nil {
				return err
			}
			var opts []engine.Option
			if noApply {
				opts = append(opts, engine.WithApplier(composeOnly{}))
			}
			return c.runOnce(cmd.Context(), cfg, opts...)
		},
	}

	o.register(cmd)
	cmd.Flags().BoolVar(&noApply, "no-apply", false, "write the wallpaper files without setting them")

	return cmd
}

// runOnce initialises an engine, runs a single full cycle and disposes it.
func (c *CLI) runOnce(ctx context.Context, cfg *config.Config, opts ...engine.Option) error {
	defer installLogHooks(c.Logger)()

	d, err := c.openDisplay(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	e, err := c.newEngine(cfg, d, opts...)
	if err != nil {
		return err
	}
	defer func() { <-e.Close() }()

	spinner := c.spinner(ctx, "Reading monitors and pictures...")
	if err := e.Init(ctx); err != nil {
		spinner.StopWithError("Initialisation failed")
		return err
	}
	spinner.SetMessage("Composing wallpaper...")

	res, err := e.Refresh(ctx)
	if err != nil {
		spinner.StopWithError("Refresh failed")
		return err
	}
	switch {
	case res.Error != "":
		spinner.StopWithError(res.Error)
		return fmt.Errorf("refresh: %s", res.Error)
	case res.Skipped != "":
		spinner.Stop()
		c.printWarning("Nothing composed: %s", res.Skipped)
		return nil
	}
	spinner.StopWithSuccess(fmt.Sprintf("Composed %d tiles", res.Updated))
	c.Logger.Debug("wallpaper composed", "took", spinner.Elapsed().Round(time.Millisecond), "outputs", len(res.Outputs))

	for _, out := range res.Outputs {
		c.printFile(out)
	}
	c.printNewline()
	c.printNextStep("Keep it changing", appName+" run")
	return nil
}
