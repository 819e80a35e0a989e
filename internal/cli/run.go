package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/control"
	"github.com/matzehuels/tilepaper/pkg/engine"
)

// runCommand creates the run command, the long-running wallpaper daemon.
func (c *CLI) runCommand() *cobra.Command {
	var (
		o      overrides
		listen string
		tui    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the wallpaper changing until interrupted",
		Long: `Compose the wallpaper and keep swapping tiles at random intervals.

The first refresh fills every tile. After that each refresh replaces a few
tiles whose cool-down has passed. When auto_reconfigure is on, monitor
changes rebuild the canvases. Send SIGHUP to reload the config file and
SIGUSR1 to refresh right away.

With --listen a local HTTP control server exposes /status, /refresh and
/reconfigure. With --tui a live dashboard replaces the log output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			load := func() (*config.Config, error) {
				cfg, err := c.loadConfig()
				if err != nil {
					return nil, err
				}
				if cmd.Flags().Changed("listen") {
					cfg.Control.Listen = listen
				}
				if err := o.apply(cmd, cfg); err != nil {
					return nil, err
				}
				return cfg, nil
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			return c.runDaemon(cmd.Context(), cfg, load, tui)
		},
	}

	o.register(cmd)
	cmd.Flags().StringVar(&listen, "listen", "", "address for the control server, e.g. 127.0.0.1:7311")
	cmd.Flags().BoolVar(&tui, "tui", false, "show a live dashboard")

	return cmd
}

// runDaemon starts the engine and its companions and blocks until ctx is
// done, the dashboard quits or the control server fails.
func (c *CLI) runDaemon(ctx context.Context, cfg *config.Config, reload func() (*config.Config, error), tui bool) error {
	var events chan string
	if tui {
		events = make(chan string, 64)
		defer c.captureLogs(events)()
	} else {
		defer installLogHooks(c.Logger)()
	}

	d, err := c.openDisplay(cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	c.Logger.Info("display", "backend", d.Backend)

	e, err := c.newEngine(cfg, d)
	if err != nil {
		return err
	}
	if err := e.Start(ctx); err != nil {
		<-e.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if tui {
		g.Go(func() error {
			defer cancel()
			return runDashboard(gctx, e, events)
		})
	}
	if addr := cfg.Control.Listen; addr != "" {
		srv := control.New(e, c.Logger.With("component", "control"))
		g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
	}
	g.Go(func() error { return c.watchSignals(gctx, e, reload) })

	err = g.Wait()
	c.Logger.Info("shutting down")
	<-e.Close()
	return err
}

// watchSignals reloads the configuration on SIGHUP and runs an early
// refresh on SIGUSR1.
func (c *CLI) watchSignals(ctx context.Context, e *engine.Engine, reload func() (*config.Config, error)) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		var s os.Signal
		select {
		case <-ctx.Done():
			return nil
		case s = <-sig:
		}

		if s == syscall.SIGUSR1 {
			c.Logger.Info("refresh requested")
			e.Kick()
			continue
		}

		cfg, err := reload()
		if err != nil {
			c.Logger.Error("reload config", "err", err)
			continue
		}
		done, err := e.UpdateConfig(cfg)
		if err != nil {
			c.Logger.Error("reload config", "err", err)
			continue
		}
		go func() {
			if err := <-done; err == nil {
				c.Logger.Info("config reloaded")
			}
		}()
	}
}
