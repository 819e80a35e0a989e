// Package cli implements the tilepaper command-line interface.
package cli

import (
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tilepaper/pkg/buildinfo"
	"github.com/matzehuels/tilepaper/pkg/config"
	"github.com/matzehuels/tilepaper/pkg/display"
	"github.com/matzehuels/tilepaper/pkg/engine"
	"github.com/matzehuels/tilepaper/pkg/wallpaper"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "tilepaper"

	// applyRetryDelay is the first delay between wallpaper setter attempts.
	applyRetryDelay = 250 * time.Millisecond
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	out        io.Writer
	logOut     io.Writer
}

// New creates a new CLI instance with a default logger. Command output that
// is not logging goes to out.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		out:    w,
		logOut: w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// SetOutput redirects command output (tables, status lines).
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Tilepaper composes a tiled wallpaper from a folder of pictures",
		Long: `Tilepaper keeps the desktop background alive: it arranges pictures from a
folder into a grid that fills the screen and swaps a few tiles at random
intervals. With several monitors it can build one grid per monitor, adapt
tile density to DPI and rebuild itself when the display layout changes.`,
		Version:      buildinfo.Short(),
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: "+config.DefaultPath()+")")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.onceCommand())
	root.AddCommand(c.monitorsCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Factories
// =============================================================================

// loadConfig reads the config file named by --config, or the default one.
// An explicit --config must exist.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath, c.configPath != "")
}

// openDisplay opens the display backend selected in cfg.
func (c *CLI) openDisplay(cfg *config.Config) (*display.Display, error) {
	static := make([]display.Monitor, len(cfg.Display.Static))
	for i, m := range cfg.Display.Static {
		static[i] = display.Monitor{
			Index:   i,
			Name:    m.Name,
			Bounds:  image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height),
			Primary: m.Primary,
			Scale:   m.Scale,
		}
	}
	return display.Open(display.Options{
		Backend:      cfg.Display.Backend,
		Static:       static,
		Width:        cfg.Width,
		Height:       cfg.Height,
		PollInterval: cfg.Display.PollInterval.Duration(),
		Logger:       c.Logger.With("component", "display"),
	})
}

// newEngine wires an engine to a display and the configured setter.
func (c *CLI) newEngine(cfg *config.Config, d *display.Display, opts ...engine.Option) (*engine.Engine, error) {
	setter := wallpaper.NewCommand(cfg.Apply.Command, cfg.Apply.MonitorCommand)
	applier := wallpaper.NewResilient(setter, cfg.Apply.Attempts, applyRetryDelay, c.Logger.With("component", "apply"))

	base := []engine.Option{
		engine.WithLogger(c.Logger),
		engine.WithDisplay(d.Provider, d.Notifier),
		engine.WithResilientApplier(applier),
	}
	return engine.New(cfg, append(base, opts...)...)
}
