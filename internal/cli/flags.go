package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/tilepaper/pkg/config"
)

// overrides holds flags that take precedence over the config file. Only
// flags the user actually set are applied.
type overrides struct {
	source      string
	destination string
	width       int
	height      int
	rows        int
	cols        int
	minInterval int
	maxInterval int
	perMonitor  bool
	adaptDPI    bool
	backend     string
}

// register binds the override flags to cmd.
func (o *overrides) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.source, "source", "s", "", "folder to pick pictures from")
	f.StringVarP(&o.destination, "destination", "d", "", "folder the composed wallpapers are written to")
	f.IntVar(&o.width, "width", 0, "canvas width in pixels (single canvas mode)")
	f.IntVar(&o.height, "height", 0, "canvas height in pixels (single canvas mode)")
	f.IntVar(&o.rows, "rows", 0, "grid rows")
	f.IntVar(&o.cols, "cols", 0, "grid columns")
	f.IntVar(&o.minInterval, "min-interval", 0, "shortest delay between refreshes, in seconds")
	f.IntVar(&o.maxInterval, "max-interval", 0, "longest delay between refreshes, in seconds")
	f.BoolVar(&o.perMonitor, "per-monitor", false, "compose one wallpaper per monitor")
	f.BoolVar(&o.adaptDPI, "adapt-dpi", false, "scale grid density with monitor DPI")
	f.StringVar(&o.backend, "display", "", "display backend: auto, randr, static")
}

// apply copies the flags that were set onto cfg and validates the result.
func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	set := func(name string, fn func()) {
		if f.Changed(name) {
			fn()
		}
	}
	set("source", func() { cfg.SourceFolder = o.source })
	set("destination", func() { cfg.DestinationFolder = o.destination })
	set("width", func() { cfg.Width = o.width })
	set("height", func() { cfg.Height = o.height })
	set("rows", func() { cfg.Rows = o.rows })
	set("cols", func() { cfg.Cols = o.cols })
	set("min-interval", func() { cfg.MinInterval = o.minInterval })
	set("max-interval", func() { cfg.MaxInterval = o.maxInterval })
	set("per-monitor", func() { cfg.PerMonitor = o.perMonitor })
	set("adapt-dpi", func() { cfg.AdaptDPI = o.adaptDPI })
	set("display", func() { cfg.Display.Backend = o.backend })
	return cfg.Validate()
}
