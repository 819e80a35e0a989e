// Package config loads tilepaper settings from TOML files and the environment.
//
// Precedence, lowest to highest: [Default], the TOML file, TILEPAPER_*
// environment variables, then command-line flags applied by the CLI.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/tilepaper/pkg/errors"
)

// Config holds every setting the engine and CLI consume.
type Config struct {
	SourceFolder      string `toml:"source_folder"`
	DestinationFolder string `toml:"destination_folder"`

	Width  int `toml:"width"`
	Height int `toml:"height"`
	Rows   int `toml:"rows"`
	Cols   int `toml:"cols"`

	// MinInterval and MaxInterval bound the jittered refresh delay, in seconds.
	MinInterval int `toml:"min_interval"`
	MaxInterval int `toml:"max_interval"`

	PerMonitor      bool `toml:"per_monitor"`
	AdaptDPI        bool `toml:"adapt_dpi"`
	AutoReconfigure bool `toml:"auto_reconfigure"`
	Rescan          bool `toml:"rescan"`

	CellCooldown Duration `toml:"cell_cooldown"`
	LockTimeout  Duration `toml:"lock_timeout"`
	JPEGQuality  int      `toml:"jpeg_quality"`

	Cache    CacheConfig       `toml:"cache"`
	Display  DisplayConfig     `toml:"display"`
	Apply    ApplyConfig       `toml:"apply"`
	Control  ControlConfig     `toml:"control"`
	Monitors []MonitorOverride `toml:"monitors"`
}

// CacheConfig bounds the decoded image cache.
type CacheConfig struct {
	MaxItems      int      `toml:"max_items"`
	MaxBytes      int64    `toml:"max_bytes"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// DisplayConfig selects how monitors are discovered.
type DisplayConfig struct {
	Backend      string          `toml:"backend"` // "auto", "randr", "static"
	PollInterval Duration        `toml:"poll_interval"`
	Static       []StaticMonitor `toml:"static"`
}

// StaticMonitor describes a monitor for the static backend.
type StaticMonitor struct {
	Name    string  `toml:"name"`
	X       int     `toml:"x"`
	Y       int     `toml:"y"`
	Width   int     `toml:"width"`
	Height  int     `toml:"height"`
	Primary bool    `toml:"primary"`
	Scale   float64 `toml:"scale"`
}

// ApplyConfig holds the wallpaper setter commands. Arguments may contain
// {path} and, for MonitorCommand, {device}.
type ApplyConfig struct {
	Command        []string `toml:"command"`
	MonitorCommand []string `toml:"monitor_command"`
	Attempts       int      `toml:"attempts"`
}

// ControlConfig configures the local HTTP control surface.
type ControlConfig struct {
	Listen string `toml:"listen"` // empty disables it
}

// MonitorOverride customises one monitor, keyed by its 1-based ordinal.
// Zero fields keep the global value.
type MonitorOverride struct {
	Index    int     `toml:"index"`
	Rows     int     `toml:"rows"`
	Cols     int     `toml:"cols"`
	DPIScale float64 `toml:"dpi_scale"`
}

// Duration is a time.Duration that reads and writes TOML strings like "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// Default returns a Config with all default values.
func Default() *Config {
	return &Config{
		SourceFolder:      defaultSourceFolder(),
		DestinationFolder: defaultDestinationFolder(),
		Width:             1920,
		Height:            1080,
		Rows:              3,
		Cols:              5,
		MinInterval:       15,
		MaxInterval:       45,
		AutoReconfigure:   true,
		Rescan:            true,
		CellCooldown:      Duration(10 * time.Second),
		LockTimeout:       Duration(5 * time.Second),
		JPEGQuality:       90,
		Cache: CacheConfig{
			MaxItems:      64,
			MaxBytes:      512 << 20,
			SweepInterval: Duration(2 * time.Minute),
		},
		Display: DisplayConfig{
			Backend: "auto",
		},
		Apply: ApplyConfig{
			Attempts: 3,
		},
	}
}

func defaultSourceFolder() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Pictures")
	}
	return "Pictures"
}

func defaultDestinationFolder() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "tilepaper")
	}
	return filepath.Join(os.TempDir(), "tilepaper")
}

// Override returns the override for the 1-based monitor ordinal, if any.
func (c *Config) Override(ordinal int) (MonitorOverride, bool) {
	for _, o := range c.Monitors {
		if o.Index == ordinal {
			return o, true
		}
	}
	return MonitorOverride{}, false
}

// Validate checks the static shape of the configuration. Folder existence is
// checked when the engine starts.
func (c *Config) Validate() error {
	if c.SourceFolder == "" {
		return errors.New(errors.ErrCodeInvalidFolder, "source folder is not set")
	}
	if c.DestinationFolder == "" {
		return errors.New(errors.ErrCodeInvalidFolder, "destination folder is not set")
	}
	if err := errors.ValidateDimensions(c.Width, c.Height, c.Rows, c.Cols); err != nil {
		return err
	}
	if err := errors.ValidateInterval(c.MinInterval, c.MaxInterval); err != nil {
		return err
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New(errors.ErrCodeInvalidConfig, "jpeg_quality must be within 1-100, got %d", c.JPEGQuality)
	}
	if c.CellCooldown < 0 || c.LockTimeout <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cell_cooldown must be non-negative and lock_timeout positive")
	}
	if c.Cache.MaxItems < 1 || c.Cache.MaxBytes < 1 || c.Cache.SweepInterval <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache limits and sweep interval must be positive")
	}
	switch c.Display.Backend {
	case "", "auto", "randr", "static":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown display backend %q", c.Display.Backend)
	}
	for _, m := range c.Display.Static {
		if m.Width <= 0 || m.Height <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "static monitor %q needs a positive size", m.Name)
		}
	}
	seen := make(map[int]bool, len(c.Monitors))
	for _, o := range c.Monitors {
		if o.Index < 1 {
			return errors.New(errors.ErrCodeInvalidConfig, "monitor override index must be 1-based, got %d", o.Index)
		}
		if seen[o.Index] {
			return errors.New(errors.ErrCodeInvalidConfig, "duplicate override for monitor %d", o.Index)
		}
		seen[o.Index] = true
		if o.Rows < 0 || o.Cols < 0 || o.DPIScale < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "monitor %d override values must not be negative", o.Index)
		}
	}
	return nil
}
