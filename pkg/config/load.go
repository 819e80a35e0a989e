package config

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/tilepaper/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TILEPAPER_"

//go:embed default.toml
var defaultFile []byte

// DefaultPath returns $XDG_CONFIG_HOME/tilepaper/config.toml, or the
// platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "tilepaper", "config.toml")
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error unless mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if err := cfg.loadTOML(path); err != nil {
		if !os.IsNotExist(err) || mustExist {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.SourceFolder = expandHome(cfg.SourceFolder)
	cfg.DestinationFolder = expandHome(cfg.DestinationFolder)
	return cfg, nil
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// loadTOML loads configuration from a TOML file and rejects unknown keys.
func (c *Config) loadTOML(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv applies TILEPAPER_* overrides. lookup is os.LookupEnv outside
// tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	fail := func(name, v string, err error) {
		if firstErr == nil {
			firstErr = errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s%s=%q", EnvPrefix, name, v)
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(name, v, err)
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				fail(name, v, err)
				return
			}
			*dst = b
		}
	}
	dur := func(name string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				fail(name, v, err)
				return
			}
			*dst = Duration(d)
		}
	}

	str("SOURCE_FOLDER", &c.SourceFolder)
	str("DESTINATION_FOLDER", &c.DestinationFolder)
	num("WIDTH", &c.Width)
	num("HEIGHT", &c.Height)
	num("ROWS", &c.Rows)
	num("COLS", &c.Cols)
	num("MIN_INTERVAL", &c.MinInterval)
	num("MAX_INTERVAL", &c.MaxInterval)
	flag("PER_MONITOR", &c.PerMonitor)
	flag("ADAPT_DPI", &c.AdaptDPI)
	flag("AUTO_RECONFIGURE", &c.AutoReconfigure)
	flag("RESCAN", &c.Rescan)
	dur("CELL_COOLDOWN", &c.CellCooldown)
	dur("LOCK_TIMEOUT", &c.LockTimeout)
	num("JPEG_QUALITY", &c.JPEGQuality)
	num("CACHE_MAX_ITEMS", &c.Cache.MaxItems)
	dur("CACHE_SWEEP_INTERVAL", &c.Cache.SweepInterval)
	str("DISPLAY_BACKEND", &c.Display.Backend)
	dur("DISPLAY_POLL_INTERVAL", &c.Display.PollInterval)
	str("CONTROL_LISTEN", &c.Control.Listen)

	if v, ok := lookup(EnvPrefix + "CACHE_MAX_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail("CACHE_MAX_BYTES", v, err)
		} else {
			c.Cache.MaxBytes = n
		}
	}
	if v, ok := lookup(EnvPrefix + "APPLY_COMMAND"); ok && v != "" {
		c.Apply.Command = strings.Fields(v)
	}
	if v, ok := lookup(EnvPrefix + "APPLY_MONITOR_COMMAND"); ok && v != "" {
		c.Apply.MonitorCommand = strings.Fields(v)
	}
	return firstErr
}

// WriteDefault writes the commented default file to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrCodeInvalidConfig, "%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "create config directory")
	}
	if err := os.WriteFile(path, defaultFile, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "write %s", path)
	}
	return nil
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
