package display

import (
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tilepaper/pkg/errors"
)

// Backend names accepted by [Open].
const (
	BackendAuto   = "auto"
	BackendRandR  = "randr"
	BackendStatic = "static"
)

// Options selects and configures a display backend.
type Options struct {
	Backend string
	// Static monitors; when empty the static backend reports one monitor of
	// Width×Height.
	Static        []Monitor
	Width, Height int
	// PollInterval, when positive, replaces native change events with a
	// snapshot poller.
	PollInterval time.Duration
	Logger       *log.Logger
}

// Display bundles a provider with its change notifier.
type Display struct {
	Provider
	Notifier
	Backend string

	closer func() error
}

// Close releases backend resources.
func (d *Display) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// Open builds the configured backend. "auto" tries RandR and falls back to
// the static backend when no X server is reachable.
func Open(opts Options) (*Display, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var d *Display
	switch opts.Backend {
	case BackendRandR, BackendAuto, "":
		r, err := NewRandR(logger)
		if err == nil {
			d = &Display{Provider: r, Notifier: r, Backend: BackendRandR, closer: r.Close}
			break
		}
		if opts.Backend == BackendRandR {
			return nil, err
		}
		logger.Info("no X server, using static monitors", "err", err)
		fallthrough
	case BackendStatic:
		s := staticFrom(opts)
		d = &Display{Provider: s, Notifier: s, Backend: BackendStatic}
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown display backend %q", opts.Backend)
	}

	if opts.PollInterval > 0 {
		d.Notifier = NewPoller(d.Provider, opts.PollInterval, logger)
	}
	return d, nil
}

func staticFrom(opts Options) *Static {
	if len(opts.Static) > 0 {
		return NewStatic(opts.Static...)
	}
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	return NewStatic(Monitor{Name: "default", Bounds: image.Rect(0, 0, w, h), Primary: true, Scale: 1})
}
