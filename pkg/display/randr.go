package display

import (
	"cmp"
	"context"
	"image"
	"io"
	"slices"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/tilepaper/pkg/errors"
)

// RandR reads monitors from an X server through the RandR extension and
// listens for screen, CRTC and output change events.
type RandR struct {
	conn   *xgb.Conn
	root   xproto.Window
	logger *log.Logger

	*hub
	mu     sync.Mutex
	events *xgb.Conn
}

// NewRandR connects to the X server named by $DISPLAY.
func NewRandR(logger *log.Logger) (*RandR, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	conn, root, err := dialRandR()
	if err != nil {
		return nil, err
	}
	r := &RandR{conn: conn, root: root, logger: logger}
	r.hub = newHub(DefaultDebounce, r.listen, r.unlisten)
	return r, nil
}

func dialRandR() (*xgb.Conn, xproto.Window, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeDisplay, err, "connect to X server")
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, 0, errors.Wrap(errors.ErrCodeDisplay, err, "initialise RandR")
	}
	root := xproto.Setup(conn).DefaultScreen(conn).Root
	return conn, root, nil
}

// output is one connected output with an active CRTC.
type output struct {
	name    string
	id      randr.Output
	bounds  image.Rectangle
	mmWidth uint32
	rotated bool
}

func (r *RandR) outputs() ([]output, randr.Output, error) {
	res, err := randr.GetScreenResources(r.conn, r.root).Reply()
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeDisplay, err, "query screen resources")
	}
	var primary randr.Output
	if p, err := randr.GetOutputPrimary(r.conn, r.root).Reply(); err == nil {
		primary = p.Output
	}

	var outs []output
	for _, id := range res.Outputs {
		info, err := randr.GetOutputInfo(r.conn, id, res.ConfigTimestamp).Reply()
		if err != nil {
			r.logger.Debug("skip output", "id", id, "err", err)
			continue
		}
		if info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}
		crtc, err := randr.GetCrtcInfo(r.conn, info.Crtc, res.ConfigTimestamp).Reply()
		if err != nil || crtc.Width == 0 || crtc.Height == 0 {
			continue
		}
		outs = append(outs, output{
			name:    string(info.Name),
			id:      id,
			bounds:  image.Rect(int(crtc.X), int(crtc.Y), int(crtc.X)+int(crtc.Width), int(crtc.Y)+int(crtc.Height)),
			mmWidth: info.MmWidth,
			rotated: crtc.Rotation&(randr.RotationRotate90|randr.RotationRotate270) != 0,
		})
	}
	return outs, primary, nil
}

// Monitors returns connected outputs ordered left to right, then top to
// bottom.
func (r *RandR) Monitors(ctx context.Context) ([]Monitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outs, primary, err := r.outputs()
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(outs, func(a, b output) int {
		if n := cmp.Compare(a.bounds.Min.X, b.bounds.Min.X); n != 0 {
			return n
		}
		return cmp.Compare(a.bounds.Min.Y, b.bounds.Min.Y)
	})

	mons := make([]Monitor, len(outs))
	for i, o := range outs {
		scale := 1.0
		if o.mmWidth > 0 {
			// Physical width follows the panel, not the rotation.
			px := o.bounds.Dx()
			if o.rotated {
				px = o.bounds.Dy()
			}
			scale = ScaleFromDPI(float64(px) / (float64(o.mmWidth) / 25.4))
		}
		mons[i] = Monitor{
			Index:       i,
			Name:        o.name,
			Bounds:      o.bounds,
			Primary:     o.id == primary,
			Scale:       scale,
			Orientation: OrientationOf(o.bounds),
		}
	}
	return mons, nil
}

// Devices returns outputs in server order, identified by output name.
func (r *RandR) Devices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outs, _, err := r.outputs()
	if err != nil {
		return nil, err
	}
	devs := make([]Device, len(outs))
	for i, o := range outs {
		devs[i] = Device{ID: o.name, Bounds: o.bounds}
	}
	return devs, nil
}

// listen opens a second connection for events so closing it unblocks
// WaitForEvent without disturbing queries on the main connection.
func (r *RandR) listen() {
	conn, root, err := dialRandR()
	if err != nil {
		r.logger.Warn("topology events unavailable", "err", err)
		return
	}
	mask := uint16(randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskOutputChange)
	if err := randr.SelectInputChecked(conn, root, mask).Check(); err != nil {
		r.logger.Warn("select RandR events", "err", err)
		conn.Close()
		return
	}

	r.mu.Lock()
	r.events = conn
	r.mu.Unlock()

	go func() {
		for {
			ev, xerr := conn.WaitForEvent()
			if ev == nil && xerr == nil {
				return
			}
			if xerr != nil {
				r.logger.Debug("X error", "err", xerr)
				continue
			}
			switch ev.(type) {
			case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
				r.changed()
			}
		}
	}()
}

func (r *RandR) unlisten() {
	r.mu.Lock()
	conn := r.events
	r.events = nil
	r.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close releases both X connections.
func (r *RandR) Close() error {
	r.unlisten()
	r.conn.Close()
	return nil
}
