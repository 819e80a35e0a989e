package display

import (
	"context"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultDebounce coalesces the burst of events a single mode switch emits.
const DefaultDebounce = 250 * time.Millisecond

// hub fans a debounced change signal out to subscribers. start runs when the
// first subscriber arrives and stop when the last one leaves.
type hub struct {
	debounce time.Duration
	start    func()
	stop     func()

	mu     sync.Mutex
	nextID int
	subs   map[int]func()
	timer  *time.Timer
}

func newHub(debounce time.Duration, start, stop func()) *hub {
	return &hub{debounce: debounce, start: start, stop: stop, subs: make(map[int]func())}
}

func (h *hub) Subscribe(fn func()) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	first := len(h.subs) == 1
	h.mu.Unlock()

	if first && h.start != nil {
		h.start()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			last := len(h.subs) == 0
			if last && h.timer != nil {
				h.timer.Stop()
				h.timer = nil
			}
			h.mu.Unlock()
			if last && h.stop != nil {
				h.stop()
			}
		})
	}
}

// changed schedules a notification, restarting the debounce window.
func (h *hub) changed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	if h.debounce <= 0 {
		h.fireLocked()
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(h.debounce, func() {
		h.mu.Lock()
		h.timer = nil
		h.fireLocked()
		h.mu.Unlock()
	})
}

// fireLocked calls subscribers on their own goroutines so a slow handler
// never holds the hub lock.
func (h *hub) fireLocked() {
	for _, fn := range h.subs {
		go fn()
	}
}

// =============================================================================
// Poller
// =============================================================================

// Poller is a Notifier that snapshots a Provider on an interval and reports
// a change whenever the monitor list differs from the previous snapshot.
type Poller struct {
	provider Provider
	interval time.Duration
	logger   *log.Logger

	*hub
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. It does not query the provider until the first
// subscription.
func NewPoller(p Provider, interval time.Duration, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	pl := &Poller{provider: p, interval: interval, logger: logger}
	pl.hub = newHub(0, pl.startLoop, pl.stopLoop)
	return pl
}

func (p *Poller) startLoop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

func (p *Poller) stopLoop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	prev, err := p.provider.Monitors(ctx)
	if err != nil {
		p.logger.Warn("poll monitors", "err", err)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cur, err := p.provider.Monitors(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("poll monitors", "err", err)
			}
			continue
		}
		if !reflect.DeepEqual(prev, cur) {
			p.logger.Debug("monitor topology changed", "before", len(prev), "after", len(cur))
			prev = cur
			p.changed()
		}
	}
}
