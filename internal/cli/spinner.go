package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner is a one-line progress indicator with the elapsed time next to
// its message. It stops on its own when ctx is cancelled.
type Spinner struct {
	w      io.Writer
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu      sync.Mutex
	message string
	started time.Time
	drawn   int // width of the last frame, for clearing
}

// newSpinner creates a spinner writing to w that stops when ctx is cancelled.
func newSpinner(ctx context.Context, w io.Writer, message string) *Spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       w,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		message: message,
	}
}

// spinner starts a spinner on the CLI's output.
func (c *CLI) spinner(ctx context.Context, message string) *Spinner {
	s := newSpinner(ctx, c.out, message)
	s.Start()
	return s
}

// Start begins the animation and the elapsed-time clock.
func (s *Spinner) Start() {
	s.mu.Lock()
	s.started = s.now()
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clear()
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.draw(spinnerFrames[i%len(spinnerFrames)])
			}
		}
	}()
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.message + " " + s.elapsedLocked()
	s.clearLocked()
	fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(text))
	s.drawn = len([]rune(text)) + 2
}

// SetMessage replaces the text shown next to the spinner. The clock keeps
// running, so a multi-step command shows its total time.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.message = message
}

// Elapsed returns the time since Start.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.started)
}

func (s *Spinner) elapsedLocked() string {
	return formatElapsed(s.now().Sub(s.started))
}

// Stop stops the spinner and clears the line. It is idempotent.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		<-s.stopped
		s.cancel()
		s.clear()
	})
}

func (s *Spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Spinner) clearLocked() {
	if s.drawn == 0 {
		return
	}
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.drawn))
	s.drawn = 0
}

// StopWithSuccess stops the spinner and prints message with the elapsed time.
func (s *Spinner) StopWithSuccess(message string) {
	s.finish(styleIconSuccess.Render(iconSuccess), message)
}

// StopWithError stops the spinner and prints message with the elapsed time.
func (s *Spinner) StopWithError(message string) {
	s.finish(styleIconError.Render(iconError), message)
}

func (s *Spinner) finish(icon, message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, icon+" "+message+" "+StyleDim.Render("("+s.elapsedLocked()+")"))
}

// Cancelled reports whether the parent context ended before Stop.
func (s *Spinner) Cancelled() bool {
	select {
	case <-s.done:
		return false
	default:
		return s.ctx.Err() != nil
	}
}

// formatElapsed renders d as "0.4s", "12.3s" or "2m05s".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
