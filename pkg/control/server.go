// Package control exposes a running engine over local HTTP.
//
// Routes:
//
//	GET  /healthz       liveness
//	GET  /status        engine status as JSON
//	POST /refresh       run one refresh cycle now and return its result
//	POST /reconfigure   rebuild canvases; ?wait=1 blocks until done
package control

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/matzehuels/tilepaper/pkg/engine"
	"github.com/matzehuels/tilepaper/pkg/errors"
)

// Engine is the subset of *engine.Engine the server drives.
type Engine interface {
	Status(ctx context.Context) (engine.Status, error)
	Refresh(ctx context.Context) (engine.CycleResult, error)
	Reconfigure(reason string) <-chan error
}

// Server serves the control routes.
type Server struct {
	engine Engine
	logger *log.Logger
	router chi.Router
}

// New builds the router for e.
func New(e Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{engine: e, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})
	r.Get("/status", s.handleStatus)
	r.Post("/refresh", s.handleRefresh)
	r.Post("/reconfigure", s.handleReconfigure)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("control server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("control request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start).Round(time.Microsecond),
		)
	})
}

// =============================================================================
// Handlers
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeLockTimeout:
		status = http.StatusServiceUnavailable
	case errors.ErrCodeClosed:
		status = http.StatusGone
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: errors.UserMessage(err), Code: string(errors.GetCode(err))})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, st)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Refresh(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) handleReconfigure(w http.ResponseWriter, r *http.Request) {
	done := s.engine.Reconfigure("control request")
	if r.URL.Query().Get("wait") == "" {
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]string{"status": "reconfiguring"})
		return
	}
	select {
	case err := <-done:
		if err != nil {
			s.fail(w, r, err)
			return
		}
		render.JSON(w, r, map[string]string{"status": "reconfigured"})
	case <-r.Context().Done():
		render.Status(r, http.StatusRequestTimeout)
		render.JSON(w, r, errorResponse{Error: "request cancelled"})
	}
}
