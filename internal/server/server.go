package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/offsetwatch/internal/notify"
	"github.com/hupe1980/offsetwatch/internal/settings"
	"github.com/hupe1980/offsetwatch/internal/version"
)

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// PathResolver computes the settings file location.
type PathResolver interface {
	Resolve() (string, error)
}

// Options configures a Server.
type Options struct {
	// Addr is the TCP address to listen on.
	Addr string

	Resolver PathResolver
	Reader   notify.OffsetReader
	Hub      *Hub

	// Watching reports whether live updates are active. May be nil.
	Watching func() bool

	// AllowedOrigins restricts WebSocket origins. Empty allows any origin.
	AllowedOrigins []string

	Logger *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
}

// New returns a Server for opts.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Hub == nil {
		opts.Hub = NewHub(0, opts.Logger)
	}

	s := &Server{opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	return s
}

// Handler returns the routes:
//
//	GET /offset   one-shot settings read
//	GET /events   WebSocket stream of config_changed events
//	GET /healthz  liveness and watcher status
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /offset", s.handleOffset)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

// Run listens on opts.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.opts.Logger.Info("serving", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}

type offsetResponse struct {
	Path   string   `json:"path,omitempty"`
	Offset *float64 `json:"offset,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func (s *Server) handleOffset(w http.ResponseWriter, _ *http.Request) {
	path, err := s.opts.Resolver.Resolve()
	if err != nil {
		s.writeJSON(w, statusFor(err), offsetResponse{Error: err.Error()})
		return
	}

	offset, err := s.opts.Reader.Read(path)
	if err != nil {
		s.writeJSON(w, statusFor(err), offsetResponse{Path: path, Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, offsetResponse{Path: path, Offset: &offset})
}

type healthResponse struct {
	Status   string `json:"status"`
	Watching bool   `json:"watching"`
	Clients  int    `json:"clients"`
	Version  string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	watching := false
	if s.opts.Watching != nil {
		watching = s.opts.Watching()
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Watching: watching,
		Clients:  s.opts.Hub.Clients(),
		Version:  version.GetInfo().Version,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	c := s.opts.Hub.subscribe()
	defer s.opts.Hub.unsubscribe(c)

	s.opts.Logger.Debug("client connected", slog.String("remote", r.RemoteAddr))

	done := make(chan struct{})

	go func() {
		defer close(done)

		// Drain client frames so close and ping control messages are handled.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))

				return
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}

			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}

	return slices.Contains(s.opts.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", version.GetInfo().Short())
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Debug("writing response", slog.String("error", err.Error()))
	}
}

// statusFor maps settings errors to HTTP status codes.
func statusFor(err error) int {
	var parseErr *settings.ParseError

	switch {
	case errors.Is(err, settings.ErrConfigPath):
		return http.StatusServiceUnavailable
	case errors.Is(err, settings.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &parseErr), errors.Is(err, settings.ErrFieldMissing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
