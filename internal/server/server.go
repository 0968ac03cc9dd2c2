package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"timelapse/internal/artifacts"
	"timelapse/internal/frames"
	"timelapse/internal/history"
	"timelapse/internal/logging"
	"timelapse/internal/render"
)

// RangeRenderer renders a selected run of frames. *render.Pipeline
// satisfies it.
type RangeRenderer interface {
	RenderFrames(ctx context.Context, selected []frames.Frame) (render.Result, error)
}

// HistoryLister reads recent render runs.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
}

// Options wires a Server.
type Options struct {
	Bind     string
	Catalog  *artifacts.Catalog
	Frames   *frames.Store
	History  HistoryLister
	Renderer RangeRenderer
	// RangeRenderEnabled gates POST /api/render.
	RangeRenderEnabled   bool
	RangeRenderPerMinute int
	RangeRenderBurst     int
	Logger               *slog.Logger
}

// Server is the dashboard: it lists and serves artifacts and accepts range
// render requests. It reads the filesystem and history database only.
type Server struct {
	bind     string
	catalog  *artifacts.Catalog
	frames   *frames.Store
	history  HistoryLister
	renderer RangeRenderer
	limiter  *clientLimiter
	logger   *slog.Logger

	listener net.Listener
	server   *http.Server

	baseCtx    context.Context
	cancelBase context.CancelFunc
	renders    sync.WaitGroup
}

// New builds a server. It returns nil when opts.Bind is empty.
func New(opts Options) *Server {
	bind := strings.TrimSpace(opts.Bind)
	if bind == "" {
		return nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	renderer := opts.Renderer
	if !opts.RangeRenderEnabled {
		renderer = nil
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		bind:       bind,
		catalog:    opts.Catalog,
		frames:     opts.Frames,
		history:    opts.History,
		renderer:   renderer,
		limiter:    newClientLimiter(opts.RangeRenderPerMinute, opts.RangeRenderBurst),
		logger:     logging.NewComponentLogger(logger, "server"),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /timelapse_videos/{name}", s.handleVideo)
	mux.HandleFunc("GET /timelapse_thumbnails/{name}", s.handleThumbnail)
	mux.HandleFunc("GET /api/videos", s.handleVideos)
	mux.HandleFunc("GET /api/frames", s.handleFrames)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/render", s.handleRender)
	return mux
}

// Start listens on the bind address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "server error", "server_failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down and cancels in-flight range renders, waiting
// for them to clean up.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.cancelBase()
	s.renders.Wait()
}
