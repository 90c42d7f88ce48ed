package dev

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vango-dev/wasmpack/internal/build"
	"github.com/vango-dev/wasmpack/internal/config"
	"github.com/vango-dev/wasmpack/internal/errors"
)

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Logger receives server and rebuild logs.
	Logger zerolog.Logger

	// Metrics records rebuilds and reloads. A fresh set is created if nil.
	Metrics *Metrics

	// OnBuildStart is called when a build starts.
	OnBuildStart func()

	// OnBuildComplete is called when a build finishes. err is nil on success.
	OnBuildComplete func(result *build.Result, err error)

	// OnReload is called after browsers were told to reload.
	OnReload func(clients int)
}

// Server is the development server.
type Server struct {
	config       *config.Config
	options      ServerOptions
	log          zerolog.Logger
	builder      *build.Builder
	watcher      *Watcher
	reloadServer *ReloadServer
	metrics      *Metrics
	changeCh     chan []Change
	httpServer   *http.Server
	listener     net.Listener
	ready        chan struct{}

	// packMu guards the pack directory. Rebuild swaps hold the write
	// lock, static requests the read lock.
	packMu sync.RWMutex

	mu        sync.Mutex
	running   bool
	hotReload bool
	failed    bool
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	log := options.Logger.With().Str("component", "dev").Logger()

	metrics := options.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Server{
		config:    cfg,
		options:   options,
		log:       log,
		metrics:   metrics,
		hotReload: cfg.Dev.HotReload,
		changeCh:  make(chan []Change, 16),
		ready:     make(chan struct{}),
	}

	s.builder = build.New(cfg, build.Options{
		Lock:       &s.packMu,
		Logger:     log,
		SkipReport: true,
	})

	s.watcher = NewWatcher(WatcherConfig{
		Paths:    CollectWatchPaths(cfg),
		Ignore:   CollectIgnore(cfg),
		Debounce: cfg.DebounceDuration(),
		Logger:   log,
	})

	if s.hotReload {
		s.reloadServer = NewReloadServer(cfg.Dev.ClientLogging, log, metrics)
	}

	return s
}

// Start builds once, then serves and rebuilds on change until ctx is
// canceled. The listener is bound before the first build so a taken
// port fails fast with E110.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	ln, err := listen(s.config.DevAddress())
	if err != nil {
		s.markStopped()
		return err
	}
	s.listener = ln

	// The baseline is taken before the first build so edits made while it
	// runs still trigger a rebuild.
	s.watcher.Snapshot()
	s.rebuild(ctx, "Building...", false)

	s.watcher.OnChange(func(batch []Change) {
		select {
		case s.changeCh <- batch:
		case <-ctx.Done():
		}
	})
	go s.watcher.Start(ctx)
	go s.processChanges(ctx)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.log.Info().Str("url", s.URL()).Msg("Server running")
	close(s.ready)

	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		if err != nil {
			return errors.New("E112").Wrap(err)
		}
		return nil
	}
}

// Ready is closed once the server accepts requests.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the base URL the server is reachable at.
func (s *Server) URL() string {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return "http://" + net.JoinHostPort(s.config.Dev.Host, strconv.Itoa(addr.Port))
	}
	return s.config.DevURL()
}

// Stop stops the development server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	s.watcher.Stop()
	if s.reloadServer != nil {
		s.reloadServer.Close()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	} else if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		return ln, nil
	}
	if stderrors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use") {
		return nil, errors.New("E110").
			WithDetail(addr + " is already bound by another process").
			WithSuggestion("Stop the other process or pass --port").
			Wrap(err)
	}
	return nil, errors.New("E112").WithDetail("Cannot listen on " + addr).Wrap(err)
}

// Handler returns the dev server's HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	if len(s.config.Dev.CORS) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.Dev.CORS,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler)
	}

	if s.reloadEnabled() {
		r.Get(ReloadPath, s.reloadServer.HandleWebSocket)
	}
	r.Handle(MetricsPath, s.metrics.Handler())
	r.Get("/*", s.serveStatic)
	r.Head("/*", s.serveStatic)
	return r
}

// serveStatic serves a file from the pack directory. HTML documents get
// the reload client injected.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	s.packMu.RLock()
	defer s.packMu.RUnlock()

	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.config.PackPath(), filepath.FromSlash(name))

	info, err := os.Stat(file)
	if err == nil && info.IsDir() {
		file = filepath.Join(file, "index.html")
		info, err = os.Stat(file)
	}
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ext := strings.ToLower(filepath.Ext(file))
	if (ext == ".html" || ext == ".htm") && s.reloadEnabled() {
		data, err := os.ReadFile(file)
		if err != nil {
			http.Error(w, "Cannot read "+name, http.StatusInternalServerError)
			return
		}
		body := InjectScript(string(data), ClientScript(s.config.Dev.ClientLogging))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method != http.MethodHead {
			fmt.Fprint(w, body)
		}
		return
	}

	f, err := os.Open(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	if ct := contentType(ext); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// contentType covers the types streaming instantiation depends on;
// everything else is left to ServeContent.
func contentType(ext string) string {
	switch ext {
	case ".wasm":
		return "application/wasm"
	case ".data":
		return "application/octet-stream"
	case ".js", ".mjs":
		return "text/javascript; charset=utf-8"
	}
	return ""
}

// processChanges serializes rebuilds. Batches that queue up while a
// rebuild runs are merged into the next one.
func (s *Server) processChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-s.changeCh:
			changes := append([]Change(nil), batch...)
			draining := true
			for draining {
				select {
				case next := <-s.changeCh:
					changes = append(changes, next...)
				default:
					draining = false
				}
			}
			s.handleChanges(ctx, changes)
		}
	}
}

// handleChanges rebuilds for a merged batch of changes.
func (s *Server) handleChanges(ctx context.Context, changes []Change) {
	if len(changes) == 0 {
		return
	}

	for _, change := range changes {
		s.log.Debug().
			Str("path", change.Path).
			Stringer("op", change.Op).
			Stringer("type", change.Type).
			Msg("Changed")
	}
	s.log.Info().Int("files", len(changes)).Msg("Change detected")

	s.rebuild(ctx, "Rebuilding...", true)
}

// rebuild runs one build. When notify is set, browsers are told about
// the outcome.
func (s *Server) rebuild(ctx context.Context, msg string, notify bool) {
	if s.options.OnBuildStart != nil {
		s.options.OnBuildStart()
	}

	s.log.Info().Msg(msg)
	start := time.Now()
	result, err := s.builder.Build(ctx)
	s.metrics.rebuilt(err == nil, time.Since(start))

	if s.options.OnBuildComplete != nil {
		s.options.OnBuildComplete(result, err)
	}

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error().Err(err).Msg("Build failed")
		s.failed = true
		if notify {
			s.notifyError(overlayText(err))
		}
		return
	}

	s.log.Info().
		Str("build", result.ID).
		Dur("duration", result.Duration.Round(time.Millisecond)).
		Msg("Built")

	if !notify {
		return
	}
	if s.failed {
		s.failed = false
		s.clearReloadError()
	}
	s.notifyReload(result.ID)
}

func (s *Server) reloadEnabled() bool {
	return s.hotReload && s.reloadServer != nil
}

func (s *Server) notifyReload(buildID string) {
	if !s.reloadEnabled() {
		s.log.Debug().Msg("Hot reload disabled; rebuild complete")
		return
	}

	clients := s.reloadServer.NotifyReload(buildID)
	if s.options.OnReload != nil {
		s.options.OnReload(clients)
	}
	s.log.Info().Int("clients", clients).Msg("Reloaded browsers")
}

func (s *Server) notifyError(errMsg string) {
	if !s.reloadEnabled() {
		return
	}
	s.reloadServer.NotifyError(errMsg)
}

func (s *Server) clearReloadError() {
	if !s.reloadEnabled() {
		return
	}
	s.reloadServer.ClearError()
}

// overlayText renders err as plain text for the browser overlay.
func overlayText(err error) string {
	pe, ok := errors.As(err)
	if !ok {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(pe.Code + ": " + pe.Message)
	if pe.Location != nil {
		fmt.Fprintf(&b, "\n\n%s:%d:%d", pe.Location.File, pe.Location.Line, pe.Location.Column)
	}
	if pe.Detail != "" {
		b.WriteString("\n\n" + pe.Detail)
	}
	if pe.Wrapped != nil {
		b.WriteString("\n\nCaused by: " + pe.Wrapped.Error())
	}
	return b.String()
}
