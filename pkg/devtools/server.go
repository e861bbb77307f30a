package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/waypoint/pkg/router"
)

// Engine is the router surface the devtools server inspects and drives.
// *router.Router implements it.
type Engine interface {
	Subscriber
	Routes() []*router.CompiledRoute
	Resolve(target string) (*router.RouteMatch, bool)
	Navigate(ctx context.Context, target string, opts ...router.NavigateOption) *router.Outcome
	Current() *router.RouteMatch
	CachePolicy() router.CachePolicy
	CacheStats() router.CacheStats
	DataCacheStats() router.CacheStats
}

// Config configures the devtools server.
type Config struct {
	// Address is the listen address. Default: "127.0.0.1:7070".
	Address string

	// ShutdownTimeout bounds graceful shutdown. Default: 5s.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers. Default: 10s.
	ReadHeaderTimeout time.Duration

	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Logger is the server logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Address:           "127.0.0.1:7070",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Server exposes a router over HTTP for inspection:
//
//	GET  /routes          compiled route table
//	GET  /match?path=...  dry-run match, no navigation
//	GET  /current         committed match
//	POST /navigate        run a navigation: {"path": "...", "replace": false}
//	GET  /cache           cache policy and counters
//	GET  /metrics         Prometheus metrics
//	GET  /ws              WebSocket feed of commits
type Server struct {
	config Config
	logger *slog.Logger
	feed   *Feed

	mu     sync.RWMutex
	engine Engine

	httpServer *http.Server
}

// New creates a server for engine.
func New(engine Engine, config Config) *Server {
	config = config.withDefaults()
	logger := config.Logger.With("component", "devtools")
	s := &Server{
		config: config,
		logger: logger,
		feed:   NewFeed(logger),
		engine: engine,
	}
	s.feed.Attach(engine)
	return s
}

// Swap replaces the engine, for example after the route table was reloaded.
// Feed clients receive a reload message.
func (s *Server) Swap(engine Engine) {
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
	s.feed.Attach(engine)
	s.logger.Info("engine swapped", "routes", len(engine.Routes()))
}

// Engine returns the current engine.
func (s *Server) Engine() Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Feed returns the WebSocket feed.
func (s *Server) Feed() *Feed {
	return s.feed
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/routes", s.handleRoutes)
	r.Get("/match", s.handleMatch)
	r.Get("/current", s.handleCurrent)
	r.Post("/navigate", s.handleNavigate)
	r.Get("/cache", s.handleCache)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.feed.HandleWebSocket)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devtools listening", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.feed.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not closed by http.Server.
	s.feed.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("devtools shutdown complete")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)
		s.logger.Debug("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(req.Context()),
		)
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, req *http.Request) {
	routes := s.Engine().Routes()
	views := make([]RouteView, len(routes))
	for i, cr := range routes {
		views[i] = NewRouteView(cr)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleMatch(w http.ResponseWriter, req *http.Request) {
	target := req.URL.Query().Get("path")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing path parameter")
		return
	}
	m, ok := s.Engine().Resolve(target)
	if !ok {
		writeError(w, http.StatusNotFound, "no route matches "+target)
		return
	}
	writeJSON(w, http.StatusOK, NewMatchView(m))
}

func (s *Server) handleCurrent(w http.ResponseWriter, req *http.Request) {
	m := s.Engine().Current()
	if m == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, NewMatchView(m))
}

// NavigateRequest is the body of POST /navigate.
type NavigateRequest struct {
	Path    string `json:"path"`
	Replace bool   `json:"replace"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, req *http.Request) {
	var body NavigateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if body.Path == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}

	var opts []router.NavigateOption
	if body.Replace {
		opts = append(opts, router.WithReplace())
	}
	out := s.Engine().Navigate(req.Context(), body.Path, opts...)
	writeJSON(w, http.StatusOK, NewOutcomeView(out))
}

func (s *Server) handleCache(w http.ResponseWriter, req *http.Request) {
	e := s.Engine()
	writeJSON(w, http.StatusOK, CacheView{
		Policy: e.CachePolicy(),
		Match:  e.CacheStats(),
		Data:   e.DataCacheStats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
