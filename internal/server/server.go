// Package server is the HTTP control surface for one ring peer: the ping
// action, configuration updates, and operator status.
package server

import (
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/danmuck/ringctl/internal/observability"
	"github.com/danmuck/ringctl/internal/ring"
)

// Control is the slice of the fabric event loop the HTTP surface needs.
// Both methods enqueue; they never run engine logic on the request
// goroutine.
type Control interface {
	Inject(message string)
	ConfigChanged(maxCycles *int, delay time.Duration)
}

// StatusRecorder keeps the most recent engine status for the operator
// surface. The engine emits on the loop goroutine and HTTP reads from
// request goroutines, hence the lock here rather than in the engine.
type StatusRecorder struct {
	mu    sync.Mutex
	state ring.State
	line  string
}

// Record implements ring.StatusFunc.
func (r *StatusRecorder) Record(state ring.State, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.line = line
}

// Snapshot returns the last recorded state and status line.
func (r *StatusRecorder) Snapshot() (ring.State, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.line
}

// Config wires the HTTP surface.
type Config struct {
	Node        string
	CorsOrigins []string
	Control     Control
	Status      *StatusRecorder
	Peers       func() []string
	Logger      zerolog.Logger
}

type Server struct {
	cfg    Config
	router *gin.Engine
}

func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(cfg.Logger))
	router.Use(observability.RequestMetrics(cfg.Node))
	if len(cfg.CorsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CorsOrigins
		router.Use(cors.New(corsCfg))
	}

	s := &Server{cfg: cfg, router: router}
	s.registerRoutes()
	return s
}

// Router exposes the gin engine for tests and for embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve blocks serving the control surface on addr.
func (s *Server) Serve(addr string) error {
	return s.router.Run(addr)
}
