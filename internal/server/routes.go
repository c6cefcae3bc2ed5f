package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pingRequest struct {
	Token string `json:"token" binding:"required"`
}

type configRequest struct {
	MaxCycles *int   `json:"max_cycles"`
	Delay     string `json:"delay"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"node":   s.cfg.Node,
		})
	})

	// The ping action: inject a new token into the ring.
	s.router.POST("/actions/ping", func(c *gin.Context) {
		var req pingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
			return
		}
		s.cfg.Control.Inject(req.Token)
		c.JSON(http.StatusAccepted, gin.H{
			"status": "accepted",
			"node":   s.cfg.Node,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		state, line := s.cfg.Status.Snapshot()
		resp := gin.H{
			"node":   s.cfg.Node,
			"state":  state.String(),
			"status": line,
		}
		if s.cfg.Peers != nil {
			resp["peers"] = s.cfg.Peers()
		}
		c.JSON(http.StatusOK, resp)
	})

	// Configuration surface: max_cycles null or absent means unbounded.
	s.router.PUT("/config", func(c *gin.Context) {
		var req configRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config body"})
			return
		}
		if req.MaxCycles != nil && *req.MaxCycles < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_cycles must be non-negative"})
			return
		}
		var delay time.Duration
		if req.Delay != "" {
			d, err := time.ParseDuration(req.Delay)
			if err != nil || d < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "delay must be a non-negative duration"})
				return
			}
			delay = d
		}
		s.cfg.Control.ConfigChanged(req.MaxCycles, delay)
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
