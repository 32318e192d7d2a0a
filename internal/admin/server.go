// Package admin serves the HTTP control surface for running sessions.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/gatectl/internal/auth"
	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxSendBody = 1 << 20

// Controller is the session surface the admin routes drive.
type Controller interface {
	Snapshots() []gateway.Snapshot
	Snapshot(alias string) (gateway.Snapshot, error)
	ReadyInfo(alias string) (json.RawMessage, error)
	Pending(alias string) ([]json.RawMessage, error)
	EnqueueSend(alias string, payload any) error
	RequestStop(alias string) error
	RequestRestart(alias string, code protocol.Opcode) error
}

type Config struct {
	Addr        string
	Token       string
	CORSOrigins []string
}

type Server struct {
	cfg     Config
	ctl     Controller
	router  *gin.Engine
	logger  zerolog.Logger
	started time.Time
}

func New(cfg Config, ctl Controller, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestTracing())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware("admin"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:     cfg,
		ctl:     ctl,
		router:  r,
		logger:  logger,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on cfg.Addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("admin server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   time.Since(s.started).String(),
			"sessions": len(s.ctl.Snapshots()),
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessions := s.router.Group("/sessions")
	sessions.Use(s.requireToken())
	sessions.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": s.ctl.Snapshots()})
	})
	sessions.GET("/:alias", func(c *gin.Context) {
		snap, err := s.ctl.Snapshot(c.Param("alias"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})
	sessions.GET("/:alias/ready", func(c *gin.Context) {
		ready, err := s.ctl.ReadyInfo(c.Param("alias"))
		if err != nil {
			writeError(c, err)
			return
		}
		if len(ready) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "session has not identified yet"})
			return
		}
		c.Data(http.StatusOK, "application/json", ready)
	})
	sessions.GET("/:alias/queue", func(c *gin.Context) {
		pending, err := s.ctl.Pending(c.Param("alias"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pending": pending})
	})
	sessions.POST("/:alias/stop", func(c *gin.Context) {
		if err := s.ctl.RequestStop(c.Param("alias")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
	})
	sessions.POST("/:alias/restart", s.handleRestart)
	sessions.POST("/:alias/send", s.handleSend)
}

type restartRequest struct {
	Code *int `json:"code"`
}

// handleRestart accepts {"code":7} (resume) or {"code":9} (re-identify).
// An empty body means 9.
func (s *Server) handleRestart(c *gin.Context) {
	code := protocol.OpInvalidSession
	var req restartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Code != nil {
		code = protocol.Opcode(*req.Code)
	}
	if code != protocol.OpReconnect && code != protocol.OpInvalidSession {
		c.JSON(http.StatusBadRequest, gin.H{"error": "restart code must be 7 or 9"})
		return
	}
	if err := s.ctl.RequestRestart(c.Param("alias"), code); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "restarting", "code": int(code)})
}

func (s *Server) handleSend(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSendBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > maxSendBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gateway.ErrInvalidPayload.Error()})
		return
	}
	if err := s.ctl.EnqueueSend(c.Param("alias"), json.RawMessage(body)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (s *Server) requireToken() gin.HandlerFunc {
	if s.cfg.Token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	validator := auth.StaticToken{Token: s.cfg.Token}
	return func(c *gin.Context) {
		if err := auth.Authorize(validator, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gateway.ErrUnknownAlias):
		status = http.StatusNotFound
	case errors.Is(err, gateway.ErrNilPayload), errors.Is(err, gateway.ErrInvalidPayload):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
