package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/wrapctl/internal/auth"
	"github.com/danmuck/wrapctl/internal/envexec"
	"github.com/danmuck/wrapctl/internal/observability"
	"github.com/danmuck/wrapctl/internal/wrappers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Server exposes a tool registry over HTTP.
type Server struct {
	ID       string
	Addr     string
	Started  time.Time
	Registry *wrappers.Registry
	// Auth guards action routes when set.
	Auth auth.Validator

	router *gin.Engine
}

type actionRequest struct {
	Args map[string]string `json:"args"`
}

type ToolInfo struct {
	wrappers.Metadata
	Operations []wrappers.Operation `json:"operations"`
}

func New(id, addr string, corsOrigins []string, registry *wrappers.Registry) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, id))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	if registry == nil {
		registry = wrappers.NewRegistry()
	}
	return &Server{
		ID:       id,
		Addr:     addr,
		Started:  time.Now(),
		Registry: registry,
		router:   r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"service": s.ID,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/tools", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": s.ListTools()})
	})

	s.router.POST("/tools/:tool/actions/:action", s.requireToken(), func(c *gin.Context) {
		toolID := c.Param("tool")
		action := c.Param("action")

		var req actionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		result, err := s.Registry.Run(toolID, action, req.Args)
		if err != nil {
			log.Error().
				Str("server", s.ID).
				Str("tool", toolID).
				Str("action", action).
				Err(err).
				Msg("tool action failed")
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		log.Info().
			Str("server", s.ID).
			Str("tool", toolID).
			Str("action", action).
			Int("exit_code", result.ExitCode).
			Msg("tool action executed")
		c.JSON(http.StatusOK, result)
	})
}

func (s *Server) ListTools() []ToolInfo {
	metas := s.Registry.ListMetadata()
	list := make([]ToolInfo, 0, len(metas))
	for _, meta := range metas {
		tool, ok := s.Registry.Resolve(meta.ID)
		if !ok {
			continue
		}
		list = append(list, ToolInfo{Metadata: meta, Operations: tool.Operations()})
	}
	return list
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	log.Info().Str("server", s.ID).Str("addr", s.Addr).Msg("serving tools")
	return s.router.Run(s.Addr)
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Auth == nil {
			c.Next()
			return
		}
		if err := auth.ValidateHeader(s.Auth, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, wrappers.ErrToolNotFound), errors.Is(err, wrappers.ErrActionNotFound):
		return http.StatusNotFound
	case errors.Is(err, wrappers.ErrInvalidTask), errors.Is(err, envexec.ErrConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
