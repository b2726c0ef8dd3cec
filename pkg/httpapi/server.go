// Package httpapi exposes the monitor engine's read-only status surface
// and a small JWT-protected control surface over HTTP. Its auth and
// middleware packages are trimmed down from the teacher's SSO console
// stack to the single thing this engine needs: verify an operator's
// bearer token and its role, with no session table, service registry, or
// SSO redirect flow behind it.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/last-emo-boy/uptime-monitor/pkg/api/middleware"
	"github.com/last-emo-boy/uptime-monitor/pkg/auth"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/orchestrator"
)

// Server is the monitor engine's HTTP control plane: health, status,
// incidents, and an authenticated control group.
type Server struct {
	httpServer *http.Server
}

// Deps bundles everything the control API reads from, so main only has to
// build each component once.
type Deps struct {
	Cache        *monitor.MonitorCache
	Orchestrator *orchestrator.Orchestrator
	Auth         *auth.Auth
	Port         int
	StartedAt    time.Time
}

// NewServer builds the control API's gin engine and http.Server. Call Run
// to start serving; call Shutdown to drain in-flight requests.
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	h := &handler{cache: deps.Cache, orch: deps.Orchestrator, startedAt: deps.StartedAt}

	r.GET("/healthz", h.healthz)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", h.status)
		v1.GET("/incidents", h.incidents)

		control := v1.Group("/control")
		control.Use(middleware.AuthMiddleware(deps.Auth))
		control.Use(middleware.RequireRole(deps.Auth, "admin"))
		{
			control.POST("/refresh", h.triggerRefresh)
		}
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", deps.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Run blocks serving HTTP until Shutdown is called, returning
// http.ErrServerClosed on a clean shutdown.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
