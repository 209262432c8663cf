// Package api exposes the HTTP surface: investigation submission with
// SSE progress delivery, cancellation, capability listing, health and
// metrics.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/events"
	"github.com/loadwatch/loadwatch/pkg/metrics"
	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/probe"
)

// Investigator runs one investigation and streams its progress.
// *orchestrator.Orchestrator satisfies it.
type Investigator interface {
	Investigate(ctx context.Context, incident models.Incident, stream *events.Stream) *models.Verdict
}

// Server wires the HTTP handlers to the investigation engine.
type Server struct {
	cfg      *config.Config
	orch     Investigator
	registry *probe.Registry
	active   *activeSet
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, orch Investigator, registry *probe.Registry) *Server {
	return &Server{
		cfg:      cfg,
		orch:     orch,
		registry: registry,
		active:   newActiveSet(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/investigations", s.CreateInvestigation)
		v1.DELETE("/investigations/:id", s.CancelInvestigation)
		v1.GET("/capabilities", s.ListCapabilities)
	}
	return router
}
