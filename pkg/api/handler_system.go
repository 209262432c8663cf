package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports service liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "healthy",
		"active_investigations": s.active.len(),
		"capabilities":          len(s.registry.CapabilityNames()),
		"oracle_configured":     s.cfg.Oracle.BaseURL != "",
	})
}

// ListCapabilities returns the registered probe catalog.
func (s *Server) ListCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"capabilities": s.registry.Capabilities(),
	})
}
