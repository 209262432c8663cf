package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/loadwatch/loadwatch/pkg/events"
	"github.com/loadwatch/loadwatch/pkg/models"
)

// investigationRequest is the POST body for a new investigation.
type investigationRequest struct {
	Description string            `json:"description" binding:"required"`
	Identifiers map[string]string `json:"identifiers"`
	ModeHint    string            `json:"mode_hint"`
}

// CreateInvestigation starts an investigation and streams its progress
// as SSE until the terminal event. Client disconnect cancels the run.
func (s *Server) CreateInvestigation(c *gin.Context) {
	var req investigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}
	incident := models.Incident{
		Description: req.Description,
		Identifiers: req.Identifiers,
		ModeHint:    req.ModeHint,
	}
	if err := incident.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	stream := events.NewStream()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.orch.Investigate(ctx, incident, stream)
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Drain until the stream closes. Cancellation (DELETE or consumer
	// disconnect) makes the orchestrator publish its terminal event and
	// close the channel promptly, so a still-connected consumer sees the
	// terminal error before the loop ends.
	investigationID := ""
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-stream.Events()
		if !ok {
			return false
		}
		if started, isStart := ev.Payload.(events.Started); isStart {
			investigationID = started.InvestigationID
			s.active.register(investigationID, cancel)
		}
		c.Render(-1, sse.Event{
			Id:    strconv.FormatInt(ev.Seq, 10),
			Event: string(ev.Type),
			Data:  ev.Payload,
		})
		return true
	})

	// Either the stream terminated or the client went away; stop the
	// investigation and wait for it to wind down.
	cancel()
	<-done
	if investigationID != "" {
		s.active.deregister(investigationID)
	}
}

// CancelInvestigation aborts a running investigation by id.
func (s *Server) CancelInvestigation(c *gin.Context) {
	id := c.Param("id")
	if !s.active.cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no running investigation with that id"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling", "investigation_id": id})
}
