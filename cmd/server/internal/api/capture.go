package api

// capture.go - recording session lifecycle control
// Handles: StartCapture, StopCapture, CaptureStatus

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluxnotes/flux/cmd/server/internal/capture"
)

// HandleStartCapture POST /api/v1/capture/start
func HandleStartCapture(mgr *capture.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Title string `json:"title"`
		}
		// Missing/empty body is fine: the store synthesizes a default title.
		_ = c.ShouldBindJSON(&body)

		if !mgr.StartMeeting(c.Request.Context(), body.Title) {
			c.JSON(http.StatusConflict, gin.H{"error": mgr.LastError()})
			return
		}
		c.JSON(http.StatusOK, mgr.Status())
	}
}

// HandleStopCapture POST /api/v1/capture/stop
// Always succeeds; stopping while not recording is a no-op. The terminal
// meeting status arrives asynchronously once processing finishes.
func HandleStopCapture(mgr *capture.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		mgr.StopMeeting()
		c.JSON(http.StatusOK, mgr.Status())
	}
}

// HandleCaptureStatus GET /api/v1/capture/status
func HandleCaptureStatus(mgr *capture.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.Status())
	}
}

// HandleCaptureEvents GET /api/v1/capture/events
// Streams session transitions as server-sent events until the client
// disconnects.
func HandleCaptureEvents(mgr *capture.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, cancel := mgr.Subscribe()
		defer cancel()

		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(string(ev.Type), ev)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
