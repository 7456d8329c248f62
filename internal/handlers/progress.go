package handlers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/websocket/v2"

	"github.com/mshattori/transcriber-web-app/internal/queue"
)

// ProgressHandler streams job progress over a websocket. The client receives
// one JSON message per pipeline update; the connection closes when the job
// finishes.
type ProgressHandler struct {
	tracker *queue.Tracker
}

func NewProgressHandler(tracker *queue.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

// Handle serves GET /ws/jobs/:id.
func (h *ProgressHandler) Handle(c *websocket.Conn) {
	defer c.Close()
	jobID := c.Params("id")

	ch, cancel, ok := h.tracker.Subscribe(jobID)
	if !ok {
		c.WriteMessage(websocket.TextMessage, []byte(`{"error":"job not found"}`))
		return
	}
	defer cancel()

	for p := range ch {
		msg, err := json.Marshal(p)
		if err != nil {
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("WebSocket write error for job %s: %v", jobID, err)
			return
		}
	}

	// Final state after the progress stream closes.
	if snap, ok := h.tracker.Get(jobID); ok {
		if msg, err := json.Marshal(snap); err == nil {
			c.WriteMessage(websocket.TextMessage, msg)
		}
	}
}
