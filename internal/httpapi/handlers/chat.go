package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sendPromptReq struct {
	Prompt string `json:"prompt"`
}

// SendPrompt blocks for the whole generation round trip. A client that
// gives up early does not stop it; the messages and file edits still land.
func (h *Handler) SendPrompt(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req sendPromptReq
	if !bindJSON(c, &req) {
		return
	}

	reply, err := h.Chat.SendPrompt(context.WithoutCancel(c.Request.Context()), id, req.Prompt)
	if err != nil {
		if reply == nil {
			h.fail(c, err)
			return
		}
		// reconciliation stopped part way; what landed is reported
		h.logError(c, "reconcile stopped", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":           50003,
			"message":        err.Error(),
			"reply":          reply.Message,
			"generatedFiles": reply.GeneratedFiles,
		})
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	msgs, err := h.Chat.ListMessages(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// ProjectEvents streams the project's change events as SSE until the client
// goes away.
func (h *Handler) ProjectEvents(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.Projects.GetProject(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.fail(c, fmt.Errorf("streaming unsupported"))
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	stream, cancel := h.Broker.Subscribe(id)
	defer cancel()

	interval := h.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	writeJSON("ready", gin.H{"projectId": id})

	ctx := c.Request.Context()
	for {
		select {
		case e, ok := <-stream:
			if !ok {
				return
			}
			writeJSON(string(e.Type), e)

		case <-ticker.C:
			writeJSON("ping", gin.H{"ts": time.Now().Unix()})

		case <-ctx.Done():
			h.Log.Debug("event stream closed", zap.Uint64("project_id", id))
			return
		}
	}
}
