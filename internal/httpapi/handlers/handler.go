package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/codegen-ide/internal/chat"
	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"github.com/suPer8Hu/codegen-ide/internal/httpapi/middleware"
	"github.com/suPer8Hu/codegen-ide/internal/project"
	"github.com/suPer8Hu/codegen-ide/internal/templates"
	"go.uber.org/zap"
)

const defaultHeartbeat = 15 * time.Second

type Handler struct {
	Projects  *project.Service
	Templates *templates.Service
	Chat      *chat.Service
	Broker    *events.Broker
	Log       *zap.Logger

	// Heartbeat is the SSE keep-alive interval.
	Heartbeat time.Duration
}

func NewHandler(projects *project.Service, tpls *templates.Service, chatSvc *chat.Service, broker *events.Broker, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Projects:  projects,
		Templates: tpls,
		Chat:      chatSvc,
		Broker:    broker,
		Log:       log,
		Heartbeat: defaultHeartbeat,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// idParam reads a positive numeric path parameter. It writes the 400 itself.
func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		common.FailValidation(c, common.Invalid(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		common.FailValidation(c, common.Invalid("body", "invalid json"))
		return false
	}
	return true
}

// fail maps a service error onto the shared error body.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		common.FailValidation(c, err)
	case errors.Is(err, common.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40400, "not found")
	case errors.Is(err, chat.ErrGeneration):
		h.logError(c, "generation failed", err)
		common.Fail(c, http.StatusInternalServerError, 50002, err.Error())
	default:
		h.logError(c, "request failed", err)
		common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
	}
}

func (h *Handler) logError(c *gin.Context, msg string, err error) {
	h.Log.Error(msg,
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	_ = c.Error(err)
}
