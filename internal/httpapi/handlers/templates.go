package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/codegen-ide/internal/models"
)

func (h *Handler) ListTemplates(c *gin.Context) {
	list, err := h.Templates.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t, err := h.Templates.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req models.NewTemplate
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.Templates.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Templates.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UseTemplate answers with the files created so far even when a later file
// fails.
func (h *Handler) UseTemplate(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	templateID, ok := idParam(c, "templateId")
	if !ok {
		return
	}
	files, err := h.Templates.Apply(c.Request.Context(), projectID, templateID)
	if err != nil {
		if len(files) == 0 {
			h.fail(c, err)
			return
		}
		h.logError(c, "template partially applied", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    50001,
			"message": err.Error(),
			"files":   files,
		})
		return
	}
	c.JSON(http.StatusOK, files)
}
