package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/models"
)

func (h *Handler) ListFiles(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	files, err := h.Projects.ListFiles(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) CreateFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req models.NewFile
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.Projects.CreateFile(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

type updateFileReq struct {
	Content *string `json:"content"`
}

func (h *Handler) UpdateFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateFileReq
	if !bindJSON(c, &req) {
		return
	}
	if req.Content == nil {
		common.FailValidation(c, common.Invalid("content", "cannot be blank"))
		return
	}
	f, err := h.Projects.UpdateFile(c.Request.Context(), id, *req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) DeleteFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Projects.DeleteFile(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListVersions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	versions, err := h.Projects.ListVersions(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *Handler) SuggestFiles(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	files, err := h.Projects.SuggestFiles(c.Request.Context(), id, c.Param("query"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}
