package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/codegen-ide/internal/project"
)

type createProjectReq struct {
	Name string `json:"name"`
}

func (h *Handler) ListProjects(c *gin.Context) {
	list, err := h.Projects.ListProjects(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req createProjectReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Projects.CreateProject(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	snap, err := h.Projects.Snapshot(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) DeleteProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Projects.DeleteProject(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DownloadProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	exp, err := h.Projects.Export(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, project.ExportFileName(exp.ProjectName)))
	c.JSON(http.StatusOK, exp)
}

func (h *Handler) PreviewProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, err := h.Projects.Preview(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
