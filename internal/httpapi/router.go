package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/codegen-ide/internal/common"
	"github.com/suPer8Hu/codegen-ide/internal/httpapi/handlers"
	"github.com/suPer8Hu/codegen-ide/internal/httpapi/middleware"
	"go.uber.org/zap"
)

type Options struct {
	CORSOrigins []string
	Log         *zap.Logger
}

func NewRouter(h *handlers.Handler, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")

	// projects
	api.GET("/projects", h.ListProjects)
	api.POST("/projects", h.CreateProject)
	api.GET("/projects/:id", h.GetProject)
	api.DELETE("/projects/:id", h.DeleteProject)
	api.GET("/projects/:id/download", h.DownloadProject)
	api.GET("/projects/:id/preview", h.PreviewProject)
	api.GET("/projects/:id/events", h.ProjectEvents)

	// files
	api.GET("/projects/:id/files", h.ListFiles)
	api.POST("/projects/:id/files", h.CreateFile)
	api.GET("/projects/:id/files/suggest/:query", h.SuggestFiles)
	api.PUT("/files/:id", h.UpdateFile)
	api.DELETE("/files/:id", h.DeleteFile)
	api.GET("/files/:id/versions", h.ListVersions)

	// uploads
	api.GET("/projects/:id/uploads", h.ListUploads)
	api.POST("/projects/:id/uploads", h.CreateUpload)
	api.GET("/uploads/:id", h.GetUpload)
	api.DELETE("/uploads/:id", h.DeleteUpload)

	// templates
	api.GET("/templates", h.ListTemplates)
	api.POST("/templates", h.CreateTemplate)
	api.GET("/templates/:id", h.GetTemplate)
	api.DELETE("/templates/:id", h.DeleteTemplate)
	api.POST("/projects/:id/use-template/:templateId", h.UseTemplate)

	// chat
	api.POST("/projects/:id/chat", h.SendPrompt)
	api.GET("/projects/:id/messages", h.ListMessages)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Last-Event-ID", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
