package routers

import (
	"TextToVideo-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()
	g := r.Group("/api")
	{
		g.POST("/workflow", h.CreateWorkflow)
		g.GET("/workflows", h.ListWorkflows)
		g.GET("/workflow/:id", h.GetWorkflow)
		g.PUT("/workflow/:id", h.UpdateWorkflow)
		g.DELETE("/workflow/:id", h.DeleteWorkflow)

		g.POST("/workflow/:id/split", h.SplitText)
		g.POST("/workflow/:id/segment/:idx/optimize", h.OptimizePrompt)
		g.POST("/workflow/:id/segment/:idx/upload-image", h.UploadImage)
		g.POST("/workflow/:id/segment/:idx/generate-video", h.GenerateVideo)
		g.GET("/workflow/:id/segment/:idx/video-status", h.VideoStatus)
		g.GET("/workflow/:id/segment/:idx/video-status/ws", h.VideoStatusWS)
		g.POST("/workflow/:id/merge", h.MergeVideos)
		g.GET("/workflow/:id/download", h.DownloadVideo)

		g.GET("/image/:id/:idx", h.GetImage)
		g.GET("/video/:id/:idx", h.GetVideo)
		g.GET("/final-video/:id", h.GetFinalVideo)
	}
	return r
}
