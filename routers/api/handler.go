package api

import (
	"net/http"
	"strconv"

	"TextToVideo-server/service"

	"github.com/gin-gonic/gin"
)

// Handler 持有注入的存储和引擎，所有路由处理函数挂在它上面
type Handler struct {
	store  *service.WorkflowStore
	engine *service.Engine
}

func NewHandler(store *service.WorkflowStore, engine *service.Engine) *Handler {
	return &Handler{store: store, engine: engine}
}

// fail 按错误分类映射 HTTP 状态码，只暴露简短的人类可读信息
func fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindNotFound:
		code = http.StatusNotFound
	case service.KindValidation:
		code = http.StatusBadRequest
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func segmentIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "片段索引无效"})
		return 0, false
	}
	return idx, true
}
