package api

import (
	"net/http"

	"TextToVideo-server/models"
	"TextToVideo-server/service"

	"github.com/gin-gonic/gin"
)

// 创建工作流
func (h *Handler) CreateWorkflow(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	_ = c.ShouldBindJSON(&req)

	workflow, err := h.store.Create(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建工作流失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, workflow)
}

// 工作流列表（仅 OSS 模式可用，本地模式返回空列表）
func (h *Handler) ListWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workflows": h.store.List(c.Request.Context()),
	})
}

// 获取工作流详情
func (h *Handler) GetWorkflow(c *gin.Context) {
	workflow, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if workflow == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "工作流不存在"})
		return
	}
	c.JSON(http.StatusOK, workflow)
}

// 更新工作流：只合并白名单字段（name / original_text / segments /
// final_video_url / status），其余请求字段一律忽略
func (h *Handler) UpdateWorkflow(c *gin.Context) {
	var req struct {
		Name          *string          `json:"name"`
		OriginalText  *string          `json:"original_text"`
		Segments      []models.Segment `json:"segments"`
		FinalVideoURL *string          `json:"final_video_url"`
		Status        *string          `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workflow, err := h.store.Update(c.Request.Context(), c.Param("id"), service.WorkflowUpdate{
		Name:          req.Name,
		OriginalText:  req.OriginalText,
		Segments:      req.Segments,
		FinalVideoURL: req.FinalVideoURL,
		Status:        req.Status,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新工作流失败: " + err.Error()})
		return
	}
	if workflow == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "工作流不存在"})
		return
	}
	c.JSON(http.StatusOK, workflow)
}

// 删除工作流（两级存储独立删除）
func (h *Handler) DeleteWorkflow(c *gin.Context) {
	if !h.store.Delete(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "工作流不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "工作流已删除"})
}
