package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"TextToVideo-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 拆分原始文案
func (h *Handler) SplitText(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	segments, err := h.engine.SplitText(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segments})
}

// 优化片段提示词；use_template 选用固定口播数字人模板，默认走模型改写
func (h *Handler) OptimizePrompt(c *gin.Context) {
	idx, ok := segmentIndex(c)
	if !ok {
		return
	}
	var req struct {
		Text        string `json:"text"`
		UseTemplate bool   `json:"use_template"`
	}
	_ = c.ShouldBindJSON(&req)

	prompt, err := h.engine.OptimizePrompt(c.Request.Context(), c.Param("id"), idx, req.Text, req.UseTemplate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

// 上传片段首帧图片
func (h *Handler) UploadImage(c *gin.Context) {
	idx, ok := segmentIndex(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}

	imageURL, err := h.engine.UploadImage(c.Request.Context(), c.Param("id"), idx, data)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

// 提交视频生成任务
func (h *Handler) GenerateVideo(c *gin.Context) {
	idx, ok := segmentIndex(c)
	if !ok {
		return
	}

	taskID, err := h.engine.SubmitGeneration(c.Request.Context(), c.Param("id"), idx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task_id": taskID,
		"status":  models.VideoStatusGenerating,
	})
}

// 查询片段视频生成状态
func (h *Handler) VideoStatus(c *gin.Context) {
	idx, ok := segmentIndex(c)
	if !ok {
		return
	}

	status, err := h.engine.PollStatus(c.Request.Context(), c.Param("id"), idx)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// 片段视频状态 WebSocket 推送：服务端代替客户端做重复轮询，
// 状态有变化才下发，到达终态后关闭连接
func (h *Handler) VideoStatusWS(c *gin.Context) {
	idx, ok := segmentIndex(c)
	if !ok {
		return
	}
	workflowID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	status, err := h.engine.PollStatus(c.Request.Context(), workflowID, idx)
	if err != nil {
		_ = conn.WriteJSON(gin.H{"error": err.Error()})
		return
	}
	_ = conn.WriteJSON(status)

	prev := status.Status
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		cur, err := h.engine.PollStatus(c.Request.Context(), workflowID, idx)
		if err != nil {
			continue
		}
		if cur.Status != prev {
			if err := conn.WriteJSON(cur); err != nil {
				return
			}
			prev = cur.Status
		}
		if cur.Status == models.VideoStatusCompleted || cur.Status == models.VideoStatusFailed {
			_ = conn.WriteJSON(cur)
			return
		}
	}
}

// 合成完整视频
func (h *Handler) MergeVideos(c *gin.Context) {
	finalURL, err := h.engine.Merge(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"final_video_url": finalURL})
}

// 下载完整视频（附件形式，文件名取工作流名称）
func (h *Handler) DownloadVideo(c *gin.Context) {
	data, filename, err := h.engine.DownloadFinal(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Data(http.StatusOK, "video/mp4", data)
}

// 图片代理读取（本地优先，OSS 兜底）
func (h *Handler) GetImage(c *gin.Context) {
	idx, ok := segmentIndex(c)
	if !ok {
		return
	}
	data, err := h.engine.Image(c.Request.Context(), c.Param("id"), idx)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// 片段视频代理读取
func (h *Handler) GetVideo(c *gin.Context) {
	idx, ok := segmentIndex(c)
	if !ok {
		return
	}
	data, err := h.engine.SegmentVideo(c.Request.Context(), c.Param("id"), idx)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "video/mp4", data)
}

// 完整视频代理读取
func (h *Handler) GetFinalVideo(c *gin.Context) {
	data, err := h.engine.FinalVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "video/mp4", data)
}
