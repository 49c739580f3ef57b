package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TextToVideo-server/models"
)

const signedImageExpiry = 5 * time.Minute

// Engine 工作流引擎：每个流水线操作都是
// 加载文档 → 校验前置条件 → 调外部协作方 → 应用变更 → 持久化 的一次守卫转移。
// 失败的步骤不落任何半成品状态（唯一例外是文档化的转存降级，见 PollStatus）。
type Engine struct {
	store  *WorkflowStore
	local  *LocalStore
	remote RemoteStore
	text   TextAPI
	jobs   VideoJobAPI
	video  VideoTool
	log    *slog.Logger
}

func NewEngine(store *WorkflowStore, local *LocalStore, remote RemoteStore, text TextAPI, jobs VideoJobAPI, video VideoTool) *Engine {
	return &Engine{
		store:  store,
		local:  local,
		remote: remote,
		text:   text,
		jobs:   jobs,
		video:  video,
		log:    slog.With("module", "engine"),
	}
}

// SegmentStatus 轮询接口返回的片段视频状态快照
type SegmentStatus struct {
	Status   string  `json:"status"`
	VideoURL *string `json:"video_url"`
	Error    string  `json:"error,omitempty"`
}

func imageProxyURL(workflowID string, idx int) string {
	return fmt.Sprintf("/api/image/%s/%d", workflowID, idx)
}

func videoProxyURL(workflowID string, idx int) string {
	return fmt.Sprintf("/api/video/%s/%d", workflowID, idx)
}

func finalProxyURL(workflowID string) string {
	return "/api/final-video/" + workflowID
}

// SplitText 拆分原始文案，重建片段列表（旧片段整体替换）
func (e *Engine) SplitText(ctx context.Context, workflowID, text string) ([]models.Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, validation("文案内容不能为空")
	}
	if _, err := e.loadWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	chunks, err := e.text.SplitText(ctx, text)
	if err != nil {
		return nil, collaborator("文案拆分失败", err)
	}

	segments := models.NewSegments(chunks)
	status := models.WorkflowStatusDraft
	if err := e.persist(ctx, workflowID, WorkflowUpdate{
		OriginalText: &text,
		Segments:     segments,
		Status:       &status,
	}); err != nil {
		return nil, err
	}
	return segments, nil
}

// OptimizePrompt 为片段生成视频提示词；text 非空时覆盖片段原文。
// useTemplate 时套用固定的口播数字人模板，不调用模型。
func (e *Engine) OptimizePrompt(ctx context.Context, workflowID string, idx int, text string, useTemplate bool) (string, error) {
	workflow, seg, err := e.loadSegment(ctx, workflowID, idx)
	if err != nil {
		return "", err
	}
	if text == "" {
		text = seg.Original
	}

	var prompt string
	if useTemplate {
		prompt = TalkingHeadPrompt(text)
	} else {
		prompt, err = e.text.OptimizePrompt(ctx, text)
		if err != nil {
			return "", collaborator("提示词优化失败", err)
		}
	}

	seg.Original = text
	seg.Prompt = &prompt
	if err := e.persist(ctx, workflowID, WorkflowUpdate{Segments: workflow.Segments}); err != nil {
		return "", err
	}
	return prompt, nil
}

// UploadImage 保存片段首帧图：本地必写，OSS 可用时同步转存
func (e *Engine) UploadImage(ctx context.Context, workflowID string, idx int, data []byte) (string, error) {
	workflow, seg, err := e.loadSegment(ctx, workflowID, idx)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", validation("上传文件为空")
	}

	key := ImageKey(workflowID, idx)
	if err := e.local.Write(key, data); err != nil {
		return "", collaborator("图片保存失败", err)
	}
	if e.remote.Available() {
		if err := e.remote.Upload(ctx, key, data, "image/jpeg"); err != nil {
			return "", collaborator("图片上传失败", err)
		}
		seg.ImageOSSURL = &key
	} else {
		seg.ImageOSSURL = nil
	}

	displayURL := imageProxyURL(workflowID, idx)
	seg.ImageURL = &displayURL
	if err := e.persist(ctx, workflowID, WorkflowUpdate{Segments: workflow.Segments}); err != nil {
		return "", err
	}
	return displayURL, nil
}

// SubmitGeneration 提交 i2v 视频生成任务。
// 前置条件：片段已有提示词和首帧图，且 OSS 已配置（百炼需要可公网访问的图片 URL）。
func (e *Engine) SubmitGeneration(ctx context.Context, workflowID string, idx int) (string, error) {
	workflow, seg, err := e.loadSegment(ctx, workflowID, idx)
	if err != nil {
		return "", err
	}
	if err := seg.CanSubmitVideo(); err != nil {
		return "", validationErr(err)
	}
	if !e.remote.Available() {
		return "", validation("本地模式不支持视频生成，请配置OSS")
	}

	imageURL, err := e.remote.SignedURL(ctx, ImageKey(workflowID, idx), signedImageExpiry)
	if err != nil {
		return "", collaborator("生成图片签名URL失败", err)
	}

	taskID, err := e.jobs.SubmitVideoTask(ctx, *seg.Prompt, imageURL)
	if err != nil {
		return "", collaborator("提交视频生成任务失败", err)
	}

	seg.BeginGeneration(taskID)
	status := models.WorkflowStatusProcessing
	if err := e.persist(ctx, workflowID, WorkflowUpdate{
		Segments: workflow.Segments,
		Status:   &status,
	}); err != nil {
		return "", err
	}
	e.log.Info("视频生成任务已提交", "workflow", workflowID, "segment", idx, "task_id", taskID)
	return taskID, nil
}

// PollStatus 查询片段视频生成状态。没有任务时直接返回缓存状态，不发任何外部请求。
// 任务完成时把结果转存入库；转存失败按流水线口径把片段记为 failed（文档化的降级路径）。
func (e *Engine) PollStatus(ctx context.Context, workflowID string, idx int) (*SegmentStatus, error) {
	workflow, seg, err := e.loadSegment(ctx, workflowID, idx)
	if err != nil {
		return nil, err
	}
	if seg.VideoTaskID == nil {
		return &SegmentStatus{Status: seg.VideoStatus, VideoURL: seg.VideoURL}, nil
	}
	taskID := *seg.VideoTaskID

	task, err := e.jobs.QueryVideoTask(ctx, taskID)
	if err != nil {
		return nil, collaborator("查询状态失败", err)
	}

	seg.ApplyTaskStatus(taskID, task.Status)

	if task.Status == models.VideoStatusCompleted && task.VideoURL != "" && seg.VideoURL == nil &&
		seg.VideoStatus == models.VideoStatusCompleted {
		if err := e.transferResult(ctx, workflowID, idx, seg, task.VideoURL); err != nil {
			e.log.Warn("视频转存失败", "workflow", workflowID, "segment", idx, "err", err)
			seg.MarkTransferFailed()
		}
	}

	if err := e.persist(ctx, workflowID, WorkflowUpdate{Segments: workflow.Segments}); err != nil {
		return nil, err
	}
	return &SegmentStatus{
		Status:   seg.VideoStatus,
		VideoURL: seg.VideoURL,
		Error:    task.Message,
	}, nil
}

// transferResult 把生成结果从模型侧临时 URL 转存到两级存储
func (e *Engine) transferResult(ctx context.Context, workflowID string, idx int, seg *models.Segment, resultURL string) error {
	if !e.remote.Available() {
		return ErrRemoteDisabled
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("transfer_%s_%d.mp4", workflowID, idx))
	defer e.video.Cleanup(tmpPath)

	if err := e.video.Download(ctx, resultURL, tmpPath); err != nil {
		return err
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}

	key := SegmentVideoKey(workflowID, idx)
	if err := e.remote.Upload(ctx, key, data, "video/mp4"); err != nil {
		return err
	}
	// 本地层同步写入，代理读取走快路径
	if err := e.local.Write(key, data); err != nil {
		e.log.Warn("写本地视频缓存失败", "key", key, "err", err)
	}

	seg.MarkTransferred(videoProxyURL(workflowID, idx), key)
	e.log.Info("视频转存成功", "workflow", workflowID, "segment", idx, "key", key)
	return nil
}

// Merge 合并全部片段视频。任一片段缺少视频就在调外部工具前中止；
// 临时文件在所有退出路径上都会清理。
func (e *Engine) Merge(ctx context.Context, workflowID string) (string, error) {
	workflow, err := e.loadWorkflow(ctx, workflowID)
	if err != nil {
		return "", err
	}
	if err := workflow.EnsureMergeable(); err != nil {
		return "", validationErr(err)
	}

	tempDir, err := os.MkdirTemp("", "merge-"+workflowID)
	if err != nil {
		return "", collaborator("创建临时目录失败", err)
	}
	defer os.RemoveAll(tempDir)

	files := make([]string, 0, len(workflow.Segments))
	for i := range workflow.Segments {
		seg := &workflow.Segments[i]
		localPath := filepath.Join(tempDir, fmt.Sprintf("segment_%d.mp4", i))
		if err := e.fetchSegmentVideo(ctx, workflowID, seg, localPath); err != nil {
			return "", err
		}
		files = append(files, localPath)
	}

	outputPath := filepath.Join(tempDir, "final.mp4")
	if err := e.video.Concat(ctx, files, outputPath); err != nil {
		return "", collaborator("视频合成失败", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return "", collaborator("读取合成结果失败", err)
	}
	key := FinalVideoKey(workflowID)
	if err := e.local.Write(key, data); err != nil {
		return "", collaborator("保存完整视频失败", err)
	}
	if e.remote.Available() {
		if err := e.remote.Upload(ctx, key, data, "video/mp4"); err != nil {
			return "", collaborator("上传完整视频失败", err)
		}
	}

	finalURL := finalProxyURL(workflowID)
	status := models.WorkflowStatusCompleted
	if err := e.persist(ctx, workflowID, WorkflowUpdate{
		FinalVideoURL: &finalURL,
		Status:        &status,
	}); err != nil {
		return "", err
	}
	e.log.Info("视频合成完成", "workflow", workflowID, "segments", len(files))
	return finalURL, nil
}

// fetchSegmentVideo 解析片段视频来源：代理路径优先存储的内部引用，
// 其次按规则推算对象键，OSS 失败再回退本地层；外部直链直接下载。
func (e *Engine) fetchSegmentVideo(ctx context.Context, workflowID string, seg *models.Segment, localPath string) error {
	videoURL := *seg.VideoURL

	if !strings.HasPrefix(videoURL, "/api/video/") {
		if err := e.video.Download(ctx, videoURL, localPath); err != nil {
			return collaborator(fmt.Sprintf("下载片段 %d 失败", seg.Index), err)
		}
		return nil
	}

	key := SegmentVideoKey(workflowID, seg.Index)
	if seg.VideoOSSPath != nil && *seg.VideoOSSPath != "" {
		key = *seg.VideoOSSPath
	}

	if e.remote.Available() {
		if data, err := e.remote.Download(ctx, key); err == nil {
			return os.WriteFile(localPath, data, 0o644)
		} else if err != ErrObjectNotFound {
			e.log.Warn("从OSS下载视频失败", "key", key, "err", err)
		}
	}
	if data, err := e.local.Read(key); err == nil {
		return os.WriteFile(localPath, data, 0o644)
	}
	return collaborator(fmt.Sprintf("无法获取片段 %d 的视频文件", seg.Index), nil)
}

// DownloadFinal 返回完整视频内容和下载文件名
func (e *Engine) DownloadFinal(ctx context.Context, workflowID string) ([]byte, string, error) {
	workflow, err := e.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, "", err
	}
	if workflow.FinalVideoURL == nil {
		return nil, "", validation("视频尚未合成")
	}

	data, ok := e.resolve(ctx, FinalVideoKey(workflowID))
	if !ok {
		return nil, "", notFound("视频文件不存在")
	}
	return data, workflow.Name + ".mp4", nil
}

// Image 代理读取片段首帧图
func (e *Engine) Image(ctx context.Context, workflowID string, idx int) ([]byte, error) {
	if data, ok := e.resolve(ctx, ImageKey(workflowID, idx)); ok {
		return data, nil
	}
	return nil, notFound("图片不存在")
}

// SegmentVideo 代理读取片段视频
func (e *Engine) SegmentVideo(ctx context.Context, workflowID string, idx int) ([]byte, error) {
	if data, ok := e.resolve(ctx, SegmentVideoKey(workflowID, idx)); ok {
		return data, nil
	}
	return nil, notFound("视频不存在")
}

// FinalVideo 代理读取合成后的完整视频
func (e *Engine) FinalVideo(ctx context.Context, workflowID string) ([]byte, error) {
	if data, ok := e.resolve(ctx, FinalVideoKey(workflowID)); ok {
		return data, nil
	}
	return nil, notFound("视频不存在")
}

// resolve 两级只读解析：本地快路径优先，OSS 兜底。两级都未命中不是异常，
// 只是该工件尚未产出。
func (e *Engine) resolve(ctx context.Context, key string) ([]byte, bool) {
	if data, err := e.local.Read(key); err == nil {
		return data, true
	}
	if e.remote.Available() {
		if data, err := e.remote.Download(ctx, key); err == nil {
			return data, true
		} else if err != ErrObjectNotFound {
			e.log.Warn("从OSS读取失败", "key", key, "err", err)
		}
	}
	return nil, false
}

func (e *Engine) loadWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := e.store.Get(ctx, workflowID)
	if err != nil {
		return nil, collaborator("读取工作流失败", err)
	}
	if workflow == nil {
		return nil, notFound("工作流不存在")
	}
	return workflow, nil
}

func (e *Engine) loadSegment(ctx context.Context, workflowID string, idx int) (*models.Workflow, *models.Segment, error) {
	workflow, err := e.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, nil, err
	}
	seg := workflow.Segment(idx)
	if seg == nil {
		return nil, nil, notFound("片段索引无效")
	}
	return workflow, seg, nil
}

func (e *Engine) persist(ctx context.Context, workflowID string, upd WorkflowUpdate) error {
	updated, err := e.store.Update(ctx, workflowID, upd)
	if err != nil {
		return collaborator("保存工作流失败", err)
	}
	if updated == nil {
		return notFound("工作流不存在")
	}
	return nil
}
