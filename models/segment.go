package models

import (
	"errors"
	"fmt"
)

// 片段视频状态机：pending → generating → completed | failed。
// 同一个 task_id 下状态只能前进；重新提交生成（换新 task_id）是回到 generating 的唯一途径。
const (
	VideoStatusPending    = "pending"
	VideoStatusGenerating = "generating"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
)

var (
	ErrNoPrompt   = errors.New("请先生成提示词")
	ErrNoImage    = errors.New("i2v模式需要先上传首帧图片")
	ErrNoSegments = errors.New("没有视频片段")
)

// Segment 一个口播片段及其派生产物（提示词、首帧图、视频）
type Segment struct {
	Index        int     `json:"index"`
	Original     string  `json:"original"`
	Prompt       *string `json:"prompt"`
	ImageURL     *string `json:"image_url"`
	ImageOSSURL  *string `json:"image_oss_url,omitempty"`
	VideoTaskID  *string `json:"video_task_id"`
	VideoStatus  string  `json:"video_status"`
	VideoURL     *string `json:"video_url"`
	VideoOSSPath *string `json:"video_oss_path,omitempty"`
}

// NewSegments 由拆分结果构建片段列表，下标连续且与位置一致
func NewSegments(texts []string) []Segment {
	segments := make([]Segment, 0, len(texts))
	for idx, text := range texts {
		segments = append(segments, Segment{
			Index:       idx,
			Original:    text,
			VideoStatus: VideoStatusPending,
		})
	}
	return segments
}

// CanSubmitVideo 提交视频生成任务前的双重前置条件：提示词和首帧图都已就绪
func (s *Segment) CanSubmitVideo() error {
	if s.Prompt == nil || *s.Prompt == "" {
		return ErrNoPrompt
	}
	if s.ImageURL == nil || *s.ImageURL == "" {
		return ErrNoImage
	}
	return nil
}

// BeginGeneration 记录新任务并进入 generating；新 task_id 可覆盖旧任务的终态
func (s *Segment) BeginGeneration(taskID string) {
	s.VideoTaskID = &taskID
	s.VideoStatus = VideoStatusGenerating
	s.VideoURL = nil
	s.VideoOSSPath = nil
}

// ApplyTaskStatus 应用外部任务上报的状态，保持同一 task_id 下的单调性：
// 已到 completed/failed 的片段不会被同一任务的滞后上报拉回 generating/pending。
// 返回 false 表示该上报被忽略。
func (s *Segment) ApplyTaskStatus(taskID, status string) bool {
	if s.VideoTaskID == nil || *s.VideoTaskID != taskID {
		return false
	}
	if terminal(s.VideoStatus) && !terminal(status) {
		return false
	}
	s.VideoStatus = status
	return true
}

// MarkTransferred 生成结果已转存入库，片段到达终态 completed
func (s *Segment) MarkTransferred(proxyURL, ossPath string) {
	s.VideoStatus = VideoStatusCompleted
	s.VideoURL = &proxyURL
	if ossPath != "" {
		s.VideoOSSPath = &ossPath
	}
}

// MarkTransferFailed 任务成功但结果无法转存，按流水线口径记失败
func (s *Segment) MarkTransferFailed() {
	s.VideoStatus = VideoStatusFailed
	s.VideoURL = nil
	s.VideoOSSPath = nil
}

func terminal(status string) bool {
	return status == VideoStatusCompleted || status == VideoStatusFailed
}

// EnsureMergeable 合并前置检查：必须有片段，且每个片段都已有视频
func (w *Workflow) EnsureMergeable() error {
	if len(w.Segments) == 0 {
		return ErrNoSegments
	}
	for i := range w.Segments {
		seg := &w.Segments[i]
		if seg.VideoURL == nil || *seg.VideoURL == "" {
			return fmt.Errorf("片段 %d 尚未生成视频", seg.Index)
		}
	}
	return nil
}
