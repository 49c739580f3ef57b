package models

import (
	"time"

	"github.com/google/uuid"
)

// 工作流状态（声明性元数据，不由片段状态强制推导，见 segment.go 的各转移守卫）
const (
	WorkflowStatusDraft      = "draft"
	WorkflowStatusProcessing = "processing"
	WorkflowStatusCompleted  = "completed"
)

// Workflow 一条口播文案到成片的完整流水线文档，整体以 JSON 形式落盘
type Workflow struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
	OriginalText  string    `json:"original_text"`
	Segments      []Segment `json:"segments"`
	FinalVideoURL *string   `json:"final_video_url"`
	Status        string    `json:"status"`
}

// WorkflowSummary 列表页的轻量摘要
type WorkflowSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	Status       string    `json:"status"`
	SegmentCount int       `json:"segment_count"`
}

// NewWorkflow 创建空工作流；name 为空时默认使用创建时间
func NewWorkflow(name string) *Workflow {
	now := time.Now()
	if name == "" {
		name = now.Format("2006-01-02 15:04:05")
	}
	return &Workflow{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Segments:  []Segment{},
		Status:    WorkflowStatusDraft,
	}
}

func (w *Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{
		ID:           w.ID,
		Name:         w.Name,
		CreatedAt:    w.CreatedAt,
		Status:       w.Status,
		SegmentCount: len(w.Segments),
	}
}

// Segment 按下标取片段，越界返回 nil
func (w *Workflow) Segment(idx int) *Segment {
	if idx < 0 || idx >= len(w.Segments) {
		return nil
	}
	return &w.Segments[idx]
}
