package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"TextToVideo-server/models"
)

// WorkflowStore 工作流文档的 CRUD 持久化：写入时本地与 OSS 双写，
// 读取时本地优先、OSS 兜底并回填本地缓存。OSS 未配置时退化为纯本地模式（列表不可用）。
type WorkflowStore struct {
	local  *LocalStore
	remote RemoteStore
	log    *slog.Logger
}

func NewWorkflowStore(local *LocalStore, remote RemoteStore) *WorkflowStore {
	return &WorkflowStore{
		local:  local,
		remote: remote,
		log:    slog.With("module", "workflow_store"),
	}
}

// WorkflowUpdate 允许更新的字段白名单，nil 表示不更新该字段
type WorkflowUpdate struct {
	Name          *string
	OriginalText  *string
	Segments      []models.Segment
	FinalVideoURL *string
	Status        *string
}

// Create 创建新工作流并持久化
func (s *WorkflowStore) Create(ctx context.Context, name string) (*models.Workflow, error) {
	workflow := models.NewWorkflow(name)
	if err := s.save(ctx, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

// Get 获取工作流；两级都未命中时返回 (nil, nil)
func (s *WorkflowStore) Get(ctx context.Context, id string) (*models.Workflow, error) {
	key := WorkflowKey(id)

	if data, err := s.local.Read(key); err == nil {
		var workflow models.Workflow
		if err := json.Unmarshal(data, &workflow); err == nil {
			return &workflow, nil
		}
		s.log.Warn("本地工作流文档损坏", "id", id)
	}

	if !s.remote.Available() {
		return nil, nil
	}
	data, err := s.remote.Download(ctx, key)
	if err != nil {
		if err != ErrObjectNotFound {
			s.log.Warn("从OSS获取工作流失败", "id", id, "err", err)
		}
		return nil, nil
	}
	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		s.log.Warn("OSS工作流文档损坏", "id", id, "err", err)
		return nil, nil
	}

	// 回填本地缓存
	if err := s.local.Write(key, data); err != nil {
		s.log.Warn("回填本地缓存失败", "id", id, "err", err)
	}
	return &workflow, nil
}

// Update 合并白名单字段并持久化；工作流不存在时返回 (nil, nil)
func (s *WorkflowStore) Update(ctx context.Context, id string, upd WorkflowUpdate) (*models.Workflow, error) {
	workflow, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if workflow == nil {
		return nil, nil
	}

	if upd.Name != nil {
		workflow.Name = *upd.Name
	}
	if upd.OriginalText != nil {
		workflow.OriginalText = *upd.OriginalText
	}
	if upd.Segments != nil {
		workflow.Segments = upd.Segments
	}
	if upd.FinalVideoURL != nil {
		workflow.FinalVideoURL = upd.FinalVideoURL
	}
	if upd.Status != nil {
		workflow.Status = *upd.Status
	}
	workflow.UpdatedAt = time.Now()

	if err := s.save(ctx, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

// Delete 两级独立删除；只有确实删掉了对象的层才计入，任一级删掉即返回 true
func (s *WorkflowStore) Delete(ctx context.Context, id string) bool {
	key := WorkflowKey(id)
	deleted := s.local.Delete(key)

	if s.remote.Available() {
		switch err := s.remote.Delete(ctx, key); err {
		case nil:
			deleted = true
		case ErrObjectNotFound:
		default:
			s.log.Warn("删除OSS工作流失败", "id", id, "err", err)
		}
	}
	return deleted
}

// List 从 OSS 枚举全部工作流摘要，按创建时间降序；
// 单条文档损坏只跳过并记日志。本地模式下列表不可用，返回空。
func (s *WorkflowStore) List(ctx context.Context) []models.WorkflowSummary {
	summaries := []models.WorkflowSummary{}
	if !s.remote.Available() {
		return summaries
	}

	keys, err := s.remote.ListKeys(ctx, "workflows/")
	if err != nil {
		s.log.Warn("从OSS获取工作流列表失败", "err", err)
		return summaries
	}

	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := s.remote.Download(ctx, key)
		if err != nil {
			s.log.Warn("读取工作流失败", "key", key, "err", err)
			continue
		}
		var workflow models.Workflow
		if err := json.Unmarshal(data, &workflow); err != nil {
			s.log.Warn("解析工作流失败", "key", key, "err", err)
			continue
		}
		summaries = append(summaries, workflow.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

// save 本地必写，OSS 尽力写（失败只记日志，保持本地模式可用）
func (s *WorkflowStore) save(ctx context.Context, workflow *models.Workflow) error {
	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return err
	}
	key := WorkflowKey(workflow.ID)

	if err := s.local.Write(key, data); err != nil {
		return err
	}
	if s.remote.Available() {
		if err := s.remote.Upload(ctx, key, data, "application/json"); err != nil {
			s.log.Warn("上传工作流到OSS失败", "id", workflow.ID, "err", err)
		}
	}
	return nil
}
