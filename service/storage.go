package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// 两级存储：本地目录是快路径缓存（始终存在），OSS 是可选的持久层。
// 持久层为事实来源，本地层可随时由它重建。

// 统一的对象键规则，本地和 OSS 共用同一套命名空间
func WorkflowKey(workflowID string) string {
	return "workflows/" + workflowID + ".json"
}

func ImageKey(workflowID string, idx int) string {
	return fmt.Sprintf("images/%s/segment_%d.jpg", workflowID, idx)
}

func SegmentVideoKey(workflowID string, idx int) string {
	return fmt.Sprintf("segments/%s/segment_%d.mp4", workflowID, idx)
}

func FinalVideoKey(workflowID string) string {
	return "finals/" + workflowID + ".mp4"
}

// LocalStore 本地数据目录，键即相对路径
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("创建本地数据目录失败: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (l *LocalStore) Path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *LocalStore) Write(key string, data []byte) error {
	path := l.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read 未命中返回 os.ErrNotExist
func (l *LocalStore) Read(key string) ([]byte, error) {
	return os.ReadFile(l.Path(key))
}

func (l *LocalStore) Exists(key string) bool {
	_, err := os.Stat(l.Path(key))
	return err == nil
}

// Delete 返回是否确实删掉了文件
func (l *LocalStore) Delete(key string) bool {
	err := os.Remove(l.Path(key))
	return err == nil
}

// RemoteStore 持久对象存储。未配置时使用 NoRemote() 的禁用实现，
// 而不是让调用方到处判空。
type RemoteStore interface {
	Available() bool
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	SignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

var (
	// ErrRemoteDisabled 本地模式下所有远端操作返回该错误
	ErrRemoteDisabled = errors.New("对象存储未配置")
	// ErrObjectNotFound 远端不存在该对象
	ErrObjectNotFound = errors.New("对象不存在")
)

type disabledRemote struct{}

// NoRemote 返回本地模式的远端占位实现
func NoRemote() RemoteStore { return disabledRemote{} }

func (disabledRemote) Available() bool { return false }

func (disabledRemote) Upload(context.Context, string, []byte, string) error {
	return ErrRemoteDisabled
}

func (disabledRemote) Download(context.Context, string) ([]byte, error) {
	return nil, ErrRemoteDisabled
}

func (disabledRemote) Delete(context.Context, string) error { return ErrRemoteDisabled }

func (disabledRemote) ListKeys(context.Context, string) ([]string, error) {
	return nil, ErrRemoteDisabled
}

func (disabledRemote) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrRemoteDisabled
}

// ContentTypeForKey 按扩展名推断 Content-Type
func ContentTypeForKey(key string) string {
	switch filepath.Ext(key) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
