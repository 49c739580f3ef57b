package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"TextToVideo-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// OSSStore 基于 MinIO 客户端的持久对象存储实现
type OSSStore struct {
	client *minio.Client
	bucket string
	log    *slog.Logger
}

// NewOSSStore 初始化 OSS 连接并确保 Bucket 存在
func NewOSSStore(cfg *config.Config) (*OSSStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.OSS.Endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.OSS.AccessKey, cfg.OSS.SecretKey, ""),
		Secure: cfg.OSS.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	store := &OSSStore{
		client: client,
		bucket: cfg.OSS.Bucket,
		log:    slog.With("module", "oss"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, store.bucket)
	if err == nil && !exists {
		if err := client.MakeBucket(ctx, store.bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		store.log.Info("Bucket 已创建", "bucket", store.bucket)
	}

	store.log.Info("OSS 初始化成功", "endpoint", endpoint, "bucket", store.bucket)
	return store, nil
}

func (o *OSSStore) Available() bool { return true }

// Upload 上传对象，带 3 次指数退避重试
func (o *OSSStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := o.client.PutObject(ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err == nil {
			return nil
		}
		lastErr = err
		o.log.Warn("上传失败", "key", key, "attempt", attempt+1, "err", err)
		if attempt < maxRetries-1 {
			select {
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (o *OSSStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete 对象不存在返回 ErrObjectNotFound（RemoveObject 本身是幂等的，需先探测）
func (o *OSSStore) Delete(ctx context.Context, key string) error {
	if _, err := o.client.StatObject(ctx, o.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		return err
	}
	return o.client.RemoveObject(ctx, o.bucket, key, minio.RemoveObjectOptions{})
}

func (o *OSSStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return keys, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// SignedURL 生成限时签名 GET URL（百炼 API 拉取私有图片用）
func (o *OSSStore) SignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := o.client.PresignedGetObject(ctx, o.bucket, key, expires, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
