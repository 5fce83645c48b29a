package pkg

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string // 对外访问的前缀，为空时用 endpoint
}

// Storage 媒体对象存储。库里存对象 key，对外返回可访问的 URL。
type Storage struct {
	client *minio.Client
	bucket string
	base   string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &Storage{client: client, bucket: cfg.Bucket, base: base}, nil
}

// EnsureBucket 启动时检查 bucket，不存在就创建
func (s *Storage) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// URL 对象 key 转成公开 URL，已经是绝对地址的原样返回
func (s *Storage) URL(key string) string {
	if key == "" {
		return ""
	}
	if u, err := url.Parse(key); err == nil && u.IsAbs() {
		return key
	}
	return s.base + "/" + s.bucket + "/" + strings.TrimLeft(key, "/")
}

// PresignUpload 客户端直传用的 PUT 地址
func (s *Storage) PresignUpload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, expiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
