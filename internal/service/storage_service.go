package service

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider stores article images and returns their public URL.
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetURL(key string) string
}

type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, filepath.FromSlash(key)))
}

func (p *LocalStorageProvider) GetURL(key string) string {
	return "/uploads/" + key
}

type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(key string) string {
	return "/" + p.Config.MinioBucket + "/" + key
}

type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(key, reader, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return p.GetURL(key), nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, key string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (p *OSSStorageProvider) GetURL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, key)
}

type StorageService struct {
	Provider StorageProvider
	now      func() time.Time
}

// NewStorageService picks the configured provider and falls back to local disk
// when the remote one cannot be constructed.
func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("MinIO storage unavailable, using local disk", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("OSS storage unavailable, using local disk", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}
	return &StorageService{Provider: provider, now: time.Now}
}

// UploadArticleImage validates the extension and stores the image under
// articles/YYYY/MM/<uuid><ext>.
func (s *StorageService) UploadArticleImage(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	allowed := false
	for _, e := range util.AllowedImageExtensions {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", util.ErrInvalidImageExt
	}

	sniffed, body, err := util.SniffImage(reader)
	if err != nil {
		if errors.Is(err, util.ErrInvalidImageType) {
			return "", err
		}
		return "", util.NewError(util.KindValidation, "read image", err)
	}
	if contentType == "" || !util.IsImage(contentType) {
		contentType = sniffed
	}

	key := path.Join("articles", s.now().Format("2006/01"), model.GenerateUUID()+ext)
	url, err := s.Provider.Upload(ctx, key, body, size, contentType)
	if err != nil {
		return "", util.NewError(util.KindUpstream, "image upload failed", err)
	}
	return url, nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.Provider.Delete(ctx, key)
}
