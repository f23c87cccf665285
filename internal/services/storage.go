package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"talentmatch/api/internal/config"
)

type StorageService interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObjectBytes(ctx context.Context, key string) ([]byte, error)
}

// r2Storage talks to the S3-compatible R2 bucket. The underlying client is
// constructed on first use and shared afterwards.
type r2Storage struct {
	cfg    config.R2Config
	logger *zap.Logger

	mu     sync.Mutex
	client *minio.Client
}

func NewStorageService(cfg config.R2Config, logger *zap.Logger) StorageService {
	return &r2Storage{cfg: cfg, logger: logger}
}

func (s *r2Storage) getClient() (*minio.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	endpoint := s.cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s.r2.cloudflarestorage.com", s.cfg.AccountID)
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.cfg.AccessKey, s.cfg.SecretKey, ""),
		Secure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	s.client = client
	s.logger.Info("storage client initialized", zap.String("bucket", s.cfg.Bucket))

	return client, nil
}

// PutObject implements StorageService.
func (s *r2Storage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return nil
}

// GetObjectBytes implements StorageService.
func (s *r2Storage) GetObjectBytes(ctx context.Context, key string) ([]byte, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	obj, err := client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	return data, nil
}

var mimeExtensions = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/plain": ".txt",
}

// ObjectKey builds the storage key for an upload: prefix, a fresh uuid, and
// an extension derived from the original filename, falling back to the mime
// type and finally ".bin".
func ObjectKey(prefix, filename, mimeType string) string {
	return fmt.Sprintf("%s/%s%s", prefix, uuid.New().String(), DeriveExtension(filename, mimeType))
}

func DeriveExtension(filename, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	if ext, ok := mimeExtensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return ".bin"
}
