package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"metawave/config"
	"metawave/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps every logical bucket inside one MinIO bucket.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects to MinIO and creates the bucket when it is missing.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	logger.Info("connecting to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.Bool("ssl", cfg.MinioUseSSL))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("bucket created", logger.String("bucket", cfg.MinioBucket))
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.MinioBucket,
		baseURL: publicBase(cfg),
	}, nil
}

// publicBase is PUBLIC_BASE_URL, or the bucket's path-style URL on the endpoint.
func publicBase(cfg *config.Config) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	scheme := "http"
	if cfg.MinioUseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, strings.TrimRight(cfg.MinioEndpoint, "/"), cfg.MinioBucket)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (s *MinioStore) Upload(ctx context.Context, bucket Bucket, objectPath string, r io.Reader, size int64, contentType string, overwrite bool) (string, error) {
	key := Key(bucket, objectPath)
	if !overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return "", fmt.Errorf("%s: %w", key, ErrObjectExists)
		}
		if !isNoSuchKey(err) {
			return "", fmt.Errorf("stat %s: %w", key, err)
		}
	}
	if contentType == "" {
		contentType = ContentType(objectPath)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	logger.Debug("object uploaded", logger.String("key", key), logger.Int64("size", info.Size))
	return s.baseURL + "/" + key, nil
}

func (s *MinioStore) Open(ctx context.Context, bucket Bucket, objectPath string) (io.ReadCloser, error) {
	return s.open(ctx, Key(bucket, objectPath))
}

func (s *MinioStore) OpenURL(ctx context.Context, url string) (io.ReadCloser, error) {
	key, ok := keyFromURL(s.baseURL, url)
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, ErrObjectNotFound)
	}
	return s.open(ctx, key)
}

// open stats first so a missing key fails here rather than on first Read.
func (s *MinioStore) open(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return obj, nil
}

func (s *MinioStore) PublicURL(bucket Bucket, objectPath string) string {
	return s.baseURL + "/" + Key(bucket, objectPath)
}

func (s *MinioStore) Delete(ctx context.Context, bucket Bucket, objectPath string) error {
	key := Key(bucket, objectPath)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// New builds the store selected by STORAGE_DRIVER.
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory object store; uploads are lost on restart")
		return NewMemoryStore(cfg.PublicBaseURL), nil
	case "", "minio":
		return NewMinioStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
