package upload

import (
	"context"
	"fmt"
	"mime"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"fieldreport/internal/model"
)

// MinioUploader stores media in a self-hosted object-storage bucket instead
// of the third-party endpoint. Same single-attempt contract as HTTPUploader.
type MinioUploader struct {
	client   *minio.Client
	endpoint string
	bucket   string
	secure   bool
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewMinioUploader(ctx context.Context, cfg MinioConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio bucket create: %w", err)
		}
	}

	return &MinioUploader{
		client:   client,
		endpoint: cfg.Endpoint,
		bucket:   cfg.Bucket,
		secure:   cfg.UseSSL,
	}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, file File, kind model.MediaKind) (string, error) {
	r, err := file.Open()
	if err != nil {
		return "", &Error{Err: err}
	}
	defer r.Close()

	name := path.Base(file.Name())
	objectName := fmt.Sprintf("%s/%d-%s", kind, time.Now().UnixNano(), name)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = u.client.PutObject(ctx, u.bucket, objectName, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &Error{Err: err}
	}

	scheme := "http"
	if u.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, u.endpoint, u.bucket, objectName), nil
}
