package storagesvc

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/adamsassn/membership/core"
)

// minioService stores uploads in an S3-compatible MinIO bucket.
type minioService struct {
	client *minio.Client
	bucket string
}

var _ core.ObjectStorage = (*minioService)(nil)

func NewMinioService(conf *core.Config) (*minioService, error) {
	client, err := minio.New(conf.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Storage.AccessKey, conf.Storage.SecretKey, ""),
		Secure: conf.Storage.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to object storage")
	}
	return &minioService{client: client, bucket: conf.Storage.Bucket}, nil
}

func (svc *minioService) EnsureBucket(ctx context.Context) error {
	exists, err := svc.client.BucketExists(ctx, svc.bucket)
	if err != nil {
		return errors.Wrap(err, "checking bucket")
	}
	if !exists {
		if err = svc.client.MakeBucket(ctx, svc.bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrap(err, "creating bucket")
		}
	}
	return nil
}

func (svc *minioService) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := svc.client.PutObject(ctx, svc.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errors.Wrapf(err, "uploading %s", key)
	}
	return nil
}

func (svc *minioService) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := svc.client.GetObject(ctx, svc.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", key)
	}
	if _, err = obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, core.ErrObjectNotFound
		}
		return nil, errors.Wrapf(err, "downloading %s", key)
	}
	return obj, nil
}

func (svc *minioService) Delete(ctx context.Context, key string) error {
	if err := svc.client.RemoveObject(ctx, svc.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "deleting %s", key)
	}
	return nil
}

func (svc *minioService) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := svc.client.PresignedGetObject(ctx, svc.bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, "presigning %s", key)
	}
	return u.String(), nil
}
