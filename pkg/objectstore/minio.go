package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
)

const videoContentType = "video/mp4"

var (
	ErrBucketRequired    = errors.New("object store bucket is required")
	ErrPublicURLRequired = errors.New("object store public url is required")
)

type Options struct {
	Bucket string
	// PublicURL is the base the persisted download URLs are built on; it must
	// stay valid for as long as the records do.
	PublicURL string
}

func (o Options) validate() error {
	if o.Bucket == "" {
		return ErrBucketRequired
	}
	if o.PublicURL == "" {
		return ErrPublicURLRequired
	}
	return nil
}

func (o Options) publicObjectURL(remotePath string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(o.PublicURL, "/"), o.Bucket, strings.TrimLeft(remotePath, "/"))
}

type Minio struct {
	client *minio.Client
	opts   Options
}

func NewMinio(client *minio.Client, opts Options) (*Minio, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Minio{client: client, opts: opts}, nil
}

func (m *Minio) PutFile(ctx context.Context, localPath, remotePath string) (*Transfer, error) {
	if _, err := os.Stat(localPath); err != nil {
		return nil, err
	}

	return Start(ctx, func(ctx context.Context) (int64, error) {
		info, err := m.client.FPutObject(ctx, m.opts.Bucket, remotePath, localPath, minio.PutObjectOptions{
			ContentType: videoContentType,
		})
		if err != nil {
			return 0, err
		}
		return info.Size, nil
	}), nil
}

func (m *Minio) DownloadURL(ctx context.Context, remotePath string) (string, error) {
	if _, err := m.client.StatObject(ctx, m.opts.Bucket, remotePath, minio.StatObjectOptions{}); err != nil {
		return "", err
	}
	return m.opts.publicObjectURL(remotePath), nil
}

func (m *Minio) Delete(ctx context.Context, remotePath string) error {
	return m.client.RemoveObject(ctx, m.opts.Bucket, remotePath, minio.RemoveObjectOptions{})
}
