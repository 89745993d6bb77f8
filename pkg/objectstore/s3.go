package objectstore

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	opts     Options
}

func NewS3(client *s3.Client, opts Options) (*S3, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{
		client:   client,
		uploader: uploader,
		opts:     opts,
	}, nil
}

func (s *S3) PutFile(ctx context.Context, localPath, remotePath string) (*Transfer, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return Start(ctx, func(ctx context.Context) (int64, error) {
		defer f.Close()
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.opts.Bucket),
			Key:         aws.String(remotePath),
			Body:        f,
			ContentType: aws.String(videoContentType),
		})
		if err != nil {
			return 0, fmt.Errorf("upload: %w", err)
		}
		return stat.Size(), nil
	}), nil
}

func (s *S3) DownloadURL(ctx context.Context, remotePath string) (string, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		return "", fmt.Errorf("head object: %w", err)
	}
	return s.opts.publicObjectURL(remotePath), nil
}

func (s *S3) Delete(ctx context.Context, remotePath string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
