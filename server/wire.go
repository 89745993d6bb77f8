package server

import (
	"context"
	"fmt"
	"video-uploader/auth"
	"video-uploader/config"
	"video-uploader/constant"
	"video-uploader/pkg/objectstore"
	"video-uploader/pkg/rabbitmq"
	"video-uploader/pkg/webhook"
	"video-uploader/repository"
	"video-uploader/service"
	"video-uploader/store"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// components are shared by the long-running server and the one-shot upload.
type components struct {
	conn      *amqp.Connection
	publisher *rabbitmq.ChangePublisher
	repo      repository.VideoRepository
	session   *auth.Session
	store     *store.RecordStore
	settings  *config.Settings
	uploads   service.UploadService
}

func wire(ctx context.Context, cfg *config.Config) (*components, error) {
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	publisher := rabbitmq.NewChangePublisher(conn, cfg.Queue)

	repo, err := repository.NewRepo(cfg.DB, publisher)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	objects, err := newObjectStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	session := auth.NewSession(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	recordStore := store.NewRecordStore(nil)

	uploads := service.NewUploadService(service.UploadDependencies{
		Repo:     repo,
		Objects:  objects,
		Auth:     session,
		Store:    recordStore,
		Webhook:  webhook.NewClient(cfg.Webhook.Timeout),
		Settings: settings,
	})

	zerolog.Ctx(ctx).Info().Str("storage", string(cfg.Storage.Driver)).Str("bucket", cfg.Storage.Bucket).Msg("components ready")
	return &components{
		conn:      conn,
		publisher: publisher,
		repo:      repo,
		session:   session,
		store:     recordStore,
		settings:  settings,
		uploads:   uploads,
	}, nil
}

func (c *components) close(ctx context.Context) {
	if err := c.publisher.Close(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to close change publisher")
	}
}

func newObjectStore(storage config.Storage) (service.ObjectStore, error) {
	opts := objectstore.Options{
		Bucket:    storage.Bucket,
		PublicURL: storage.PublicURL,
	}
	switch storage.Driver {
	case constant.StorageDriverMinio:
		return objectstore.NewMinio(storage.Minio, opts)
	case constant.StorageDriverS3:
		return objectstore.NewS3(storage.S3, opts)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", storage.Driver)
	}
}
