package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"video-uploader/constant"
	"video-uploader/dto"
	"video-uploader/entities"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Column names accepted by Update.
const (
	FieldStatus   = "status"
	FieldVideoURL = "video_url"
	FieldError    = "error_message"
	FieldLocalURL = "local_url"
)

// ChangeNotifier receives every committed write so subscribers can mirror it.
type ChangeNotifier interface {
	Publish(ctx context.Context, userID string, event dto.ChangeEvent) error
}

// VideoRepository is the per-user video collection. Every record is keyed
// by id and scoped by user id.
type VideoRepository interface {
	Migrate(ctx context.Context) error
	Create(ctx context.Context, video *entities.Video) error
	// Update writes fields; a nil value clears the column.
	Update(ctx context.Context, userID, id string, fields map[string]interface{}) (*entities.Video, error)
	Delete(ctx context.Context, userID, id string) error
	Get(ctx context.Context, userID, id string) (*entities.Video, error)
	ListByUser(ctx context.Context, userID string) ([]*entities.Video, error)
	ListIDs(ctx context.Context, userID string) ([]string, error)
}

type repo struct {
	db       *gorm.DB
	notifier ChangeNotifier
}

func NewRepo(db *sql.DB, notifier ChangeNotifier) (VideoRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	return &repo{
		db:       gormDB,
		notifier: notifier,
	}, nil
}

func (r *repo) GetDB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *repo) Migrate(ctx context.Context) error {
	return r.GetDB(ctx).AutoMigrate(&entities.Video{})
}

func (r *repo) Create(ctx context.Context, video *entities.Video) error {
	if err := r.GetDB(ctx).Create(video).Error; err != nil {
		return err
	}

	r.publish(ctx, video.UserID, constant.ChangeTypeAdded, video.ID, video)
	return nil
}

func (r *repo) Update(ctx context.Context, userID, id string, fields map[string]interface{}) (*entities.Video, error) {
	res := r.GetDB(ctx).Model(&entities.Video{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, constant.ErrNotFound
	}

	video, err := r.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	r.publish(ctx, userID, constant.ChangeTypeModified, id, video)
	return video, nil
}

// Delete is idempotent; removing a missing record publishes nothing.
func (r *repo) Delete(ctx context.Context, userID, id string) error {
	res := r.GetDB(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entities.Video{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	r.publish(ctx, userID, constant.ChangeTypeRemoved, id, nil)
	return nil
}

func (r *repo) Get(ctx context.Context, userID, id string) (*entities.Video, error) {
	video := &entities.Video{}
	err := r.GetDB(ctx).First(video, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, constant.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return video, nil
}

func (r *repo) ListByUser(ctx context.Context, userID string) ([]*entities.Video, error) {
	var videos []*entities.Video
	err := r.GetDB(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *repo) ListIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.GetDB(ctx).Model(&entities.Video{}).Where("user_id = ?", userID).Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// publish failures are logged only: the write is committed and the next
// snapshot carried by the feed reflects it.
func (r *repo) publish(ctx context.Context, userID string, changeType constant.ChangeType, id string, video *entities.Video) {
	if r.notifier == nil {
		return
	}

	event, err := NewChangeEvent(changeType, id, video)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", id).Msg("failed to encode change event")
		return
	}
	if err := r.notifier.Publish(ctx, userID, event); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("video_id", id).Str("change", string(changeType)).Msg("failed to publish change event")
	}
}

func NewChangeEvent(changeType constant.ChangeType, id string, video *entities.Video) (dto.ChangeEvent, error) {
	event := dto.ChangeEvent{Type: changeType, ID: id}
	if video == nil || changeType == constant.ChangeTypeRemoved {
		return event, nil
	}

	payload, err := json.Marshal(video)
	if err != nil {
		return dto.ChangeEvent{}, err
	}
	event.Payload = payload
	return event, nil
}
