package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"video-uploader/constant"
	"video-uploader/entities"
	"video-uploader/pkg/metrics"
	"video-uploader/pkg/objectstore"
	"video-uploader/pkg/webhook"
	"video-uploader/repository"
	"video-uploader/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Authenticator interface {
	CurrentUser() (entities.User, bool)
	Subscribe() (<-chan struct{}, func())
}

type ObjectStore interface {
	PutFile(ctx context.Context, localPath, remotePath string) (*objectstore.Transfer, error)
	DownloadURL(ctx context.Context, remotePath string) (string, error)
	Delete(ctx context.Context, remotePath string) error
}

type WebhookSender interface {
	Send(ctx context.Context, url string, payload webhook.Payload) (*webhook.Result, error)
}

// WebhookSettings is read at send time so edits apply without a restart.
type WebhookSettings interface {
	WebhookURL() string
	DebugOutput() bool
}

// UploadService drives videos through pending, uploading, uploaded and
// completed, or failed. Operational failures are recorded on the video
// itself; only ErrNotAuthenticated and lookup or input errors are returned.
type UploadService interface {
	Create(ctx context.Context, localPath, title string) (string, error)
	Upload(ctx context.Context, id string) error
	Record(ctx context.Context, localPath, title string) (string, error)
	Retry(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	TriggerProcessing(ctx context.Context, id string) (*webhook.Result, error)
}

type UploadDependencies struct {
	Repo     repository.VideoRepository
	Objects  ObjectStore
	Auth     Authenticator
	Store    *store.RecordStore
	Webhook  WebhookSender
	Settings WebhookSettings
}

type uploadService struct {
	repo     repository.VideoRepository
	objects  ObjectStore
	auth     Authenticator
	store    *store.RecordStore
	webhook  WebhookSender
	settings WebhookSettings
	now      func() time.Time
	newID    func() string
}

func NewUploadService(deps UploadDependencies) UploadService {
	return &uploadService{
		repo:     deps.Repo,
		objects:  deps.Objects,
		auth:     deps.Auth,
		store:    deps.Store,
		webhook:  deps.Webhook,
		settings: deps.Settings,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *uploadService) Create(ctx context.Context, localPath, title string) (string, error) {
	user, ok := s.auth.CurrentUser()
	if !ok {
		return "", constant.ErrNotAuthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", constant.ErrEmptyTitle
	}

	video := &entities.Video{
		ID:    s.newID(),
		Title: title,
		// postgres keeps microseconds; truncate so the echoed record compares equal
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		UserID:    user.UID,
		UserEmail: user.Email,
		Status:    constant.VideoStatusPending,
		LocalURL:  &localPath,
	}
	if err := s.repo.Create(ctx, video); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", video.ID).Msg("failed to create video")
		return "", fmt.Errorf("%w: %w", constant.ErrRemoteWriteFailed, err)
	}

	s.store.Upsert(*video)
	metrics.StatusTransitions.WithLabelValues(video.Status.String()).Inc()
	zerolog.Ctx(ctx).Info().Str("video_id", video.ID).Str("user_id", user.UID).Msg("video created")
	return video.ID, nil
}

// Upload is a no-op unless the video is still pending.
func (s *uploadService) Upload(ctx context.Context, id string) error {
	user, ok := s.auth.CurrentUser()
	if !ok {
		return constant.ErrNotAuthenticated
	}
	if err := s.claim(id); err != nil {
		return err
	}
	defer s.store.Unpin(id)

	video, err := s.lookup(ctx, user, id)
	if err != nil {
		return err
	}
	if video.Status != constant.VideoStatusPending {
		zerolog.Ctx(ctx).Info().Str("video_id", id).Str("status", video.Status.String()).Msg("video is not pending")
		return nil
	}

	s.run(ctx, user, video)
	return nil
}

func (s *uploadService) Record(ctx context.Context, localPath, title string) (string, error) {
	id, err := s.Create(ctx, localPath, title)
	if err != nil {
		return "", err
	}
	return id, s.Upload(ctx, id)
}

// Retry re-enters the full upload path, even when the bytes already reached
// the object store and only URL resolution failed; the deterministic remote
// path makes the second transfer an overwrite.
func (s *uploadService) Retry(ctx context.Context, id string) error {
	user, ok := s.auth.CurrentUser()
	if !ok {
		return constant.ErrNotAuthenticated
	}
	if err := s.claim(id); err != nil {
		return err
	}
	defer s.store.Unpin(id)

	video, err := s.lookup(ctx, user, id)
	if err != nil {
		return err
	}
	if video.Status != constant.VideoStatusFailed {
		zerolog.Ctx(ctx).Info().Str("video_id", id).Str("status", video.Status.String()).Msg("retry ignored, video is not failed")
		return nil
	}

	s.run(ctx, user, video)
	return nil
}

// Delete removes the record first; the blob is best effort and may be orphaned.
func (s *uploadService) Delete(ctx context.Context, id string) error {
	user, ok := s.auth.CurrentUser()
	if !ok {
		return constant.ErrNotAuthenticated
	}

	if err := s.repo.Delete(ctx, user.UID, id); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", id).Msg("failed to delete video")
		return fmt.Errorf("%w: %w", constant.ErrRemoteWriteFailed, err)
	}
	s.store.Remove(id)

	remotePath := objectstore.VideoPath(user.UID, id)
	if err := s.objects.Delete(ctx, remotePath); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("video_id", id).Str("remote_path", remotePath).Msg("failed to delete video object")
	}

	zerolog.Ctx(ctx).Info().Str("video_id", id).Msg("video deleted")
	return nil
}

func (s *uploadService) TriggerProcessing(ctx context.Context, id string) (*webhook.Result, error) {
	user, ok := s.auth.CurrentUser()
	if !ok {
		return nil, constant.ErrNotAuthenticated
	}
	video, err := s.lookup(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if video.Status != constant.VideoStatusCompleted && video.Status != constant.VideoStatusUploaded {
		return nil, fmt.Errorf("%w: %s cannot be processed", constant.ErrInvalidTransition, video.Status)
	}
	if video.VideoURL == "" {
		return nil, fmt.Errorf("%w: video has no download url", constant.ErrInvalidTransition)
	}

	url := s.settings.WebhookURL()
	if url == "" {
		return nil, constant.ErrWebhookNotConfigured
	}
	debug := s.settings.DebugOutput()

	payload := webhook.NewPayload(video)
	if debug {
		zerolog.Ctx(ctx).Info().Str("url", url).Interface("payload", payload).Msg("sending processing webhook")
	}

	res, err := s.webhook.Send(ctx, url, payload)
	if err != nil {
		metrics.WebhookCalls.WithLabelValues("error").Inc()
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", id).Msg("processing webhook failed")
		return nil, err
	}
	if debug {
		zerolog.Ctx(ctx).Info().Int("status_code", res.StatusCode).Str("body", res.Body).Msg("processing webhook response")
	}
	if !res.OK() {
		metrics.WebhookCalls.WithLabelValues("rejected").Inc()
		zerolog.Ctx(ctx).Warn().Int("status_code", res.StatusCode).Str("video_id", id).Msg("processing webhook rejected")
		return res, nil
	}

	metrics.WebhookCalls.WithLabelValues("ok").Inc()
	if _, err := s.transition(ctx, user, video.ID, map[string]interface{}{
		repository.FieldStatus: constant.VideoStatusProcessedByThunk,
	}); err != nil {
		return res, err
	}
	return res, nil
}

// run moves a pending or failed video through the upload path. Each status
// is persisted before the step it describes starts.
func (s *uploadService) run(ctx context.Context, user entities.User, video entities.Video) {
	logger := zerolog.Ctx(ctx).With().Str("video_id", video.ID).Logger()
	if s.abandoned(ctx, logger) {
		return
	}

	if video.LocalURL == nil || *video.LocalURL == "" {
		s.fail(ctx, user, video, fmt.Errorf("%w: no local file recorded", constant.ErrTransferFailed))
		return
	}
	localPath := *video.LocalURL
	if err := checkReadable(localPath); err != nil {
		s.fail(ctx, user, video, fmt.Errorf("%w: %w", constant.ErrTransferFailed, err))
		return
	}

	uploading, err := s.transition(ctx, user, video.ID, map[string]interface{}{
		repository.FieldStatus: constant.VideoStatusUploading,
		repository.FieldError:  nil,
	})
	if err != nil {
		if s.abandoned(ctx, logger) {
			return
		}
		s.fail(ctx, user, video, err)
		return
	}

	remotePath := objectstore.VideoPath(user.UID, video.ID)
	logger.Info().Str("remote_path", remotePath).Msg("uploading video")
	transfer, err := s.objects.PutFile(ctx, localPath, remotePath)
	if err == nil {
		err = transfer.Wait(ctx)
	}
	if err != nil {
		if s.abandoned(ctx, logger) {
			return
		}
		s.fail(ctx, user, *uploading, fmt.Errorf("%w: %w", constant.ErrTransferFailed, err))
		return
	}

	uploaded, err := s.transition(ctx, user, video.ID, map[string]interface{}{
		repository.FieldStatus: constant.VideoStatusUploaded,
	})
	if err != nil {
		if s.abandoned(ctx, logger) {
			return
		}
		s.fail(ctx, user, *uploading, err)
		return
	}

	url, err := s.objects.DownloadURL(ctx, remotePath)
	if err != nil {
		if s.abandoned(ctx, logger) {
			return
		}
		s.fail(ctx, user, *uploaded, fmt.Errorf("%w: %w", constant.ErrURLResolutionFailed, err))
		return
	}

	if _, err := s.transition(ctx, user, video.ID, map[string]interface{}{
		repository.FieldStatus:   constant.VideoStatusCompleted,
		repository.FieldVideoURL: url,
		repository.FieldError:    nil,
	}); err != nil {
		if s.abandoned(ctx, logger) {
			return
		}
		s.fail(ctx, user, *uploaded, err)
		return
	}

	logger.Info().Msg("video upload completed")
}

// transition persists fields and mirrors the result locally right away,
// ahead of the echo from the change feed.
func (s *uploadService) transition(ctx context.Context, user entities.User, id string, fields map[string]interface{}) (*entities.Video, error) {
	updated, err := s.repo.Update(ctx, user.UID, id, fields)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", id).Interface("fields", fields).Msg("failed to update video")
		return nil, fmt.Errorf("%w: %w", constant.ErrRemoteWriteFailed, err)
	}

	s.store.Upsert(*updated)
	metrics.StatusTransitions.WithLabelValues(updated.Status.String()).Inc()
	zerolog.Ctx(ctx).Debug().Str("video_id", id).Str("status", updated.Status.String()).Msg("video status updated")
	return updated, nil
}

// fail records cause on the video. If the remote write itself fails the
// local copy still shows the failure.
func (s *uploadService) fail(ctx context.Context, user entities.User, current entities.Video, cause error) {
	msg := cause.Error()
	zerolog.Ctx(ctx).Warn().Err(cause).Str("video_id", current.ID).Msg("video upload failed")

	updated, err := s.repo.Update(ctx, user.UID, current.ID, map[string]interface{}{
		repository.FieldStatus: constant.VideoStatusFailed,
		repository.FieldError:  msg,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", current.ID).Msg("failed to persist upload failure")
		failed := current
		failed.Status = constant.VideoStatusFailed
		failed.Error = &msg
		s.store.Upsert(failed)
		metrics.StatusTransitions.WithLabelValues(constant.VideoStatusFailed.String()).Inc()
		return
	}

	s.store.Upsert(*updated)
	metrics.StatusTransitions.WithLabelValues(updated.Status.String()).Inc()
}

// abandoned reports whether the surrounding operation was cancelled; the
// video then keeps the last status it durably reached.
func (s *uploadService) abandoned(ctx context.Context, logger zerolog.Logger) bool {
	if ctx.Err() == nil {
		return false
	}
	logger.Warn().Err(ctx.Err()).Msg("upload abandoned")
	return true
}

// claim pins id for the caller; the status check must happen after it so two
// callers cannot both see the same startable status.
func (s *uploadService) claim(id string) error {
	if !s.store.TryPin(id) {
		return fmt.Errorf("%w: %s", constant.ErrUploadInProgress, id)
	}
	return nil
}

func (s *uploadService) lookup(ctx context.Context, user entities.User, id string) (entities.Video, error) {
	if video, ok := s.store.Get(id); ok && video.UserID == user.UID {
		return video, nil
	}

	video, err := s.repo.Get(ctx, user.UID, id)
	if err != nil {
		if errors.Is(err, constant.ErrNotFound) {
			return entities.Video{}, err
		}
		return entities.Video{}, fmt.Errorf("load video %s: %w", id, err)
	}
	return *video, nil
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
