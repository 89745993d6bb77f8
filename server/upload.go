package server

import (
	"fmt"
	"os/signal"
	"syscall"
	"video-uploader/config"

	"github.com/rs/zerolog"
)

type UploadResult struct {
	ID     string
	Status string
	Error  string
}

// RunUpload signs in with token, records the file and uploads it before
// returning. Failures of the upload itself are reported on the result.
func RunUpload(cfg *config.Config, file, title, token string) (*UploadResult, error) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := wire(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer app.close(ctx)
	applyDebugOutput(app.settings.DebugOutput())

	user, err := app.session.SignIn(token)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", user.UID).Str("file", file).Msg("recording video")

	id, err := app.uploads.Record(ctx, file, title)
	if err != nil && id == "" {
		return nil, err
	}

	video, ok := app.store.Get(id)
	if !ok {
		return &UploadResult{ID: id}, err
	}
	return &UploadResult{ID: id, Status: video.Status.String(), Error: video.ErrorMessage()}, err
}
