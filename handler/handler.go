package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"video-uploader/auth"
	"video-uploader/config"
	"video-uploader/constant"
	"video-uploader/dto"
	"video-uploader/service"
	"video-uploader/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SyncStatus is the view of the change subscription exposed over HTTP.
type SyncStatus interface {
	ActiveUser() (string, bool)
	LastError() error
	SubscribeErrors() (<-chan struct{}, func())
}

type Dependencies struct {
	Uploads  service.UploadService
	Store    *store.RecordStore
	Session  *auth.Session
	Settings *config.Settings
	Sync     SyncStatus
}

type Handler struct {
	deps Dependencies
	// background uploads outlive the request and stop with ctx
	ctx context.Context
	wg  sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(ctx context.Context, deps Dependencies) *Handler {
	return &Handler{deps: deps, ctx: ctx, inflight: make(map[string]struct{})}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/session", h.GetSession)
	r.POST("/session", h.SignIn)
	r.DELETE("/session", h.SignOut)

	videos := r.Group("/videos")
	videos.GET("", h.ListVideos)
	videos.POST("", h.CreateVideo)
	videos.GET("/:id", h.GetVideo)
	videos.DELETE("/:id", h.DeleteVideo)
	videos.POST("/:id/retry", h.RetryVideo)
	videos.POST("/:id/webhook", h.TriggerProcessing)

	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)

	r.GET("/events", h.Events)
}

// Wait blocks until every background upload has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	var resp dto.SessionResponse
	if user, ok := h.deps.Session.CurrentUser(); ok {
		resp.SignedIn = true
		resp.UID = user.UID
		resp.Email = user.Email
	}
	if feedUser, ok := h.deps.Sync.ActiveUser(); ok {
		resp.FeedUser = feedUser
	}
	if err := h.deps.Sync.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req dto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.deps.Session.SignIn(req.Token)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("sign in rejected")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: auth.ErrInvalidToken.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.SessionResponse{SignedIn: true, UID: user.UID, Email: user.Email})
}

func (h *Handler) SignOut(c *gin.Context) {
	h.deps.Session.SignOut()
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListVideos(c *gin.Context) {
	if _, ok := h.deps.Session.CurrentUser(); !ok {
		writeError(c, constant.ErrNotAuthenticated)
		return
	}
	c.JSON(http.StatusOK, h.deps.Store.All())
}

func (h *Handler) GetVideo(c *gin.Context) {
	if _, ok := h.deps.Session.CurrentUser(); !ok {
		writeError(c, constant.ErrNotAuthenticated)
		return
	}
	video, ok := h.deps.Store.Get(c.Param("id"))
	if !ok {
		writeError(c, constant.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, video)
}

// CreateVideo records the video synchronously and uploads it in the
// background; progress shows up on /events.
func (h *Handler) CreateVideo(c *gin.Context) {
	var req dto.CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.deps.Uploads.Create(c.Request.Context(), req.LocalPath, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	if !h.background(id, func(ctx context.Context) error {
		return h.deps.Uploads.Upload(ctx, id)
	}) {
		writeError(c, constant.ErrUploadInProgress)
		return
	}
	c.JSON(http.StatusAccepted, dto.CreateVideoResponse{ID: id, Status: constant.VideoStatusPending})
}

func (h *Handler) RetryVideo(c *gin.Context) {
	if _, ok := h.deps.Session.CurrentUser(); !ok {
		writeError(c, constant.ErrNotAuthenticated)
		return
	}
	id := c.Param("id")
	video, ok := h.deps.Store.Get(id)
	if !ok {
		writeError(c, constant.ErrNotFound)
		return
	}
	if video.Status != constant.VideoStatusFailed {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "video is " + video.Status.String()})
		return
	}

	if !h.background(id, func(ctx context.Context) error {
		return h.deps.Uploads.Retry(ctx, id)
	}) {
		writeError(c, constant.ErrUploadInProgress)
		return
	}
	c.JSON(http.StatusAccepted, dto.CreateVideoResponse{ID: id, Status: video.Status})
}

func (h *Handler) DeleteVideo(c *gin.Context) {
	if err := h.deps.Uploads.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) TriggerProcessing(c *gin.Context) {
	res, err := h.deps.Uploads.TriggerProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if !res.OK() {
		status = http.StatusBadGateway
	}
	c.JSON(status, dto.WebhookResponse{StatusCode: res.StatusCode, Body: res.Body})
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SettingsResponse{
		WebhookURL:  h.deps.Settings.WebhookURL(),
		DebugOutput: h.deps.Settings.DebugOutput(),
	})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req dto.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.WebhookURL != nil {
		if err := h.deps.Settings.SetWebhookURL(*req.WebhookURL); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.DebugOutput != nil {
		if err := h.deps.Settings.SetDebugOutput(*req.DebugOutput); err != nil {
			writeError(c, err)
			return
		}
	}
	h.GetSettings(c)
}

// Events streams the full video list on every store change, and the
// subscription error whenever the change feed fails.
func (h *Handler) Events(c *gin.Context) {
	changes, cancelChanges := h.deps.Store.Notifier().Subscribe()
	defer cancelChanges()
	failures, cancelFailures := h.deps.Sync.SubscribeErrors()
	defer cancelFailures()

	ctx := c.Request.Context()
	c.SSEvent("videos", h.deps.Store.All())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("videos", h.deps.Store.All())
		case _, ok := <-failures:
			if !ok {
				return false
			}
			if err := h.deps.Sync.LastError(); err != nil {
				c.SSEvent("error", dto.ErrorResponse{Error: err.Error()})
			}
		}
		return true
	})
}

// background runs an upload for id unless one started here is still
// running; the check happens before the request returns.
func (h *Handler) background(id string, run func(ctx context.Context) error) bool {
	h.mu.Lock()
	if _, busy := h.inflight[id]; busy {
		h.mu.Unlock()
		return false
	}
	h.inflight[id] = struct{}{}
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.inflight, id)
			h.mu.Unlock()
		}()
		if err := run(h.ctx); err != nil {
			zerolog.Ctx(h.ctx).Error().Err(err).Str("video_id", id).Msg("background upload failed")
		}
	}()
	return true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request: " + err.Error()})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, constant.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, constant.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, constant.ErrEmptyTitle):
		status = http.StatusBadRequest
	case errors.Is(err, constant.ErrInvalidTransition), errors.Is(err, constant.ErrUploadInProgress):
		status = http.StatusConflict
	case errors.Is(err, constant.ErrWebhookNotConfigured):
		status = http.StatusPreconditionFailed
	case errors.Is(err, constant.ErrRemoteWriteFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}
