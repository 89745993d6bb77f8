package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"video-uploader/constant"
	"video-uploader/entities"
	"video-uploader/pkg/notify"
	"video-uploader/pkg/objectstore"
	"video-uploader/pkg/webhook"
	"video-uploader/repository"
)

type fakeAuth struct {
	mu       sync.Mutex
	user     *entities.User
	notifier *notify.Notifier
}

func newFakeAuth(user *entities.User) *fakeAuth {
	return &fakeAuth{user: user, notifier: notify.New()}
}

func (f *fakeAuth) CurrentUser() (entities.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return entities.User{}, false
	}
	return *f.user, true
}

func (f *fakeAuth) Subscribe() (<-chan struct{}, func()) {
	return f.notifier.Subscribe()
}

func (f *fakeAuth) set(user *entities.User) {
	f.mu.Lock()
	f.user = user
	f.mu.Unlock()
	f.notifier.Notify()
}

type fakeRepo struct {
	mu        sync.Mutex
	videos    map[string]entities.Video
	history   map[string][]constant.VideoStatus
	createErr error
	deleteErr error
	// updateErr is consulted before every Update.
	updateErr func(fields map[string]interface{}) error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		videos:  make(map[string]entities.Video),
		history: make(map[string][]constant.VideoStatus),
	}
}

func (f *fakeRepo) Migrate(ctx context.Context) error { return nil }

func (f *fakeRepo) Create(ctx context.Context, video *entities.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.videos[video.ID] = *video
	f.history[video.ID] = append(f.history[video.ID], video.Status)
	return nil
}

func (f *fakeRepo) Update(ctx context.Context, userID, id string, fields map[string]interface{}) (*entities.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		if err := f.updateErr(fields); err != nil {
			return nil, err
		}
	}
	v, ok := f.videos[id]
	if !ok || v.UserID != userID {
		return nil, constant.ErrNotFound
	}
	for k, val := range fields {
		switch k {
		case repository.FieldStatus:
			v.Status = val.(constant.VideoStatus)
		case repository.FieldVideoURL:
			v.VideoURL = val.(string)
		case repository.FieldError:
			v.Error = optionalString(val)
		case repository.FieldLocalURL:
			v.LocalURL = optionalString(val)
		}
	}
	f.videos[id] = v
	if _, ok := fields[repository.FieldStatus]; ok {
		f.history[id] = append(f.history[id], v.Status)
	}
	out := v
	return &out, nil
}

func optionalString(val interface{}) *string {
	if val == nil {
		return nil
	}
	s := val.(string)
	return &s
}

func (f *fakeRepo) Delete(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.videos, id)
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, userID, id string) (*entities.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok || v.UserID != userID {
		return nil, constant.ErrNotFound
	}
	return &v, nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID string) ([]*entities.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Video
	for _, v := range f.videos {
		if v.UserID == userID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) ListIDs(ctx context.Context, userID string) ([]string, error) {
	videos, _ := f.ListByUser(ctx, userID)
	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

func (f *fakeRepo) get(id string) (entities.Video, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	return v, ok
}

func (f *fakeRepo) statuses(id string) []constant.VideoStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]constant.VideoStatus(nil), f.history[id]...)
}

type fakeObjects struct {
	mu        sync.Mutex
	puts      []string
	deletes   []string
	putErr    error
	waitErr   error
	urlErr    error
	deleteErr error
	// transfer, when set, replaces the default upload body.
	transfer func(ctx context.Context) (int64, error)
}

func (f *fakeObjects) PutFile(ctx context.Context, localPath, remotePath string) (*objectstore.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, remotePath)
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.transfer != nil {
		return objectstore.Start(ctx, f.transfer), nil
	}
	waitErr := f.waitErr
	return objectstore.Start(ctx, func(ctx context.Context) (int64, error) {
		return 1024, waitErr
	}), nil
}

func (f *fakeObjects) DownloadURL(ctx context.Context, remotePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://objects.example.com/" + remotePath, nil
}

func (f *fakeObjects) Delete(ctx context.Context, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, remotePath)
	return f.deleteErr
}

func (f *fakeObjects) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type fakeWebhook struct {
	calls  []webhook.Payload
	urls   []string
	result *webhook.Result
	err    error
}

func (f *fakeWebhook) Send(ctx context.Context, url string, payload webhook.Payload) (*webhook.Result, error) {
	f.calls = append(f.calls, payload)
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSettings struct {
	url   string
	debug bool
}

func (f fakeSettings) WebhookURL() string { return f.url }
func (f fakeSettings) DebugOutput() bool  { return f.debug }

var errBoom = errors.New("boom")
