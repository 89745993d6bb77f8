package repository

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"
	"video-uploader/constant"
	"video-uploader/dto"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []dto.ChangeEvent
	users  []string
}

func (n *recordingNotifier) Publish(_ context.Context, userID string, event dto.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	n.events = append(n.events, event)
	return nil
}

var videoColumns = []string{
	"id", "title", "video_url", "created_at", "user_id", "user_email", "status", "local_url", "error_message",
}

func newMockRepo(t *testing.T) (VideoRepository, sqlmock.Sqlmock, *recordingNotifier) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier := &recordingNotifier{}
	repo, err := NewRepo(db, notifier)
	require.NoError(t, err)
	return repo, mock, notifier
}

func TestUpdateClearsErrorColumn(t *testing.T) {
	repo, mock, notifier := newMockRepo(t)
	createdAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "videos" SET "error_message"=$1,"status"=$2 WHERE id = $3 AND user_id = $4`)).
		WithArgs(nil, "uploading", "v1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "videos" WHERE id = $1 AND user_id = $2`)).
		WillReturnRows(sqlmock.NewRows(videoColumns).AddRow(
			"v1", "Demo", "", createdAt, "u1", "u1@example.com", "uploading", "/tmp/clip.mp4", nil,
		))

	video, err := repo.Update(context.Background(), "u1", "v1", map[string]interface{}{
		FieldStatus: constant.VideoStatusUploading,
		FieldError:  nil,
	})
	require.NoError(t, err)
	assert.Equal(t, constant.VideoStatusUploading, video.Status)
	assert.Nil(t, video.Error)
	require.NotNil(t, video.LocalURL)
	assert.Equal(t, "/tmp/clip.mp4", *video.LocalURL)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, notifier.events, 1)
	assert.Equal(t, constant.ChangeTypeModified, notifier.events[0].Type)
	assert.Equal(t, []string{"u1"}, notifier.users)
}

func TestUpdateOfMissingVideoIsNotFound(t *testing.T) {
	repo, mock, notifier := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "videos" SET "status"=$1 WHERE id = $2 AND user_id = $3`)).
		WithArgs("uploaded", "v1", "someone-else").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := repo.Update(context.Background(), "someone-else", "v1", map[string]interface{}{
		FieldStatus: constant.VideoStatusUploaded,
	})
	assert.ErrorIs(t, err, constant.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, notifier.events)
}

func TestDeleteOfMissingVideoPublishesNothing(t *testing.T) {
	repo, mock, notifier := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "videos" WHERE id = $1 AND user_id = $2`)).
		WithArgs("v1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "u1", "v1"))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, notifier.events)
}

func TestDeletePublishesRemoval(t *testing.T) {
	repo, mock, notifier := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "videos" WHERE id = $1 AND user_id = $2`)).
		WithArgs("v1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "u1", "v1"))
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, notifier.events, 1)
	assert.Equal(t, dto.ChangeEvent{Type: constant.ChangeTypeRemoved, ID: "v1"}, notifier.events[0])
}

func TestGetOfMissingVideoIsNotFound(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "videos" WHERE id = $1 AND user_id = $2`)).
		WillReturnRows(sqlmock.NewRows(videoColumns))

	_, err := repo.Get(context.Background(), "u1", "v1")
	assert.ErrorIs(t, err, constant.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListIDsIsScopedToUser(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "videos" WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))

	ids, err := repo.ListIDs(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
