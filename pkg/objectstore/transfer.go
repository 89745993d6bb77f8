package objectstore

import (
	"context"
	"fmt"
	"path"
)

// VideoPath is deterministic so a retry overwrites the same object.
func VideoPath(userID, videoID string) string {
	return path.Join("users", userID, "videos", fmt.Sprintf("%s.mp4", videoID))
}

// Transfer is a handle to an upload running in the background.
type Transfer struct {
	done chan struct{}
	size int64
	err  error
}

// Start runs upload in its own goroutine and returns immediately.
func Start(ctx context.Context, upload func(ctx context.Context) (int64, error)) *Transfer {
	t := &Transfer{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.size, t.err = upload(ctx)
	}()
	return t
}

// Wait blocks until the transfer finishes or ctx is done. Abandoning the
// wait does not stop the upload; cancel the ctx given to Start for that.
func (t *Transfer) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Size is only meaningful after Done is closed.
func (t *Transfer) Size() int64 {
	return t.size
}
