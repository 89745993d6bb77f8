package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"video-uploader/constant"
	"video-uploader/dto"
	"video-uploader/pkg/metrics"
	"video-uploader/pkg/notify"
	"video-uploader/store"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// SessionSync keeps exactly one change subscription alive per signed-in
// user and tears it down on sign-out.
type SessionSync struct {
	auth       Authenticator
	store      *store.RecordStore
	reconciler *Reconciler
	feed       ChangeFeed
	errors     *notify.Notifier
	newBackOff func() backoff.BackOff

	mu      sync.Mutex
	active  *subscription
	lastErr error
}

type subscription struct {
	userID string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSessionSync(auth Authenticator, store *store.RecordStore, feed ChangeFeed) *SessionSync {
	return &SessionSync{
		auth:       auth,
		store:      store,
		reconciler: NewReconciler(store),
		feed:       feed,
		errors:     notify.New(),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxInterval = 30 * time.Second
			return bo
		},
	}
}

// Run follows auth changes until ctx is done.
func (s *SessionSync) Run(ctx context.Context) error {
	signals, cancel := s.auth.Subscribe()
	defer cancel()

	s.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stop()
			return nil
		case _, ok := <-signals:
			if !ok {
				s.stop()
				return nil
			}
			s.sync(ctx)
		}
	}
}

// LastError is the most recent subscription failure, cleared once batches
// flow again or the user changes.
func (s *SessionSync) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SubscribeErrors signals every subscription failure; read LastError for details.
func (s *SessionSync) SubscribeErrors() (<-chan struct{}, func()) {
	return s.errors.Subscribe()
}

func (s *SessionSync) ActiveUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", false
	}
	return s.active.userID, true
}

func (s *SessionSync) sync(ctx context.Context) {
	user, signedIn := s.auth.CurrentUser()
	current, running := s.ActiveUser()
	if signedIn && running && current == user.UID {
		return
	}

	if running {
		s.stop()
	}
	s.store.Clear()
	s.setLastErr(nil)

	if !signedIn {
		zerolog.Ctx(ctx).Info().Msg("signed out, change feed stopped")
		return
	}
	s.start(ctx, user.UID)
}

func (s *SessionSync) start(ctx context.Context, userID string) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{userID: userID, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.active = sub
	s.mu.Unlock()

	go s.loop(subCtx, sub)
}

// stop waits for the subscription goroutine so two can never overlap.
func (s *SessionSync) stop() {
	s.mu.Lock()
	sub := s.active
	s.active = nil
	s.mu.Unlock()

	if sub == nil {
		return
	}
	sub.cancel()
	<-sub.done
}

func (s *SessionSync) loop(ctx context.Context, sub *subscription) {
	defer close(sub.done)
	logger := zerolog.Ctx(ctx).With().Str("user_id", sub.userID).Logger()
	bo := s.newBackOff()

	for {
		err := s.feed.Watch(ctx, sub.userID, func(ctx context.Context, batch dto.ChangeBatch) {
			s.reconciler.Apply(ctx, batch)
			bo.Reset()
			s.setLastErr(nil)
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("feed ended")
		}
		if !errors.Is(err, constant.ErrSubscriptionFailed) {
			err = fmt.Errorf("%w: %w", constant.ErrSubscriptionFailed, err)
		}

		metrics.SubscriptionFailures.Inc()
		s.setLastErr(err)
		s.errors.Notify()

		delay := bo.NextBackOff()
		logger.Error().Err(err).Dur("retry_in", delay).Msg("change feed failed, keeping current records")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *SessionSync) setLastErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}
