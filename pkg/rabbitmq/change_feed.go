package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"video-uploader/config"
	"video-uploader/constant"
	"video-uploader/dto"
	"video-uploader/entities"
	"video-uploader/repository"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// SnapshotSource answers what currently exists remotely for a user.
type SnapshotSource interface {
	ListByUser(ctx context.Context, userID string) ([]*entities.Video, error)
	ListIDs(ctx context.Context, userID string) ([]string, error)
}

// ChangeFeed delivers a user's remote video changes as ordered batches.
type ChangeFeed struct {
	conn   *amqp.Connection
	cfg    *config.RabbitMQ
	source SnapshotSource
}

func NewChangeFeed(conn *amqp.Connection, cfg *config.RabbitMQ, source SnapshotSource) *ChangeFeed {
	return &ChangeFeed{conn: conn, cfg: cfg, source: source}
}

// Watch binds a private queue to the user's topic, hands a full initial
// batch to handle, then one batch per delivery. handle runs on the calling
// goroutine so batches are applied strictly in arrival order. Watch returns
// nil when ctx is done and an ErrSubscriptionFailed error when the stream
// breaks.
func (f *ChangeFeed) Watch(ctx context.Context, userID string, handle func(ctx context.Context, batch dto.ChangeBatch)) error {
	if f.conn == nil {
		return fmt.Errorf("%w: no broker connection", constant.ErrSubscriptionFailed)
	}

	ch, err := f.conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: %w", constant.ErrSubscriptionFailed, err)
	}
	defer ch.Close()

	if err := declareExchange(ch, f.cfg); err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", f.cfg.ExchangeName).Msg("failed to declare exchange")
		return fmt.Errorf("%w: %w", constant.ErrSubscriptionFailed, err)
	}

	// bind before the initial load so no write between the two is lost
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Msg("failed to declare queue")
		return fmt.Errorf("%w: %w", constant.ErrSubscriptionFailed, err)
	}

	routingKey := RoutingKey(userID)
	if err := ch.QueueBind(q.Name, routingKey, f.cfg.ExchangeName, false, nil); err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", q.Name).Msg("failed to bind queue")
		return fmt.Errorf("%w: %w", constant.ErrSubscriptionFailed, err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", q.Name).Msg("failed to consume queue")
		return fmt.Errorf("%w: %w", constant.ErrSubscriptionFailed, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	videos, err := f.source.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: initial load: %w", constant.ErrSubscriptionFailed, err)
	}
	initial, err := InitialBatch(userID, videos)
	if err != nil {
		return fmt.Errorf("%w: initial load: %w", constant.ErrSubscriptionFailed, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", q.Name).
		Str("routing_key", routingKey).
		Int("videos", len(videos)).
		Msg("video change feed started")
	handle(ctx, initial)

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return fmt.Errorf("%w: channel closed", constant.ErrSubscriptionFailed)
			}
			return fmt.Errorf("%w: %w", constant.ErrSubscriptionFailed, amqpErr)
		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: delivery channel closed", constant.ErrSubscriptionFailed)
			}

			batch := dto.ChangeBatch{UserID: userID}
			event, err := DecodeEvent(delivery.Body)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("message_id", delivery.MessageId).Msg("skipping malformed change event")
			} else {
				batch.Changes = []dto.ChangeEvent{event}
			}

			ids, err := f.source.ListIDs(ctx, userID)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("snapshot unavailable, batch marked incomplete")
			} else {
				batch.Snapshot = ids
				batch.Complete = true
			}

			handle(ctx, batch)
		}
	}
}

// InitialBatch reports every existing video as added together with a
// complete snapshot.
func InitialBatch(userID string, videos []*entities.Video) (dto.ChangeBatch, error) {
	batch := dto.ChangeBatch{
		UserID:   userID,
		Changes:  make([]dto.ChangeEvent, 0, len(videos)),
		Snapshot: make([]string, 0, len(videos)),
		Complete: true,
	}
	for _, v := range videos {
		event, err := repository.NewChangeEvent(constant.ChangeTypeAdded, v.ID, v)
		if err != nil {
			return dto.ChangeBatch{}, err
		}
		batch.Changes = append(batch.Changes, event)
		batch.Snapshot = append(batch.Snapshot, v.ID)
	}
	return batch, nil
}

func DecodeEvent(body []byte) (dto.ChangeEvent, error) {
	var event dto.ChangeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return dto.ChangeEvent{}, fmt.Errorf("%w: %w", constant.ErrDecodeFailed, err)
	}
	switch event.Type {
	case constant.ChangeTypeAdded, constant.ChangeTypeModified, constant.ChangeTypeRemoved:
	default:
		return dto.ChangeEvent{}, fmt.Errorf("%w: unknown change type %q", constant.ErrDecodeFailed, event.Type)
	}
	if event.ID == "" {
		return dto.ChangeEvent{}, fmt.Errorf("%w: %w", constant.ErrDecodeFailed, errors.New("missing id"))
	}
	return event, nil
}
