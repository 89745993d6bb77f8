package rabbitmq

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
	"video-uploader/config"
	"video-uploader/dto"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingKey is the per-user topic for video changes. The uid is hex encoded
// so it is a single topic word and distinct uids never share a key.
func RoutingKey(userID string) string {
	return "videos." + hex.EncodeToString([]byte(userID))
}

type ChangePublisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
	mu   sync.Mutex
	ch   *amqp.Channel
}

func NewChangePublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *ChangePublisher {
	return &ChangePublisher{conn: conn, cfg: cfg}
}

func (p *ChangePublisher) Publish(ctx context.Context, userID string, event dto.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		p.cfg.ExchangeName,
		RoutingKey(userID),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			MessageId:   event.ID,
			Type:        string(event.Type),
			Body:        body,
		},
	)
}

func (p *ChangePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return nil
	}
	return p.ch.Close()
}

// channel must be called with mu held.
func (p *ChangePublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareExchange(ch, p.cfg); err != nil {
		ch.Close()
		return nil, err
	}

	p.ch = ch
	return ch, nil
}

func declareExchange(ch *amqp.Channel, cfg *config.RabbitMQ) error {
	return ch.ExchangeDeclare(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil)
}
