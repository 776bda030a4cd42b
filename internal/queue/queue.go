package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tadka/internal/logger"
	"tadka/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Producer publishes article events to a durable RabbitMQ queue.
type Producer struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewProducer dials url and declares queue as durable.
func NewProducer(url, queue string) (*Producer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	logger.WithComponent("queue").WithField("queue", queue).Info("RabbitMQ producer ready")
	return &Producer{conn: conn, ch: ch, queue: queue}, nil
}

// ArticlePublished sends event as a persistent JSON message.
func (p *Producer) ArticlePublished(ctx context.Context, event models.ArticlePublished) error {
	body, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Timestamp:    event.PublishedAt,
			Type:         "article.published",
			Body:         body,
		},
	)
}

func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch.Close()
	p.conn.Close()
}

// EncodeEvent is the wire form of an ArticlePublished message.
func EncodeEvent(event models.ArticlePublished) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode article event: %w", err)
	}
	return body, nil
}
