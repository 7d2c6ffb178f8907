package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"gruz-board/internal/domain"
	"gruz-board/internal/infra/metrics"
)

// RabbitWriteQueue реализует очередь отложенной записи поверх AMQP.
type RabbitWriteQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitWriteQueue подключается к брокеру и объявляет долговечную
// очередь.
func NewRabbitWriteQueue(amqpURL, queue string) (*RabbitWriteQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitWriteQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitWriteQueue) Enqueue(ctx context.Context, job domain.WriteJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди. Сообщение подтверждается
// сразу после декодирования: повторы после сбоя воркера решает сам
// воркер, ставя задачу обратно.
func (q *RabbitWriteQueue) Pop(ctx context.Context) (domain.WriteJob, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.WriteJob{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.WriteJob{}, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.WriteJob{}, errors.New("amqp queue: канал доставки закрыт")
			}
			var job domain.WriteJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				return domain.WriteJob{}, fmt.Errorf("decode job: %w", err)
			}
			if err := d.Ack(false); err != nil {
				return domain.WriteJob{}, fmt.Errorf("ack job: %w", err)
			}
			return job, nil
		}
	}
}

// Close закрывает канал и соединение.
func (q *RabbitWriteQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}

func (q *RabbitWriteQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}
