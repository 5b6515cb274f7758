package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClockEvent is the wire form of one biometric punch travelling over the
// sync channel between the device-facing API and the worker.
type ClockEvent struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	DeviceID   string    `json:"device_id"`
	Kind       string    `json:"kind"` // "in" or "out"
	At         time.Time `json:"at"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, ev ClockEvent) error
	Consume(ctx context.Context) (<-chan ClockEvent, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan ClockEvent
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan ClockEvent, size)}
}

// Publish enqueues an event.
func (q *InMemory) Publish(ctx context.Context, ev ClockEvent) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan ClockEvent, error) {
	out := make(chan ClockEvent)
	go func() {
		defer close(out)
		for {
			select {
			case ev := <-q.ch:
				out <- ev
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue using LPUSH/BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "attendance:clock-events"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an event as JSON.
func (q *RedisQueue) Publish(ctx context.Context, ev ClockEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams events using BRPOP. Undecodable payloads are dropped; the
// audit trail on the producer side keeps the raw punch.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan ClockEvent, error) {
	out := make(chan ClockEvent)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var ev ClockEvent
				if err := json.Unmarshal([]byte(res[1]), &ev); err == nil {
					out <- ev
				}
			}
		}
	}()
	return out, nil
}
