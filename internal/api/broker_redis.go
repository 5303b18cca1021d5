package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// EventBroker distributes plan events to live subscribers. The in-memory
// Broker covers a single replica; RedisBroker spans replicas via pub/sub.
type EventBroker interface {
	Subscribe(tenantID, planDate string) chan PlanEvent
	Unsubscribe(tenantID, planDate string, ch chan PlanEvent)
	Publish(tenantID, planDate string, evt PlanEvent)
}

// RedisBroker implements EventBroker over Redis Pub/Sub.
type RedisBroker struct {
	rdb *redis.Client

	mu  sync.Mutex
	sub map[chan PlanEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), sub: map[chan PlanEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(tenantID, planDate string) chan PlanEvent {
	ch := make(chan PlanEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(tenantID, planDate))
	// First receive confirms the subscription is live.
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.sub[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt PlanEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(tenantID, planDate string, ch chan PlanEvent) {
	b.mu.Lock()
	ps := b.sub[ch]
	delete(b.sub, ch)
	b.mu.Unlock()
	if ps != nil {
		// Closing the PubSub ends the fan-out goroutine, which closes ch.
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(tenantID, planDate string, evt PlanEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(tenantID, planDate), data).Err()
}

func (b *RedisBroker) chanName(tenantID, planDate string) string {
	return "plan:" + tenantID + ":" + planDate
}
