package api

import "sync"

// PlanEvent is one dispatch-board notification, keyed by tenant and date.
type PlanEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func planKey(tenantID, planDate string) string { return tenantID + "|" + planDate }

// Broker fans plan events out to in-process subscribers (SSE and WebSocket
// connections of a single replica).
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan PlanEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan PlanEvent]struct{}{}}
}

func (b *Broker) Subscribe(tenantID, planDate string) chan PlanEvent {
	ch := make(chan PlanEvent, 8)
	key := planKey(tenantID, planDate)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = map[chan PlanEvent]struct{}{}
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(tenantID, planDate string, ch chan PlanEvent) {
	key := planKey(tenantID, planDate)
	b.mu.Lock()
	if m := b.subs[key]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, key)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(tenantID, planDate string, evt PlanEvent) {
	b.mu.Lock()
	for ch := range b.subs[planKey(tenantID, planDate)] {
		// Slow consumers drop events rather than block the publisher.
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
