package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestBrokerFanout(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe("t_demo", "2026-03-02")
	ch2 := b.Subscribe("t_demo", "2026-03-02")
	other := b.Subscribe("t_demo", "2026-03-03")
	defer b.Unsubscribe("t_demo", "2026-03-03", other)

	b.Publish("t_demo", "2026-03-02", PlanEvent{Type: "plan.updated", Data: map[string]any{"planId": "p1"}})

	for i, ch := range []chan PlanEvent{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Type != "plan.updated" {
				t.Fatalf("subscriber %d: unexpected type %q", i, evt.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event", i)
		}
	}
	select {
	case evt := <-other:
		t.Fatalf("wrong-date subscriber got event %+v", evt)
	default:
	}

	b.Unsubscribe("t_demo", "2026-03-02", ch1)
	b.Unsubscribe("t_demo", "2026-03-02", ch2)
	// Publishing after everyone left must not panic.
	b.Publish("t_demo", "2026-03-02", PlanEvent{Type: "plan.updated"})
}

func TestBrokerSlowConsumerDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("t_demo", "2026-03-02")
	defer b.Unsubscribe("t_demo", "2026-03-02", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("t_demo", "2026-03-02", PlanEvent{Type: "plan.updated"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked on a slow consumer")
	}
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}

	ch := b.Subscribe("t_demo", "2026-03-02")
	b.Publish("t_demo", "2026-03-02", PlanEvent{Type: "plan.updated", Data: map[string]any{"planId": "p1"}})

	select {
	case evt := <-ch:
		if evt.Type != "plan.updated" {
			t.Fatalf("unexpected type %q", evt.Type)
		}
		if evt.Data["planId"] != "p1" {
			t.Fatalf("unexpected data %+v", evt.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event via redis")
	}

	b.Unsubscribe("t_demo", "2026-03-02", ch)
}
