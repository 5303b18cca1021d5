package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket feed for the live dispatch board. A client subscribes to one or
// more plan dates and receives the same events the SSE stream carries.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type     string     `json:"type"`
	ID       string     `json:"id,omitempty"`
	PlanDate string     `json:"planDate,omitempty"`
	Error    string     `json:"error,omitempty"`
	Event    *PlanEvent `json:"event,omitempty"`
}

// DispatchWSHandler handles /v1/dispatch/ws.
//
// Protocol: the client sends {"type":"subscribe","id":"...","planDate":"YYYY-MM-DD"}
// and receives {"type":"event","id":"...","event":{...}} messages until it
// sends {"type":"unsubscribe","id":"..."} or disconnects. "ping" is answered
// with "pong"; the server also pings on its own to keep intermediaries happy.
func (s *Server) DispatchWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	_, tenant := s.withTenant(r)

	type sub struct {
		planDate string
		ch       chan PlanEvent
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Gorilla connections allow one concurrent writer; funnel every outgoing
	// message through a single channel.
	out := make(chan wsMessage, 16)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case msg := <-out:
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "subscribe":
			if msg.ID == "" || validatePlanDate(msg.PlanDate) != nil {
				out <- wsMessage{Type: "error", ID: msg.ID, Error: "id and planDate (YYYY-MM-DD) required"}
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				out <- wsMessage{Type: "error", ID: msg.ID, Error: "duplicate subscription id"}
				continue
			}
			ch := s.Broker.Subscribe(tenant, msg.PlanDate)
			subs[msg.ID] = sub{planDate: msg.PlanDate, ch: ch}
			out <- wsMessage{Type: "subscribed", ID: msg.ID, PlanDate: msg.PlanDate}
			go func(id string, c chan PlanEvent) {
				for evt := range c {
					e := evt
					select {
					case out <- wsMessage{Type: "event", ID: id, Event: &e}:
					case <-done:
						return
					}
				}
			}(msg.ID, ch)
		case "unsubscribe":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(tenant, s0.planDate, s0.ch)
				delete(subs, msg.ID)
				out <- wsMessage{Type: "unsubscribed", ID: msg.ID}
			}
		case "ping":
			out <- wsMessage{Type: "pong"}
		default:
			// ignore
		}
	}
	close(done)
	for id, s0 := range subs {
		s.Broker.Unsubscribe(tenant, s0.planDate, s0.ch)
		delete(subs, id)
	}
}
