// Package main runs a demo WebSocket client for the dispatch board feed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	PlanDate string          `json:"planDate,omitempty"`
	Error    string          `json:"error,omitempty"`
	Event    json.RawMessage `json:"event,omitempty"`
}

func post(base, path string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return nil
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	planDate := time.Now().UTC().Format("2006-01-02")

	// Seed a roster and a few jobs.
	roster := []byte(`{"technicians":[{"name":"Dana","workStart":"08:00","workEnd":"16:00","maxJobs":8,"active":true}]}`)
	if err := post(base, "/v1/technicians", roster); err != nil {
		log.Fatal(err)
	}
	jobs := []byte(fmt.Sprintf(`{"planDate":%q,"jobs":[
		{"customerName":"Acme","location":{"lat":33.45,"lng":-112.07},"durationMin":45},
		{"customerName":"Globex","location":{"lat":33.50,"lng":-112.10},"durationMin":30}
	]}`, planDate))
	if err := post(base, "/v1/jobs", jobs); err != nil {
		log.Fatal(err)
	}

	// Connect the dispatch feed and subscribe to today's plan.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/dispatch/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", PlanDate: planDate}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s %s", m.Type, string(m.Event))
		}
	}()

	// Trigger a plan build; the feed should report plan.updated.
	time.Sleep(500 * time.Millisecond)
	optimize := []byte(fmt.Sprintf(`{"planDate":%q,"apply":true,"compareBaseline":true}`, planDate))
	if err := post(base, "/v1/optimize", optimize); err != nil {
		log.Fatal(err)
	}

	select {
	case <-time.After(3 * time.Second):
	case <-done:
	}
}
