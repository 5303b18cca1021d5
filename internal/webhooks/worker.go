package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fieldroute/internal/metrics"
	"fieldroute/internal/store"
)

// Worker drains the webhook delivery queue, posting each payload with an
// HMAC signature and exponential backoff on failure.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Log         *zap.Logger
	MaxAttempts int

	stop chan struct{}
}

func NewWorker(s store.Store, log *zap.Logger, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Log:         log,
		MaxAttempts: maxAttempts,
		stop:        make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.ProcessOnce()
			}
		}
	}()
}

func (w *Worker) Shutdown() {
	close(w.stop)
}

// ProcessOnce fetches due deliveries and attempts each one.
func (w *Worker) ProcessOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil || len(items) == 0 {
		return
	}
	for _, it := range items {
		w.attempt(ctx, it)
	}
}

func (w *Worker) attempt(ctx context.Context, it store.WebhookDelivery) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		_ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, nil, err.Error(), 0)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	if it.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
	}

	code := 0
	lastErr := ""
	resp, err := w.HTTP.Do(req)
	if err != nil {
		lastErr = err.Error()
	} else {
		code = resp.StatusCode
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}
	if code >= 200 && code < 300 {
		metrics.WebhookDeliveries.WithLabelValues(it.EventType, "delivered").Inc()
		_ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code)
		return
	}

	if it.Attempts+1 >= w.MaxAttempts {
		metrics.WebhookDeliveries.WithLabelValues(it.EventType, "failed").Inc()
		w.Log.Warn("webhook delivery failed permanently",
			zap.String("id", it.ID), zap.String("url", it.URL),
			zap.Int("attempts", it.Attempts+1), zap.Int("code", code), zap.String("error", lastErr))
		_ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, nil, lastErr, code)
		return
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, "retry").Inc()
	next := time.Now().Add(nextBackoff(it.Attempts))
	_ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code)
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	d := time.Second * time.Duration(1<<attempts)
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
