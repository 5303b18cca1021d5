package store

import (
	"context"
	"errors"
	"time"

	"fieldroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Jobs
	CreateJobs(ctx context.Context, tenantID, planDate string, jobs []model.Job) ([]model.Job, error)
	ListJobs(ctx context.Context, tenantID, planDate string) ([]model.Job, error)

	// Technicians
	CreateTechnicians(ctx context.Context, tenantID string, techs []model.Technician) ([]model.Technician, error)
	ListTechnicians(ctx context.Context, tenantID string) ([]model.Technician, error)

	// Plans
	SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error)
	GetPlan(ctx context.Context, tenantID, planDate string) (model.Plan, error)
	// ApplyPlan writes the optimized assignment back onto the stored jobs:
	// technician id, scheduled arrival, status. Returns how many jobs changed.
	ApplyPlan(ctx context.Context, plan model.Plan) (int, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID string) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error
	SubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// WebhookDelivery is one queued notification attempt.
type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}
