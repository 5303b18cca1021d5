package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
// Good enough for local development and tests; everything is lost on restart.
type Memory struct {
	mu         sync.Mutex
	jobs       map[string]model.Job  // id -> job
	jobsByDay  map[dayKey][]string   // tenant+date -> job ids in ingest order
	techs      map[string][]model.Technician
	plans      map[dayKey]model.Plan // latest plan per tenant+date
	subs       map[string][]model.Subscription
	deliveries map[string]*memDelivery
	deliverIDs []string // ids in enqueue order
}

type dayKey struct {
	Tenant   string
	PlanDate string
}

type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	DeliveredAt   *time.Time
}

func NewMemory() *Memory {
	return &Memory{
		jobs:       map[string]model.Job{},
		jobsByDay:  map[dayKey][]string{},
		techs:      map[string][]model.Technician{},
		plans:      map[dayKey]model.Plan{},
		subs:       map[string][]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) CreateJobs(ctx context.Context, tenantID, planDate string, jobs []model.Job) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey{Tenant: tenantID, PlanDate: planDate}
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.ID == "" {
			j.ID = uuid.New().String()
		}
		j.TenantID = tenantID
		j.PlanDate = planDate
		if j.Status == "" {
			j.Status = "pending"
		}
		m.jobs[j.ID] = j
		m.jobsByDay[k] = append(m.jobsByDay[k], j.ID)
		out = append(out, j)
	}
	return out, nil
}

func (m *Memory) ListJobs(ctx context.Context, tenantID, planDate string) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.jobsByDay[dayKey{Tenant: tenantID, PlanDate: planDate}]
	out := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.jobs[id])
	}
	return out, nil
}

func (m *Memory) CreateTechnicians(ctx context.Context, tenantID string, techs []model.Technician) ([]model.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Technician, 0, len(techs))
	for _, t := range techs {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.TenantID = tenantID
		m.techs[tenantID] = append(m.techs[tenantID], t)
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) ListTechnicians(ctx context.Context, tenantID string) ([]model.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Technician(nil), m.techs[tenantID]...), nil
}

func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	m.plans[dayKey{Tenant: plan.TenantID, PlanDate: plan.PlanDate}] = plan
	return plan, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, planDate string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[dayKey{Tenant: tenantID, PlanDate: planDate}]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ApplyPlan(ctx context.Context, plan model.Plan) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for _, r := range plan.Routes {
		for _, st := range r.Stops {
			j, ok := m.jobs[st.JobID]
			if !ok || j.TenantID != plan.TenantID {
				continue
			}
			arrive := st.ArriveAt
			j.TechnicianID = r.TechnicianID
			j.ScheduledAt = &arrive
			j.Status = "scheduled"
			m.jobs[st.JobID] = j
			updated++
		}
	}
	return updated, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Subscription(nil), m.subs[tenantID]...), nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	found := false
	for _, s := range arr {
		if s.ID == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		return ErrNotFound
	}
	m.subs[tenantID] = out
	return nil
}

func (m *Memory) SubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID: id, TenantID: tenantID, SubscriptionID: subscriptionID,
			EventType: eventType, URL: url, Secret: secret,
			Payload: payload, Status: "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.deliverIDs = append(m.deliverIDs, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliverIDs {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.LastError = lastError
	if nextAttemptAt == nil {
		d.Status = "failed"
		return nil
	}
	d.Status = "retry"
	d.NextAttemptAt = *nextAttemptAt
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
