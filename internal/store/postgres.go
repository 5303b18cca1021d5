package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fieldroute/internal/model"
)

// Postgres persists tenants' jobs, rosters and plans in PostgreSQL via the
// pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir applies every .sql file in dir in lexical order. Files are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS style).
func (p *Postgres) MigrateDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) CreateJobs(ctx context.Context, tenantID, planDate string, jobs []model.Job) ([]model.Job, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

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
		var lat, lng any
		if j.Location != nil {
			lat, lng = j.Location.Lat, j.Location.Lng
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO jobs (id, tenant_id, plan_date, customer_name, lat, lng, duration_min, scheduled_at, priority, technician_id, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			j.ID, tenantID, planDate, nullIfEmpty(j.CustomerName), lat, lng, j.DurationMin, j.ScheduledAt, j.Priority, nullIfEmpty(j.TechnicianID), j.Status)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) ListJobs(ctx context.Context, tenantID, planDate string) ([]model.Job, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, customer_name, lat, lng, duration_min, scheduled_at, priority, technician_id, status
		FROM jobs WHERE tenant_id=$1 AND plan_date=$2 ORDER BY created_at, id`, tenantID, planDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Job{}
	for rows.Next() {
		j := model.Job{TenantID: tenantID, PlanDate: planDate}
		var name, techID sql.NullString
		var lat, lng sql.NullFloat64
		var sched sql.NullTime
		if err := rows.Scan(&j.ID, &name, &lat, &lng, &j.DurationMin, &sched, &j.Priority, &techID, &j.Status); err != nil {
			return nil, err
		}
		j.CustomerName = name.String
		j.TechnicianID = techID.String
		if lat.Valid && lng.Valid {
			j.Location = &model.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
		}
		if sched.Valid {
			t := sched.Time.UTC()
			j.ScheduledAt = &t
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateTechnicians(ctx context.Context, tenantID string, techs []model.Technician) ([]model.Technician, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]model.Technician, 0, len(techs))
	for _, t := range techs {
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.TenantID = tenantID
		_, err = tx.ExecContext(ctx, `INSERT INTO technicians (id, tenant_id, name, work_start, work_end, max_jobs, active)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET name=$3, work_start=$4, work_end=$5, max_jobs=$6, active=$7`,
			t.ID, tenantID, t.Name, nullIfEmpty(t.WorkStart), nullIfEmpty(t.WorkEnd), t.MaxJobs, t.Active)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) ListTechnicians(ctx context.Context, tenantID string) ([]model.Technician, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, name, COALESCE(work_start,''), COALESCE(work_end,''), max_jobs, active
		FROM technicians WHERE tenant_id=$1 ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Technician{}
	for rows.Next() {
		t := model.Technician{TenantID: tenantID}
		if err := rows.Scan(&t.ID, &t.Name, &t.WorkStart, &t.WorkEnd, &t.MaxJobs, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return model.Plan{}, err
	}
	// Last writer wins per tenant and date.
	_, err = p.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, plan_date, body, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (tenant_id, plan_date) DO UPDATE SET id=$1, body=$4, created_at=$5`,
		plan.ID, plan.TenantID, plan.PlanDate, body, plan.CreatedAt)
	if err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, planDate string) (model.Plan, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE tenant_id=$1 AND plan_date=$2`, tenantID, planDate).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Plan{}, ErrNotFound
		}
		return model.Plan{}, err
	}
	var plan model.Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (p *Postgres) ApplyPlan(ctx context.Context, plan model.Plan) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	updated := 0
	for _, r := range plan.Routes {
		for _, st := range r.Stops {
			res, err := tx.ExecContext(ctx, `UPDATE jobs SET technician_id=$1, scheduled_at=$2, status='scheduled'
				WHERE tenant_id=$3 AND id=$4`, r.TechnicianID, st.ArriveAt, plan.TenantID, st.JobID)
			if err != nil {
				return 0, err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				updated += int(n)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
		id, req.TenantID, req.URL, ev, nullIfEmpty(req.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions
		WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, fmt.Sprintf("[%q]", eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`,
		id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now()
		ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, delivered_at=now(), updated_at=now(), response_code=$2 WHERE id=$1`,
			id, responseCode)
		return err
	}
	if nextAttemptAt == nil {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, updated_at=now(), response_code=$3 WHERE id=$1`,
			id, nullIfEmpty(lastError), responseCode)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), *nextAttemptAt, responseCode)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
