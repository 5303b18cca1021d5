package api

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fieldroute/internal/config"
	"fieldroute/internal/geo"
	"fieldroute/internal/opt"
	"fieldroute/internal/store"
	"fieldroute/internal/webhooks"
)

// Server holds the dependencies of every HTTP handler.
type Server struct {
	Store   store.Store
	Pub     *webhooks.Publisher
	Broker  EventBroker
	Planner *opt.Planner
	Limiter *TenantLimiter
	Log     *zap.Logger
	Cfg     config.Config
}

// NewServer wires storage, event broker and optimizer from config. Without a
// DATABASE_URL it runs on the in-memory store; without a REDIS_URL events
// fan out in-process only.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Info("using in-memory store")
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := sp.MigrateDir(context.Background(), cfg.MigrationsDir); err != nil {
			return nil, err
		}
		log.Info("using postgres store")
		s = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Warn("redis broker unavailable, falling back to in-memory", zap.Error(err))
			broker = NewBroker()
		} else {
			log.Info("using redis event broker")
			broker = rb
		}
	} else {
		broker = NewBroker()
	}

	est := &geo.RoadEstimator{
		RoadFactor:  cfg.Optimizer.RoadFactor,
		MinPerMile:  cfg.Optimizer.MinPerMile,
		FallbackMin: cfg.Optimizer.FallbackTravelMin,
	}
	planner := opt.NewPlanner(est)
	planner.Seq.TwoOptIterations = cfg.Optimizer.TwoOptIterations
	planner.DefaultMaxJobs = cfg.Optimizer.DefaultMaxJobs

	return &Server{
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Broker:  broker,
		Planner: planner,
		Limiter: NewTenantLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Log:     log,
		Cfg:     cfg,
	}, nil
}

// withTenant resolves the calling tenant. Header based for now; the CRM
// gateway in front of this service owns authentication.
func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates the background delivery worker bound to the store.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Log, s.Cfg.Webhooks.MaxAttempts)
}
