package api

import (
	"net/http"
	"time"

	"fieldroute/internal/buildinfo"
)

func (s *Server) DebugHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":             s.Cfg.Port,
			"hasDatabaseUrl":   s.Cfg.DatabaseURL != "",
			"hasRedisUrl":      s.Cfg.RedisURL != "",
			"rateRps":          s.Cfg.RateLimit.RPS,
			"rateBurst":        s.Cfg.RateLimit.Burst,
			"webhookAttempts":  s.Cfg.Webhooks.MaxAttempts,
			"roadFactor":       s.Cfg.Optimizer.RoadFactor,
			"minPerMile":       s.Cfg.Optimizer.MinPerMile,
			"twoOptIterations": s.Cfg.Optimizer.TwoOptIterations,
		},
	})
}
