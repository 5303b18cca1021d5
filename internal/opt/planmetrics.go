package opt

import "sync"

// RunStats captures one optimizer run for the admin plan-metrics view.
type RunStats struct {
	Jobs            int     `json:"jobs"`
	Routes          int     `json:"routes"`
	Unassigned      int     `json:"unassigned"`
	Efficiency      float64 `json:"efficiency"`
	OverHoursRoutes int     `json:"overHoursRoutes"`
	ElapsedMs       int64   `json:"elapsedMs"`
}

type runKey struct {
	Tenant   string
	PlanDate string
}

var (
	runMu   sync.Mutex
	runByID = map[runKey]RunStats{}
)

// RecordRun stores the latest run stats for a tenant and plan date.
func RecordRun(tenant, planDate string, st RunStats) {
	runMu.Lock()
	runByID[runKey{Tenant: tenant, PlanDate: planDate}] = st
	runMu.Unlock()
}

// LastRun returns the most recent run stats, if any.
func LastRun(tenant, planDate string) (RunStats, bool) {
	runMu.Lock()
	defer runMu.Unlock()
	st, ok := runByID[runKey{Tenant: tenant, PlanDate: planDate}]
	return st, ok
}
