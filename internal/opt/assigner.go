package opt

import (
	"errors"
	"time"

	"fieldroute/internal/geo"
	"fieldroute/internal/model"
)

// ErrNoActiveTechnicians aborts the whole optimization: with nobody to
// assign to there is no meaningful partial result.
var ErrNoActiveTechnicians = errors.New("no active technicians")

// defaultMaxJobs caps a technician whose roster record omits a capacity.
const defaultMaxJobs = 10

// Planner distributes a day's jobs across technicians and sequences each
// route. It holds no state between runs; concurrent calls are safe.
type Planner struct {
	Seq *Sequencer
	Est geo.Estimator
	// DefaultMaxJobs applies to technicians without a stated capacity.
	// Zero means the built-in default.
	DefaultMaxJobs int
}

func NewPlanner(est geo.Estimator) *Planner {
	return &Planner{Seq: NewSequencer(est), Est: est}
}

// BuildPlan assigns jobs to technicians and sequences every route.
//
// Pinned jobs (TechnicianID already set) are honored first and never shed,
// even past capacity. Remaining jobs go to the technician with spare
// capacity whose current cluster centroid is nearest; technicians with no
// jobs yet are seeded first by spare capacity, which spreads the fleet
// before clustering begins. Jobs that fit nowhere land in Unassigned.
func (p *Planner) BuildPlan(tenantID, planDate string, jobs []model.Job, techs []model.Technician, compareBaseline bool) (model.Plan, error) {
	active := make([]model.Technician, 0, len(techs))
	for _, t := range techs {
		if t.Active {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return model.Plan{}, ErrNoActiveTechnicians
	}

	byTech := make([][]model.Job, len(active))
	techIdx := make(map[string]int, len(active))
	for i, t := range active {
		techIdx[t.ID] = i
	}

	capacity := func(t model.Technician) int {
		if t.MaxJobs > 0 {
			return t.MaxJobs
		}
		if p.DefaultMaxJobs > 0 {
			return p.DefaultMaxJobs
		}
		return defaultMaxJobs
	}

	// Pass 1: pins. A pin to a technician not on today's roster is treated
	// as unpinned rather than dropped.
	var pool []model.Job
	for _, j := range jobs {
		if j.TechnicianID != "" {
			if i, ok := techIdx[j.TechnicianID]; ok {
				byTech[i] = append(byTech[i], j)
				continue
			}
		}
		pool = append(pool, j)
	}

	remaining := make([]int, len(active))
	for i, t := range active {
		remaining[i] = capacity(t) - len(byTech[i])
		if remaining[i] < 0 {
			remaining[i] = 0
		}
	}

	// Pass 2: distribute the pool in input order.
	var unassigned []string
	for _, j := range pool {
		ti := p.pickTechnician(j, byTech, remaining)
		if ti < 0 {
			unassigned = append(unassigned, j.ID)
			continue
		}
		byTech[ti] = append(byTech[ti], j)
		remaining[ti]--
	}

	plan := model.Plan{
		TenantID:   tenantID,
		PlanDate:   planDate,
		CreatedAt:  time.Now().UTC(),
		Routes:     []model.Route{},
		Unassigned: unassigned,
	}
	if plan.Unassigned == nil {
		plan.Unassigned = []string{}
	}
	var baselineRoutes []model.Route
	for i, t := range active {
		if len(byTech[i]) == 0 {
			continue
		}
		plan.Routes = append(plan.Routes, p.Seq.Sequence(t, planDate, byTech[i]))
		if compareBaseline {
			baselineRoutes = append(baselineRoutes, p.Seq.SequenceInOrder(t, planDate, byTech[i]))
		}
	}
	plan.Summary = Summarize(plan.Routes, len(jobs), len(plan.Unassigned))
	if compareBaseline {
		baseline := Summarize(baselineRoutes, len(jobs), len(plan.Unassigned))
		ApplySavings(&plan.Summary, baseline)
	}
	return plan, nil
}

// pickTechnician returns the index of the technician that should take the
// job, or -1 when everyone is at capacity.
func (p *Planner) pickTechnician(j model.Job, byTech [][]model.Job, remaining []int) int {
	// Seed empty technicians first, most spare capacity wins, roster order
	// breaks ties.
	seed := -1
	for i := range byTech {
		if remaining[i] <= 0 || len(byTech[i]) > 0 {
			continue
		}
		if seed == -1 || remaining[i] > remaining[seed] {
			seed = i
		}
	}
	if seed >= 0 {
		return seed
	}
	// Otherwise nearest cluster centroid. Jobs without coordinates fall back
	// to most spare capacity.
	if j.Location == nil {
		best := -1
		for i := range byTech {
			if remaining[i] <= 0 {
				continue
			}
			if best == -1 || remaining[i] > remaining[best] {
				best = i
			}
		}
		return best
	}
	best := -1
	bestMin := 0.0
	for i := range byTech {
		if remaining[i] <= 0 {
			continue
		}
		c := centroid(byTech[i])
		d := p.Est.Estimate(c, j.Location).TravelMin
		if best == -1 || d < bestMin {
			best = i
			bestMin = d
		}
	}
	return best
}

// centroid is the mean location of a technician's geocoded jobs, or nil
// when none carry coordinates.
func centroid(jobs []model.Job) *model.GeoPoint {
	var lat, lng float64
	n := 0
	for _, j := range jobs {
		if j.Location == nil {
			continue
		}
		lat += j.Location.Lat
		lng += j.Location.Lng
		n++
	}
	if n == 0 {
		return nil
	}
	return &model.GeoPoint{Lat: lat / float64(n), Lng: lng / float64(n)}
}
