package opt

import (
	"time"

	"fieldroute/internal/geo"
	"fieldroute/internal/model"
)

// Sequencer orders one technician's assigned jobs into a visit sequence.
// Greedy nearest neighbor: not globally optimal, but deterministic and good
// enough for the expected route size (under ~15 stops per day).
type Sequencer struct {
	Est geo.Estimator
	// TwoOptIterations bounds the optional local-improvement pass.
	// Zero disables it.
	TwoOptIterations int
}

func NewSequencer(est geo.Estimator) *Sequencer {
	return &Sequencer{Est: est, TwoOptIterations: 3}
}

// Sequence builds the ordered route for a technician. An empty job list
// yields an empty route with zero totals; it never fails.
//
// The walk anchors at the first job in input order, starts the clock at the
// technician's working-hour start, and repeatedly takes the closest
// unvisited job. Ties break on earliest pinned time, then input order, so
// identical inputs always produce identical routes.
func (s *Sequencer) Sequence(tech model.Technician, planDate string, jobs []model.Job) model.Route {
	route := model.Route{
		TechnicianID:   tech.ID,
		TechnicianName: tech.Name,
		PlanDate:       planDate,
		Stops:          []model.RouteStop{},
	}
	if len(jobs) == 0 {
		return route
	}
	order := s.greedyOrder(jobs)
	if s.TwoOptIterations > 0 && eligibleForTwoOpt(jobs) {
		order = improveOrderTwoOpt(jobs, order, s.TwoOptIterations)
	}
	return s.schedule(route, tech, planDate, jobs, order)
}

// SequenceInOrder schedules jobs exactly as given, with no reordering.
// Used to price the unoptimized baseline a dispatcher would otherwise run.
func (s *Sequencer) SequenceInOrder(tech model.Technician, planDate string, jobs []model.Job) model.Route {
	route := model.Route{
		TechnicianID:   tech.ID,
		TechnicianName: tech.Name,
		PlanDate:       planDate,
		Stops:          []model.RouteStop{},
	}
	if len(jobs) == 0 {
		return route
	}
	order := make([]int, len(jobs))
	for i := range order {
		order[i] = i
	}
	return s.schedule(route, tech, planDate, jobs, order)
}

func (s *Sequencer) greedyOrder(jobs []model.Job) []int {
	n := len(jobs)
	order := make([]int, 0, n)
	visited := make([]bool, n)
	cur := jobs[0].Location // first-job anchor
	for len(order) < n {
		best := -1
		var bestEst geo.Estimate
		for i := 0; i < n; i++ {
			if visited[i] {
				continue
			}
			est := s.Est.Estimate(cur, jobs[i].Location)
			if best == -1 || closer(est, bestEst, jobs[i], jobs[best]) {
				best = i
				bestEst = est
			}
		}
		order = append(order, best)
		visited[best] = true
		if jobs[best].Location != nil {
			cur = jobs[best].Location
		}
	}
	return order
}

// closer reports whether candidate a beats the incumbent b for the next
// stop. Equal travel falls back to the earlier pinned time; jobs seen
// earlier in input order win remaining ties because iteration is ascending.
func closer(a, b geo.Estimate, ja, jb model.Job) bool {
	if a.TravelMin != b.TravelMin {
		return a.TravelMin < b.TravelMin
	}
	switch {
	case ja.ScheduledAt != nil && jb.ScheduledAt == nil:
		return true
	case ja.ScheduledAt != nil && jb.ScheduledAt != nil:
		return ja.ScheduledAt.Before(*jb.ScheduledAt)
	}
	return false
}

func (s *Sequencer) schedule(route model.Route, tech model.Technician, planDate string, jobs []model.Job, order []int) model.Route {
	start, end, err := tech.Window(planDate)
	if err != nil {
		// Malformed windows degrade to the standard day rather than failing
		// the whole plan; the store validates windows on ingest.
		day, _ := time.Parse("2006-01-02", planDate)
		start = time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, time.UTC)
		end = time.Date(day.Year(), day.Month(), day.Day(), 17, 0, 0, 0, time.UTC)
	}
	clock := start
	cur := jobs[0].Location // same first-job anchor the greedy walk used
	for seq, idx := range order {
		j := jobs[idx]
		est := s.Est.Estimate(cur, j.Location)
		arrive := clock.Add(minutes(est.TravelMin))
		if j.ScheduledAt != nil && arrive.Before(*j.ScheduledAt) {
			arrive = *j.ScheduledAt
		}
		stop := model.RouteStop{
			JobID:         j.ID,
			Seq:           seq + 1,
			ArriveAt:      arrive,
			DistanceMiles: est.Miles,
			TravelMin:     est.TravelMin,
			ServiceMin:    j.DurationMin,
			MissingCoords: est.Unknown || j.Location == nil,
		}
		route.Stops = append(route.Stops, stop)
		route.TotalMiles += est.Miles
		route.TotalTravelMin += est.TravelMin
		route.TotalWorkMin += j.DurationMin
		clock = arrive.Add(minutes(float64(j.DurationMin)))
		if clock.After(end) {
			// Over-hours jobs stay on the route; the dispatcher decides.
			route.OverHours = true
		}
		if j.Location != nil {
			cur = j.Location
		}
	}
	return route
}

func eligibleForTwoOpt(jobs []model.Job) bool {
	if len(jobs) < 4 {
		return false
	}
	for _, j := range jobs {
		// Pinned times and unknown legs make segment reversal unsafe.
		if j.ScheduledAt != nil || j.Location == nil {
			return false
		}
	}
	return true
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
