package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldroute/internal/geo"
	"fieldroute/internal/model"
)

func newTestPlanner() *Planner { return NewPlanner(geo.NewRoadEstimator()) }

func jobAt(id string, lat, lng float64) model.Job {
	return model.Job{ID: id, Location: pt(lat, lng), DurationMin: 30}
}

func stopIDs(p model.Plan) map[string]int {
	seen := map[string]int{}
	for _, r := range p.Routes {
		for _, st := range r.Stops {
			seen[st.JobID]++
		}
	}
	for _, id := range p.Unassigned {
		seen[id]++
	}
	return seen
}

func TestBuildPlanNoActiveTechnicians(t *testing.T) {
	p := newTestPlanner()
	jobs := []model.Job{jobAt("j1", 35, -100)}

	_, err := p.BuildPlan("t_demo", testDate, jobs, nil, false)
	assert.ErrorIs(t, err, ErrNoActiveTechnicians)

	inactive := tech("t1", 8)
	inactive.Active = false
	_, err = p.BuildPlan("t_demo", testDate, jobs, []model.Technician{inactive}, false)
	assert.ErrorIs(t, err, ErrNoActiveTechnicians)
}

func TestBuildPlanEveryJobExactlyOnce(t *testing.T) {
	p := newTestPlanner()
	jobs := []model.Job{
		jobAt("j1", 35.00, -100.00),
		jobAt("j2", 35.10, -100.10),
		jobAt("j3", 36.00, -101.00),
		jobAt("j4", 36.10, -101.10),
		jobAt("j5", 35.05, -100.05),
	}
	techs := []model.Technician{tech("t1", 3), tech("t2", 3)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, false)
	require.NoError(t, err)

	seen := stopIDs(plan)
	require.Len(t, seen, len(jobs))
	for _, j := range jobs {
		assert.Equal(t, 1, seen[j.ID], "job %s must appear exactly once", j.ID)
	}
	assert.NotNil(t, plan.Unassigned)
}

func TestBuildPlanHonorsPins(t *testing.T) {
	p := newTestPlanner()
	pinned := jobAt("j1", 35, -100)
	pinned.TechnicianID = "t2"
	jobs := []model.Job{pinned, jobAt("j2", 35.1, -100.1)}
	techs := []model.Technician{tech("t1", 5), tech("t2", 5)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, false)
	require.NoError(t, err)

	var pinnedRoute *model.Route
	for i := range plan.Routes {
		if plan.Routes[i].TechnicianID == "t2" {
			pinnedRoute = &plan.Routes[i]
		}
	}
	require.NotNil(t, pinnedRoute)
	found := false
	for _, st := range pinnedRoute.Stops {
		if st.JobID == "j1" {
			found = true
		}
	}
	assert.True(t, found, "pinned job must stay on its technician")
}

func TestBuildPlanPinToUnknownTechnicianJoinsPool(t *testing.T) {
	p := newTestPlanner()
	ghost := jobAt("j1", 35, -100)
	ghost.TechnicianID = "t_missing"
	techs := []model.Technician{tech("t1", 5)}

	plan, err := p.BuildPlan("t_demo", testDate, []model.Job{ghost}, techs, false)
	require.NoError(t, err)
	require.Len(t, plan.Routes, 1)
	assert.Equal(t, "t1", plan.Routes[0].TechnicianID)
	require.Len(t, plan.Routes[0].Stops, 1)
	assert.Equal(t, "j1", plan.Routes[0].Stops[0].JobID)
}

func TestBuildPlanFullCapacitySpillsToOtherTechnician(t *testing.T) {
	p := newTestPlanner()
	// t1 sits on the cluster but only takes one job; the rest must spill to t2.
	jobs := []model.Job{
		jobAt("j1", 35.00, -100.00),
		jobAt("j2", 35.01, -100.01),
		jobAt("j3", 35.02, -100.02),
	}
	techs := []model.Technician{tech("t1", 1), tech("t2", 5)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, false)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, r := range plan.Routes {
		counts[r.TechnicianID] = len(r.Stops)
	}
	assert.Equal(t, 1, counts["t1"])
	assert.Equal(t, 2, counts["t2"])
	assert.Empty(t, plan.Unassigned)
}

func TestBuildPlanCapacityExhaustedGoesUnassigned(t *testing.T) {
	p := newTestPlanner()
	jobs := []model.Job{
		jobAt("j1", 35.00, -100.00),
		jobAt("j2", 35.01, -100.01),
		jobAt("j3", 35.02, -100.02),
	}
	techs := []model.Technician{tech("t1", 2)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, false)
	require.NoError(t, err)
	require.Len(t, plan.Routes, 1)
	assert.Len(t, plan.Routes[0].Stops, 2)
	assert.Equal(t, []string{"j3"}, plan.Unassigned)
	assert.Equal(t, 1, plan.Summary.Unassigned)
}

func TestBuildPlanPinsExceedCapacityNeverShed(t *testing.T) {
	p := newTestPlanner()
	var jobs []model.Job
	for _, id := range []string{"j1", "j2", "j3"} {
		j := jobAt(id, 35, -100)
		j.TechnicianID = "t1"
		jobs = append(jobs, j)
	}
	techs := []model.Technician{tech("t1", 2)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, false)
	require.NoError(t, err)
	require.Len(t, plan.Routes, 1)
	assert.Len(t, plan.Routes[0].Stops, 3)
	assert.Empty(t, plan.Unassigned)
}

func TestBuildPlanClustersByProximity(t *testing.T) {
	p := newTestPlanner()
	// Two distinct clusters far apart; each tech should own one cluster.
	jobs := []model.Job{
		jobAt("a1", 35.00, -100.00),
		jobAt("b1", 40.00, -90.00),
		jobAt("a2", 35.02, -100.02),
		jobAt("b2", 40.02, -90.02),
		jobAt("a3", 35.04, -100.04),
		jobAt("b3", 40.04, -90.04),
	}
	techs := []model.Technician{tech("t1", 3), tech("t2", 3)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, false)
	require.NoError(t, err)
	require.Len(t, plan.Routes, 2)

	for _, r := range plan.Routes {
		prefix := r.Stops[0].JobID[:1]
		for _, st := range r.Stops {
			assert.Equal(t, prefix, st.JobID[:1], "route %s mixes clusters", r.TechnicianID)
		}
	}
}

func TestBuildPlanDeterministic(t *testing.T) {
	p := newTestPlanner()
	jobs := []model.Job{
		jobAt("j1", 35.00, -100.00),
		jobAt("j2", 35.30, -100.20),
		jobAt("j3", 35.15, -100.40),
		jobAt("j4", 35.05, -100.25),
	}
	techs := []model.Technician{tech("t1", 2), tech("t2", 2)}

	a, err := p.BuildPlan("t_demo", testDate, jobs, techs, true)
	require.NoError(t, err)
	b, err := p.BuildPlan("t_demo", testDate, jobs, techs, true)
	require.NoError(t, err)

	require.Equal(t, len(a.Routes), len(b.Routes))
	for i := range a.Routes {
		require.Equal(t, len(a.Routes[i].Stops), len(b.Routes[i].Stops))
		for k := range a.Routes[i].Stops {
			assert.Equal(t, a.Routes[i].Stops[k].JobID, b.Routes[i].Stops[k].JobID)
		}
	}
	assert.Equal(t, a.Unassigned, b.Unassigned)
	assert.Equal(t, a.Summary.TotalMiles, b.Summary.TotalMiles)
}

func TestBuildPlanBaselineSavings(t *testing.T) {
	p := newTestPlanner()
	// Input order zig-zags; optimized order should not travel farther.
	jobs := []model.Job{
		jobAt("j1", 35.00, -100.00),
		jobAt("j2", 35.00, -99.00),
		jobAt("j3", 35.00, -99.90),
		jobAt("j4", 35.00, -99.10),
		jobAt("j5", 35.00, -99.80),
	}
	techs := []model.Technician{tech("t1", 10)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, true)
	require.NoError(t, err)
	require.NotNil(t, plan.Summary.MilesSaved)
	require.NotNil(t, plan.Summary.TravelMinSaved)
	assert.GreaterOrEqual(t, *plan.Summary.MilesSaved, 0.0)
}

func TestBuildPlanJobsWithoutCoordinatesStillAssigned(t *testing.T) {
	p := newTestPlanner()
	jobs := []model.Job{
		{ID: "j1", DurationMin: 30},
		jobAt("j2", 35, -100),
	}
	techs := []model.Technician{tech("t1", 5)}

	plan, err := p.BuildPlan("t_demo", testDate, jobs, techs, false)
	require.NoError(t, err)
	seen := stopIDs(plan)
	assert.Equal(t, 1, seen["j1"])
	assert.Equal(t, 1, seen["j2"])
	assert.Empty(t, plan.Unassigned)
}
