package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fieldroute/internal/model"
)

func TestEfficiencyBounds(t *testing.T) {
	assert.Equal(t, 100.0, efficiency(0, 0))
	assert.Equal(t, 100.0, efficiency(120, 0))
	assert.Equal(t, 0.0, efficiency(0, 90))
	assert.InDelta(t, 50.0, efficiency(60, 60), 1e-9)
	assert.InDelta(t, 80.0, efficiency(240, 60), 1e-9)
}

func TestSummarizeTotals(t *testing.T) {
	routes := []model.Route{
		{TotalMiles: 12.5, TotalTravelMin: 31.25, TotalWorkMin: 120},
		{TotalMiles: 8.0, TotalTravelMin: 20.0, TotalWorkMin: 60, OverHours: true},
	}
	s := Summarize(routes, 7, 1)
	assert.Equal(t, 2, s.Routes)
	assert.Equal(t, 7, s.Jobs)
	assert.Equal(t, 1, s.Unassigned)
	assert.InDelta(t, 20.5, s.TotalMiles, 1e-9)
	assert.InDelta(t, 51.25, s.TotalTravelMin, 1e-9)
	assert.Equal(t, 180, s.TotalWorkMin)
	assert.Equal(t, 1, s.OverHoursRoutes)
	assert.InDelta(t, efficiency(180, 51.25), s.Efficiency, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 0, 0)
	assert.Equal(t, 0, s.Routes)
	assert.Equal(t, 100.0, s.Efficiency)
}

func TestApplySavings(t *testing.T) {
	s := model.Summary{TotalMiles: 40, TotalTravelMin: 100}
	base := model.Summary{TotalMiles: 55, TotalTravelMin: 137.5}
	ApplySavings(&s, base)
	assert.NotNil(t, s.MilesSaved)
	assert.NotNil(t, s.TravelMinSaved)
	assert.InDelta(t, 15.0, *s.MilesSaved, 1e-9)
	assert.InDelta(t, 37.5, *s.TravelMinSaved, 1e-9)
}

func TestApplySavingsKeepsNegative(t *testing.T) {
	s := model.Summary{TotalMiles: 60, TotalTravelMin: 150}
	base := model.Summary{TotalMiles: 55, TotalTravelMin: 137.5}
	ApplySavings(&s, base)
	assert.InDelta(t, -5.0, *s.MilesSaved, 1e-9)
}

func TestRunStatsRecordAndFetch(t *testing.T) {
	RecordRun("t_demo", "2026-03-02", RunStats{Jobs: 12, Routes: 3, Efficiency: 81.5, ElapsedMs: 4})
	got, ok := LastRun("t_demo", "2026-03-02")
	assert.True(t, ok)
	assert.Equal(t, 12, got.Jobs)
	assert.InDelta(t, 81.5, got.Efficiency, 1e-9)

	_, ok = LastRun("t_demo", "1999-01-01")
	assert.False(t, ok)
}
