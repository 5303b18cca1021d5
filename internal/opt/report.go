package opt

import "fieldroute/internal/model"

// Summarize folds per-technician routes into fleet-wide statistics.
// Efficiency is working time over total route time as a percentage,
// clamped to [0,100]; an empty day is vacuously 100% efficient.
func Summarize(routes []model.Route, totalJobs, unassigned int) model.Summary {
	s := model.Summary{Routes: len(routes), Jobs: totalJobs, Unassigned: unassigned}
	for _, r := range routes {
		s.TotalMiles += r.TotalMiles
		s.TotalTravelMin += r.TotalTravelMin
		s.TotalWorkMin += r.TotalWorkMin
		if r.OverHours {
			s.OverHoursRoutes++
		}
	}
	s.Efficiency = efficiency(float64(s.TotalWorkMin), s.TotalTravelMin)
	return s
}

// ApplySavings records how much the optimized plan improves on a baseline.
// Negative savings are kept as-is; the dispatcher should see a regression.
func ApplySavings(s *model.Summary, baseline model.Summary) {
	miles := baseline.TotalMiles - s.TotalMiles
	travel := baseline.TotalTravelMin - s.TotalTravelMin
	s.MilesSaved = &miles
	s.TravelMinSaved = &travel
}

func efficiency(workMin, travelMin float64) float64 {
	total := workMin + travelMin
	if total <= 0 {
		return 100
	}
	pct := workMin / total * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
