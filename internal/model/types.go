package model

import (
	"fmt"
	"time"
)

// GeoPoint is a geocoded customer location.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Job is a single service visit to schedule. Inputs to the optimizer are
// never mutated; assignment results are written back through the store.
type Job struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId,omitempty"`
	PlanDate     string     `json:"planDate"`
	CustomerName string     `json:"customerName,omitempty"`
	Location     *GeoPoint  `json:"location"`
	DurationMin  int        `json:"durationMin"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	Priority     int        `json:"priority,omitempty"`
	TechnicianID string     `json:"technicianId,omitempty"`
	Status       string     `json:"status,omitempty"`
}

// Technician is a field worker available for a plan date.
type Technician struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId,omitempty"`
	Name      string `json:"name"`
	WorkStart string `json:"workStart"` // "08:00" local clock
	WorkEnd   string `json:"workEnd"`   // "17:00" local clock, same day
	MaxJobs   int    `json:"maxJobs"`
	Active    bool   `json:"active"`
}

// Window resolves the technician's working-hour clock times onto a plan date.
// Empty fields fall back to a standard 08:00-17:00 day.
func (t Technician) Window(planDate string) (time.Time, time.Time, error) {
	day, err := time.Parse("2006-01-02", planDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse plan date %q: %w", planDate, err)
	}
	start, err := clockOn(day, t.WorkStart, 8, 0)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("technician %s work start: %w", t.ID, err)
	}
	end, err := clockOn(day, t.WorkEnd, 17, 0)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("technician %s work end: %w", t.ID, err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("technician %s: work end %s not after start %s", t.ID, t.WorkEnd, t.WorkStart)
	}
	return start, end, nil
}

func clockOn(day time.Time, clock string, defHour, defMin int) (time.Time, error) {
	if clock == "" {
		return time.Date(day.Year(), day.Month(), day.Day(), defHour, defMin, 0, 0, time.UTC), nil
	}
	hm, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, time.UTC), nil
}

// RouteStop is one job visit within a technician's route.
type RouteStop struct {
	JobID         string    `json:"jobId"`
	Seq           int       `json:"seq"`
	ArriveAt      time.Time `json:"arriveAt"`
	DistanceMiles float64   `json:"distanceMiles"`
	TravelMin     float64   `json:"travelMin"`
	ServiceMin    int       `json:"serviceMin"`
	MissingCoords bool      `json:"missingCoords,omitempty"`
}

// Route is one technician's ordered stops for a single day.
type Route struct {
	TechnicianID   string      `json:"technicianId"`
	TechnicianName string      `json:"technicianName,omitempty"`
	PlanDate       string      `json:"planDate"`
	Stops          []RouteStop `json:"stops"`
	TotalMiles     float64     `json:"totalMiles"`
	TotalTravelMin float64     `json:"totalTravelMin"`
	TotalWorkMin   int         `json:"totalWorkMin"`
	OverHours      bool        `json:"overHours,omitempty"`
}

// Summary aggregates a plan's routes into fleet-wide statistics.
type Summary struct {
	Routes          int      `json:"routes"`
	Jobs            int      `json:"jobs"`
	Unassigned      int      `json:"unassigned"`
	TotalMiles      float64  `json:"totalMiles"`
	TotalTravelMin  float64  `json:"totalTravelMin"`
	TotalWorkMin    int      `json:"totalWorkMin"`
	Efficiency      float64  `json:"efficiency"`
	OverHoursRoutes int      `json:"overHoursRoutes"`
	MilesSaved      *float64 `json:"milesSaved,omitempty"`
	TravelMinSaved  *float64 `json:"travelMinSaved,omitempty"`
}

// Plan is the full-day optimization result for one tenant and date.
type Plan struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	PlanDate   string    `json:"planDate"`
	CreatedAt  time.Time `json:"createdAt"`
	Routes     []Route   `json:"routes"`
	Unassigned []string  `json:"unassigned"`
	Summary    Summary   `json:"summary"`
}

// OptimizeRequest triggers a plan build for a tenant and date.
type OptimizeRequest struct {
	TenantID        string `json:"tenantId"`
	PlanDate        string `json:"planDate"`
	Apply           bool   `json:"apply,omitempty"`
	CompareBaseline bool   `json:"compareBaseline,omitempty"`
}

// SubscriptionRequest registers a webhook endpoint for plan events.
type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

// Subscription is a registered webhook endpoint.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
