package api

import (
	"fmt"
	"time"

	"fieldroute/internal/model"
)

func validatePlanDate(d string) error {
	if d == "" {
		return fmt.Errorf("planDate required")
	}
	if _, err := time.Parse("2006-01-02", d); err != nil {
		return fmt.Errorf("planDate must be YYYY-MM-DD: %v", err)
	}
	return nil
}

func validateJobs(jobs []model.Job) error {
	if len(jobs) == 0 {
		return fmt.Errorf("jobs required")
	}
	for i, j := range jobs {
		if j.DurationMin < 0 {
			return fmt.Errorf("jobs[%d]: durationMin must be >= 0", i)
		}
		if j.Location != nil {
			if j.Location.Lat < -90 || j.Location.Lat > 90 {
				return fmt.Errorf("jobs[%d]: lat out of range", i)
			}
			if j.Location.Lng < -180 || j.Location.Lng > 180 {
				return fmt.Errorf("jobs[%d]: lng out of range", i)
			}
		}
	}
	return nil
}

func validateTechnicians(techs []model.Technician) error {
	if len(techs) == 0 {
		return fmt.Errorf("technicians required")
	}
	for i, t := range techs {
		if t.Name == "" {
			return fmt.Errorf("technicians[%d]: name required", i)
		}
		for _, clock := range []string{t.WorkStart, t.WorkEnd} {
			if clock == "" {
				continue
			}
			if _, err := time.Parse("15:04", clock); err != nil {
				return fmt.Errorf("technicians[%d]: working hours must be HH:MM: %v", i, err)
			}
		}
		if t.MaxJobs < 0 {
			return fmt.Errorf("technicians[%d]: maxJobs must be >= 0", i)
		}
	}
	return nil
}
