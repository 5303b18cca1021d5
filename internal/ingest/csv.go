// Package ingest parses bulk job uploads from the CRM side. Field-service
// back offices commonly export the day's work orders as CSV; this keeps
// that path one HTTP call instead of a JSON conversion script.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"fieldroute/internal/model"
)

// Columns recognized in the header row. customer_name and duration_min are
// required; everything else is optional.
var knownColumns = map[string]struct{}{
	"customer_name": {},
	"lat":           {},
	"lng":           {},
	"duration_min":  {},
	"scheduled_at":  {},
	"technician_id": {},
	"priority":      {},
}

// ParseJobsCSV reads a CSV export into jobs for the given plan date.
// The first row must be a header naming the columns; order is free.
func ParseJobsCSV(r io.Reader, planDate string) ([]model.Job, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(col))
		if _, ok := knownColumns[name]; !ok {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		idx[name] = i
	}
	if _, ok := idx["customer_name"]; !ok {
		return nil, fmt.Errorf("missing required column customer_name")
	}
	if _, ok := idx["duration_min"]; !ok {
		return nil, fmt.Errorf("missing required column duration_min")
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var jobs []model.Job
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		j := model.Job{PlanDate: planDate, CustomerName: field(rec, "customer_name")}
		dur, err := strconv.Atoi(field(rec, "duration_min"))
		if err != nil || dur < 0 {
			return nil, fmt.Errorf("line %d: duration_min must be a non-negative integer", line)
		}
		j.DurationMin = dur

		latS, lngS := field(rec, "lat"), field(rec, "lng")
		if latS != "" && lngS != "" {
			lat, latErr := strconv.ParseFloat(latS, 64)
			lng, lngErr := strconv.ParseFloat(lngS, 64)
			if latErr != nil || lngErr != nil {
				return nil, fmt.Errorf("line %d: lat/lng must be decimal degrees", line)
			}
			j.Location = &model.GeoPoint{Lat: lat, Lng: lng}
		}
		if v := field(rec, "scheduled_at"); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("line %d: scheduled_at must be RFC3339: %v", line, err)
			}
			ts = ts.UTC()
			j.ScheduledAt = &ts
		}
		if v := field(rec, "priority"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: priority must be an integer", line)
			}
			j.Priority = p
		}
		j.TechnicianID = field(rec, "technician_id")
		jobs = append(jobs, j)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no job rows in upload")
	}
	return jobs, nil
}
