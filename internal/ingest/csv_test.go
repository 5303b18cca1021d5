package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobsCSV(t *testing.T) {
	body := `customer_name,lat,lng,duration_min,scheduled_at,technician_id,priority
Acme HVAC,33.45,-112.07,45,,,2
Globex,,,30,2026-03-02T13:00:00Z,tech-1,
`
	jobs, err := ParseJobsCSV(strings.NewReader(body), "2026-03-02")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "Acme HVAC", jobs[0].CustomerName)
	require.NotNil(t, jobs[0].Location)
	assert.InDelta(t, 33.45, jobs[0].Location.Lat, 1e-9)
	assert.Equal(t, 45, jobs[0].DurationMin)
	assert.Equal(t, 2, jobs[0].Priority)
	assert.Nil(t, jobs[0].ScheduledAt)

	assert.Nil(t, jobs[1].Location, "missing coordinates stay nil")
	require.NotNil(t, jobs[1].ScheduledAt)
	assert.Equal(t, "tech-1", jobs[1].TechnicianID)
	assert.Equal(t, "2026-03-02", jobs[1].PlanDate)
}

func TestParseJobsCSVColumnOrderFree(t *testing.T) {
	body := "duration_min,customer_name\n30,Acme\n"
	jobs, err := ParseJobsCSV(strings.NewReader(body), "2026-03-02")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Acme", jobs[0].CustomerName)
}

func TestParseJobsCSVErrors(t *testing.T) {
	cases := map[string]string{
		"unknown column":   "customer_name,duration_min,widget\nAcme,30,x\n",
		"missing duration": "customer_name\nAcme\n",
		"bad duration":     "customer_name,duration_min\nAcme,soon\n",
		"negative":         "customer_name,duration_min\nAcme,-5\n",
		"bad coords":       "customer_name,duration_min,lat,lng\nAcme,30,north,west\n",
		"bad timestamp":    "customer_name,duration_min,scheduled_at\nAcme,30,tomorrow\n",
		"empty":            "customer_name,duration_min\n",
	}
	for name, body := range cases {
		_, err := ParseJobsCSV(strings.NewReader(body), "2026-03-02")
		assert.Error(t, err, name)
	}
}
