package geo

import (
	"math"

	"fieldroute/internal/model"
)

// Estimate is the travel cost between two points. Unknown marks legs where
// one endpoint had no coordinates and a fallback travel time was applied.
type Estimate struct {
	Miles     float64
	TravelMin float64
	Unknown   bool
}

// Estimator converts two points into distance and travel time. The default
// implementation is a straight-line proxy; swap in a routing-API adapter
// without touching the sequencer or assigner.
type Estimator interface {
	Estimate(from, to *model.GeoPoint) Estimate
}

// RoadEstimator approximates road travel from great-circle distance.
type RoadEstimator struct {
	// RoadFactor inflates straight-line miles toward road-network miles.
	RoadFactor float64
	// MinPerMile converts miles to driving minutes at mixed urban speed.
	MinPerMile float64
	// FallbackMin is charged for legs with an ungeocoded endpoint.
	FallbackMin float64
}

const (
	defaultRoadFactor  = 1.3
	defaultMinPerMile  = 2.5
	defaultFallbackMin = 15
)

func NewRoadEstimator() *RoadEstimator {
	return &RoadEstimator{RoadFactor: defaultRoadFactor, MinPerMile: defaultMinPerMile, FallbackMin: defaultFallbackMin}
}

func (e *RoadEstimator) Estimate(from, to *model.GeoPoint) Estimate {
	if from == nil || to == nil {
		return Estimate{TravelMin: e.fallbackMin(), Unknown: true}
	}
	miles := haversineMiles(from.Lat, from.Lng, to.Lat, to.Lng) * e.roadFactor()
	return Estimate{Miles: miles, TravelMin: miles * e.minPerMile()}
}

func (e *RoadEstimator) roadFactor() float64 {
	if e.RoadFactor > 0 {
		return e.RoadFactor
	}
	return defaultRoadFactor
}

func (e *RoadEstimator) minPerMile() float64 {
	if e.MinPerMile > 0 {
		return e.MinPerMile
	}
	return defaultMinPerMile
}

func (e *RoadEstimator) fallbackMin() float64 {
	if e.FallbackMin > 0 {
		return e.FallbackMin
	}
	return defaultFallbackMin
}

const earthRadiusMiles = 3958.8

func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}
