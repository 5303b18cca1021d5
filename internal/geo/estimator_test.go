package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fieldroute/internal/model"
)

func TestEstimateKnownDistance(t *testing.T) {
	e := NewRoadEstimator()
	// Dallas to Fort Worth city centers, roughly 31 straight-line miles.
	dal := &model.GeoPoint{Lat: 32.7767, Lng: -96.7970}
	ftw := &model.GeoPoint{Lat: 32.7555, Lng: -97.3308}
	got := e.Estimate(dal, ftw)
	assert.False(t, got.Unknown)
	assert.InDelta(t, 31.0*1.3, got.Miles, 2.0)
	assert.InDelta(t, got.Miles*2.5, got.TravelMin, 1e-9)
}

func TestEstimateSamePointIsZero(t *testing.T) {
	e := NewRoadEstimator()
	p := &model.GeoPoint{Lat: 40.0, Lng: -75.0}
	got := e.Estimate(p, p)
	assert.Zero(t, got.Miles)
	assert.Zero(t, got.TravelMin)
	assert.False(t, got.Unknown)
}

func TestEstimateSymmetry(t *testing.T) {
	e := NewRoadEstimator()
	a := &model.GeoPoint{Lat: 29.7604, Lng: -95.3698}
	b := &model.GeoPoint{Lat: 30.2672, Lng: -97.7431}
	ab := e.Estimate(a, b)
	ba := e.Estimate(b, a)
	assert.InDelta(t, ab.Miles, ba.Miles, 1e-9)
}

func TestEstimateMissingCoordinatesFallsBack(t *testing.T) {
	e := NewRoadEstimator()
	p := &model.GeoPoint{Lat: 40.0, Lng: -75.0}
	for _, got := range []Estimate{e.Estimate(nil, p), e.Estimate(p, nil), e.Estimate(nil, nil)} {
		assert.True(t, got.Unknown)
		assert.Zero(t, got.Miles)
		assert.Equal(t, 15.0, got.TravelMin)
	}
}

func TestEstimateTunables(t *testing.T) {
	e := &RoadEstimator{RoadFactor: 1.0, MinPerMile: 1.0, FallbackMin: 5}
	a := &model.GeoPoint{Lat: 0, Lng: 0}
	b := &model.GeoPoint{Lat: 0, Lng: 1}
	got := e.Estimate(a, b)
	// One degree of longitude at the equator is about 69.1 miles.
	assert.InDelta(t, 69.1, got.Miles, 0.3)
	assert.InDelta(t, got.Miles, got.TravelMin, 1e-9)
	assert.Equal(t, 5.0, e.Estimate(nil, b).TravelMin)
}
