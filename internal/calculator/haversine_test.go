package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_Symmetric(t *testing.T) {
	pairs := [][4]float64{
		{22.5744, 88.3629, 22.60, 88.40},
		{22.5726, 88.3639, 28.6139, 77.2090},
		{-33.8688, 151.2093, 51.5074, -0.1278},
		{0, 0, 0, 180},
	}
	for _, p := range pairs {
		assert.Equal(t, DistanceKm(p[0], p[1], p[2], p[3]), DistanceKm(p[2], p[3], p[0], p[1]))
	}
}

func TestDistanceKm_SamePointIsZero(t *testing.T) {
	assert.Equal(t, 0.0, DistanceKm(22.5744, 88.3629, 22.5744, 88.3629))
	assert.Equal(t, 0.0, DistanceKm(-90, 0, -90, 0))
}

func TestDistanceKm_KnownDistance(t *testing.T) {
	// Kolkata to New Delhi
	d := DistanceKm(22.5726, 88.3639, 28.6139, 77.2090)
	assert.InDelta(t, 1305, d, 10)
}

func TestDistanceKm_Colinear(t *testing.T) {
	ab := DistanceKm(22.0, 88.3, 22.5, 88.3)
	bc := DistanceKm(22.5, 88.3, 23.0, 88.3)
	ac := DistanceKm(22.0, 88.3, 23.0, 88.3)
	assert.InDelta(t, ac, ab+bc, 1e-6)
}

func TestDistanceKm_AntipodalIsFinite(t *testing.T) {
	d := DistanceKm(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*earthRadiusKm, d, 1e-6)

	d = DistanceKm(45, 30, -45, -150)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*earthRadiusKm, d, 1e-6)
}

func TestDistanceKm_Monotonic(t *testing.T) {
	prev := 0.0
	for lat := 22.6; lat <= 23.5; lat += 0.1 {
		d := DistanceKm(22.5, 88.3, lat, 88.3)
		assert.Greater(t, d, prev)
		prev = d
	}
}
