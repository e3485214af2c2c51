// Package estimator derives the published telemetry signals from raw
// kinematic samples. Everything here is pure and deterministic.
package estimator

import (
	"math"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
)

// mpsToKMH converts simulator units per second to km/h.
const mpsToKMH = 3.6

// SpeedKMH returns the magnitude of v in km/h, rounded to three decimals.
// NaN/inf components propagate; callers are expected not to feed invalid
// samples.
func SpeedKMH(v domain.Velocity) float64 {
	speed := mpsToKMH * math.Sqrt(v.X*v.X+v.Y*v.Y+v.Z*v.Z)
	return round(speed, 3)
}

// EstimateRPM maps a speed onto a linear idle..maxRPM band. A non-positive
// maxSpeedKMH forces the ratio to zero rather than dividing by it, and the
// result is clamped into [idle, maxRPM] so an inverted idle/max configuration
// cannot produce values outside the band. Rounded to the nearest integer.
func EstimateRPM(speedKMH, idle, maxRPM, maxSpeedKMH float64) float64 {
	var ratio float64
	if maxSpeedKMH > 0 {
		ratio = clamp(speedKMH/maxSpeedKMH, 0, 1)
	}
	rpm := idle + ratio*(maxRPM-idle)
	return round(clamp(rpm, idle, maxRPM), 0)
}

func clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
