package estimator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tri2510/carla-vss-bridge/internal/domain"
)

func TestSpeedKMH(t *testing.T) {
	require.Equal(t, 0.0, SpeedKMH(domain.Velocity{}))

	// 10 m/s along one axis is exactly 36 km/h.
	require.Equal(t, 36.0, SpeedKMH(domain.Velocity{X: 10}))
	require.Equal(t, 36.0, SpeedKMH(domain.Velocity{Y: -10}))

	// 3-4-0 triangle: magnitude 5 m/s -> 18 km/h.
	require.Equal(t, 18.0, SpeedKMH(domain.Velocity{X: 3, Y: 4}))

	// Rounding to three decimals: |(1,1,1)| = sqrt(3) m/s.
	require.Equal(t, 6.235, SpeedKMH(domain.Velocity{X: 1, Y: 1, Z: 1}))
}

func TestEstimateRPMLinearBand(t *testing.T) {
	const (
		idle     = 800.0
		maxRPM   = 5000.0
		maxSpeed = 160.0
	)

	require.Equal(t, 800.0, EstimateRPM(0, idle, maxRPM, maxSpeed))
	require.Equal(t, 2900.0, EstimateRPM(80, idle, maxRPM, maxSpeed))
	require.Equal(t, 5000.0, EstimateRPM(160, idle, maxRPM, maxSpeed))

	// Out-of-band speeds clamp to the ends.
	require.Equal(t, 5000.0, EstimateRPM(200, idle, maxRPM, maxSpeed))
	require.Equal(t, 800.0, EstimateRPM(-5, idle, maxRPM, maxSpeed))
}

func TestEstimateRPMZeroMaxSpeed(t *testing.T) {
	for _, speed := range []float64{0, 50, 1000} {
		require.Equal(t, 800.0, EstimateRPM(speed, 800, 5000, 0))
	}
	require.Equal(t, 800.0, EstimateRPM(120, 800, 5000, -1))
}

func TestEstimateRPMDegenerateBand(t *testing.T) {
	// Inverted idle/max still clamps into the configured band.
	got := EstimateRPM(80, 5000, 800, 160)
	require.GreaterOrEqual(t, got, 800.0)
	require.LessOrEqual(t, got, 5000.0)

	require.Equal(t, 1000.0, EstimateRPM(500, 1000, 1000, 160))
}

func TestEstimateRPMRoundsToInteger(t *testing.T) {
	got := EstimateRPM(33.3, 800, 5000, 160)
	require.Equal(t, got, float64(int(got)))
}
