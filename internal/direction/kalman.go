package direction

import (
	"math"
	"time"
)

// processNoiseAzimuth and processNoiseVelocity are the diagonal
// entries of the Kalman process noise covariance Q, per
// kalman_predict's process_noise_azimuth/process_noise_velocity.
const (
	processNoiseAzimuth  = 0.5  // degrees^2
	processNoiseVelocity = 0.1  // (degrees/sec)^2
	initialVelocityVar   = 10.0 // degrees^2/sec^2, kalman_initialize's P[1][1]

	minDtSeconds = 0.001
	maxDtSeconds = 1.0
)

// KalmanState is a 2-state (azimuth, angular rate) bearing filter.
// State transition F = [[1,dt],[0,1]], measurement H = [1,0], matching
// kalman_predict/kalman_update/kalman_initialize. The 2x2 covariance P
// is carried as four scalar fields rather than a matrix type; every
// update below is the closed-form expansion of P = FPF^T + Q anyway.
type KalmanState struct {
	Azimuth     float64 // degrees
	Velocity    float64 // degrees/sec
	P00, P01    float64
	P10, P11    float64
	Initialized bool
	LastUpdate  time.Time
}

// NewKalmanState returns an uninitialized filter; call Initialize with
// the first good measurement before Predict/Update.
func NewKalmanState() *KalmanState {
	return &KalmanState{}
}

// Initialize seeds the filter with the first trusted azimuth
// measurement and its variance, per kalman_initialize.
func (k *KalmanState) Initialize(initialAzimuth, initialVariance float64, now time.Time) {
	k.Azimuth = initialAzimuth
	k.Velocity = 0
	k.P00 = initialVariance
	k.P01 = 0
	k.P10 = 0
	k.P11 = initialVelocityVar
	k.Initialized = true
	k.LastUpdate = now
}

func normalizeAzimuth(deg float64) float64 {
	return math.Mod(math.Mod(deg, 360)+360, 360)
}

// Predict advances the state by dt seconds (state transition x(k) =
// x(k-1) + velocity*dt) and propagates the error covariance P = F P
// F^T + Q, per kalman_predict, expanded into its four closed-form
// scalar terms rather than a general matrix multiply.
func (k *KalmanState) Predict(dt float64) {
	k.Azimuth = normalizeAzimuth(k.Azimuth + k.Velocity*dt)

	p00, p01, p11 := k.P00, k.P01, k.P11

	newP00 := p00 + 2*dt*p01 + dt*dt*p11 + processNoiseAzimuth
	newP01 := p01 + dt*p11
	newP11 := p11 + processNoiseVelocity

	k.P00 = newP00
	k.P01 = newP01
	k.P10 = newP01
	k.P11 = newP11
}

// Update folds in a new azimuth measurement with the given variance,
// handling wraparound in the innovation and updating P = (I - K H) P,
// per kalman_update.
func (k *KalmanState) Update(measurement, measurementVariance float64) {
	innovation := measurement - k.Azimuth
	if innovation > 180 {
		innovation -= 360
	}
	if innovation < -180 {
		innovation += 360
	}

	p00, p01, p10, p11 := k.P00, k.P01, k.P10, k.P11

	s := p00 + measurementVariance
	k0 := p00 / s
	k1 := p10 / s

	k.Azimuth = normalizeAzimuth(k.Azimuth + k0*innovation)
	k.Velocity += k1 * innovation

	k.P00 = (1 - k0) * p00
	k.P01 = (1 - k0) * p01
	k.P10 = p10 - k1*p00
	k.P11 = p11 - k1*p01
}

// ClampDt bounds a raw elapsed-time measurement to the filter's
// accepted dt range, per compute_direction_finding's dt clamp.
func ClampDt(dt float64) float64 {
	if dt < minDtSeconds {
		return minDtSeconds
	}
	if dt > maxDtSeconds {
		return maxDtSeconds
	}
	return dt
}
