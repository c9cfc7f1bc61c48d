package dynamo

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Domain errors for trajectory simulation.
var (
	// ErrSampling indicates a distribution support or sampler that cannot produce a value.
	ErrSampling = errors.New("dynamo: sampling failed")

	// ErrInterpolation indicates the field table cannot produce a local plane fit.
	ErrInterpolation = errors.New("dynamo: interpolation failed")

	// ErrSingularFrame indicates the scattering frame cannot be built for the relative velocity.
	ErrSingularFrame = errors.New("dynamo: singular scattering frame")

	// ErrUnbounded indicates a trajectory that cannot terminate or did not exit within its budget.
	ErrUnbounded = errors.New("dynamo: unbounded trajectory")

	// ErrNonPhysical indicates a non-positive density or temperature.
	ErrNonPhysical = errors.New("dynamo: non-physical ambient conditions")

	// ErrInvalidConfig indicates a configuration value outside its valid range.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrInvalidState indicates a particle state holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the run was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrSampling, "sampling"},
	{ErrInterpolation, "interpolation"},
	{ErrSingularFrame, "singular_frame"},
	{ErrUnbounded, "unbounded"},
	{ErrNonPhysical, "non_physical"},
	{ErrInvalidConfig, "invalid_config"},
	{ErrInvalidState, "invalid_state"},
	{ErrContextCanceled, "canceled"},
}

// Kind names the domain error wrapped by err, or "other".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}

// TrajectoryError wraps an error with the particle context it occurred in.
type TrajectoryError struct {
	Step     int
	Time     float64
	Position r3.Vec
	Wrapped  error
}

func (e *TrajectoryError) Error() string {
	return fmt.Sprintf("step %d, t=%.6gs, r=(%.4g, %.4g, %.4g): %v",
		e.Step, e.Time, e.Position.X, e.Position.Y, e.Position.Z, e.Wrapped)
}

func (e *TrajectoryError) Unwrap() error {
	return e.Wrapped
}
