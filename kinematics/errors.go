package kinematics

import "github.com/pkg/errors"

var (
	// ErrDimension is returned when a joint vector does not match the model's joint count.
	ErrDimension = errors.New("joint vector length does not match joint count")
	// ErrConfiguration is returned for an unrecognised arm configuration.
	ErrConfiguration = errors.New("unrecognised arm configuration")
	// ErrAnalyticUnsupported is returned when the closed-form solver cannot handle a model's geometry.
	ErrAnalyticUnsupported = errors.New("closed-form inverse kinematics unsupported for this model")
	// ErrInvalidModel is returned by NewModel for malformed joint tables.
	ErrInvalidModel = errors.New("invalid kinematic model")
	// ErrUnknownConfig is returned when a named configuration does not exist.
	ErrUnknownConfig = errors.New("unknown named configuration")
	// ErrUnknownPreset is returned when a preset name is not registered.
	ErrUnknownPreset = errors.New("unknown model preset")
)

func dimensionError(got, want int) error {
	return errors.Wrapf(ErrDimension, "got %d angles, model has %d joints", got, want)
}
