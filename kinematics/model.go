// Package kinematics models serial manipulators built from revolute Denavit–Hartenberg joints
// and solves their forward and inverse kinematics.
package kinematics

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"

	"dh_arm/pose"
)

// Named configurations every model carries.
const (
	ConfigZero = "qz"
	ConfigHome = "qhome"
)

// Model is an ordered chain of revolute joints from base to tip with base and tool transforms.
// A Model is never mutated after NewModel returns it.
type Model struct {
	name    string
	joints  []Joint
	base    pose.Transform
	tool    pose.Transform
	configs map[string][]float64
}

// Option configures a Model under construction.
type Option func(*Model)

// WithBase sets the transform from the world frame to the first joint.
func WithBase(base pose.Transform) Option {
	return func(m *Model) { m.base = base }
}

// WithTool sets the transform from the last link frame to the tool centre point.
func WithTool(tool pose.Transform) Option {
	return func(m *Model) { m.tool = tool }
}

// WithConfig registers a named joint configuration.
func WithConfig(name string, q []float64) Option {
	return func(m *Model) {
		m.configs[name] = append([]float64(nil), q...)
	}
}

// NewModel validates joints and options and returns an immutable model. The zero
// configuration "qz" is always defined.
func NewModel(name string, joints []Joint, opts ...Option) (*Model, error) {
	if len(joints) == 0 {
		return nil, errors.Wrap(ErrInvalidModel, "model has no joints")
	}
	m := &Model{
		name:    name,
		joints:  append([]Joint(nil), joints...),
		base:    pose.Identity(),
		tool:    pose.Identity(),
		configs: map[string][]float64{},
	}
	for i, j := range m.joints {
		if j.Min > j.Max {
			return nil, errors.Wrapf(ErrInvalidModel, "joint %d: empty limit interval [%g, %g]", i, j.Min, j.Max)
		}
		if m.joints[i].Name == "" {
			m.joints[i].Name = fmt.Sprintf("q%d", i+1)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	if _, ok := m.configs[ConfigZero]; !ok {
		m.configs[ConfigZero] = make([]float64, len(joints))
	}
	for cname, q := range m.configs {
		if len(q) != len(joints) {
			return nil, errors.Wrapf(dimensionError(len(q), len(joints)), "configuration %q", cname)
		}
	}
	return m, nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// DoF returns the number of joints.
func (m *Model) DoF() int { return len(m.joints) }

// Joints returns a copy of the joint table.
func (m *Model) Joints() []Joint {
	return append([]Joint(nil), m.joints...)
}

// Base returns the base transform.
func (m *Model) Base() pose.Transform { return m.base }

// Tool returns the tool transform.
func (m *Model) Tool() pose.Transform { return m.tool }

// Config returns a copy of the named configuration.
func (m *Model) Config(name string) ([]float64, error) {
	q, ok := m.configs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConfig, "%q", name)
	}
	return append([]float64(nil), q...), nil
}

// ConfigNames lists the named configurations in sorted order.
func (m *Model) ConfigNames() []string {
	names := make([]string, 0, len(m.configs))
	for n := range m.configs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Forward returns the tool pose for joint angles q.
func (m *Model) Forward(q []float64) (pose.Transform, error) {
	if len(q) != len(m.joints) {
		return pose.Transform{}, dimensionError(len(q), len(m.joints))
	}
	t := m.base
	for i, j := range m.joints {
		t = t.Compose(j.Transform(q[i]))
	}
	return t.Compose(m.tool), nil
}

// ForwardAll returns the base frame, every link frame and finally the tool frame.
func (m *Model) ForwardAll(q []float64) ([]pose.Transform, error) {
	if len(q) != len(m.joints) {
		return nil, dimensionError(len(q), len(m.joints))
	}
	frames := make([]pose.Transform, 0, len(m.joints)+2)
	t := m.base
	frames = append(frames, t)
	for i, j := range m.joints {
		t = t.Compose(j.Transform(q[i]))
		frames = append(frames, t)
	}
	return append(frames, t.Compose(m.tool)), nil
}

// WithinLimits returns the indices of joints whose angle lies outside its limits.
// Limits are advisory: the solvers never consult them.
func (m *Model) WithinLimits(q []float64) ([]int, error) {
	if len(q) != len(m.joints) {
		return nil, dimensionError(len(q), len(m.joints))
	}
	var out []int
	for i, j := range m.joints {
		if !j.InLimits(q[i]) {
			out = append(out, i)
		}
	}
	return out, nil
}

// Inputs copies joint angles into frame-system inputs.
func Inputs(q []float64) []referenceframe.Input {
	return append([]referenceframe.Input(nil), q...)
}
