package kinematics

import (
	"dh_arm/pose"
)

// FrameDefinition is a transform written as a translation in metres and roll/pitch/yaw in degrees.
type FrameDefinition struct {
	Translation [3]float64 `json:"translation"`
	RPYDegrees  [3]float64 `json:"rpy_degrees"`
}

// Transform builds the transform described by f.
func (f FrameDefinition) Transform() pose.Transform {
	return pose.Trans(f.Translation[0], f.Translation[1], f.Translation[2]).
		Compose(pose.RPYDeg(f.RPYDegrees[0], f.RPYDegrees[1], f.RPYDegrees[2]))
}

// FrameFromTransform inverts FrameDefinition.Transform.
func FrameFromTransform(t pose.Transform) FrameDefinition {
	p := t.Point()
	roll, pitch, yaw := t.RPY()
	return FrameDefinition{
		Translation: [3]float64{p.X, p.Y, p.Z},
		RPYDegrees:  [3]float64{RadiansToDegrees(roll), RadiansToDegrees(pitch), RadiansToDegrees(yaw)},
	}
}

// Definition is the serialisable form of a Model.
type Definition struct {
	Name    string               `json:"name"`
	Joints  []Joint              `json:"joints"`
	Base    *FrameDefinition     `json:"base,omitempty"`
	Tool    *FrameDefinition     `json:"tool,omitempty"`
	Configs map[string][]float64 `json:"configs,omitempty"`
}

// Build constructs the model described by d.
func (d Definition) Build() (*Model, error) {
	var opts []Option
	if d.Base != nil {
		opts = append(opts, WithBase(d.Base.Transform()))
	}
	if d.Tool != nil {
		opts = append(opts, WithTool(d.Tool.Transform()))
	}
	for name, q := range d.Configs {
		opts = append(opts, WithConfig(name, q))
	}
	return NewModel(d.Name, d.Joints, opts...)
}

// Definition returns the serialisable form of m.
func (m *Model) Definition() Definition {
	base := FrameFromTransform(m.base)
	tool := FrameFromTransform(m.tool)
	configs := make(map[string][]float64, len(m.configs))
	for name, q := range m.configs {
		configs[name] = append([]float64(nil), q...)
	}
	return Definition{
		Name:    m.name,
		Joints:  m.Joints(),
		Base:    &base,
		Tool:    &tool,
		Configs: configs,
	}
}
