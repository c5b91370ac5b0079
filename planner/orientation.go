package planner

import (
	"github.com/golang/geo/r3"

	"dh_arm/pose"
	"dh_arm/trajectory"
)

// OrientationPolicy turns a Cartesian sample into the full tool pose handed to the IK solver.
type OrientationPolicy interface {
	PoseAt(s trajectory.Sample) pose.Transform
}

// Fixed keeps the tool orientation constant along the path.
// The pose of a sample at p is Prefix · Trans(p) · Orientation.
type Fixed struct {
	Prefix      pose.Transform
	Orientation pose.Transform
}

// NewFixed returns a Fixed policy with an identity prefix.
func NewFixed(orientation pose.Transform) Fixed {
	return Fixed{Prefix: pose.Identity(), Orientation: orientation}
}

// PoseAt implements OrientationPolicy.
func (f Fixed) PoseAt(s trajectory.Sample) pose.Transform {
	return f.Prefix.Compose(pose.TransVec(s.Position)).Compose(f.Orientation)
}

// ForwardApproach points the approach axis along world +X with the orientation axis along -Y, and
// shifts every sample 0.15 m back along X so that the cube traversal sits in front of the arm.
func ForwardApproach() Fixed {
	return Fixed{
		Prefix:      pose.Trans(-0.15, 0, 0),
		Orientation: pose.MustOA(r3.Vector{Y: -1}, r3.Vector{X: 1}),
	}
}

// Interpolated slerps the tool orientation between the orientations given for each via point.
// Orientations[i] belongs to via point i; only its rotation is used.
type Interpolated struct {
	Orientations []pose.Transform
}

// PoseAt implements OrientationPolicy.
func (p Interpolated) PoseAt(s trajectory.Sample) pose.Transform {
	n := len(p.Orientations)
	if n == 0 {
		return pose.TransVec(s.Position)
	}
	from := clampIndex(s.Segment, n)
	to := clampIndex(s.Segment+1, n)
	r := pose.Interpolate(p.Orientations[from], p.Orientations[to], s.Progress)
	return pose.FromRotationTranslation(r.Rotation(), s.Position)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
