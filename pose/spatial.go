package pose

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/spatialmath"
)

// mmPerMetre converts between this package (metres) and spatialmath (millimetres).
const mmPerMetre = 1000.0

// ToSpatial converts t into a spatialmath pose.
func ToSpatial(t Transform) spatialmath.Pose {
	q := t.Quat()
	return spatialmath.NewPose(
		t.Point().Mul(mmPerMetre),
		&spatialmath.Quaternion{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]},
	)
}

// FromSpatial converts a spatialmath pose into a Transform.
func FromSpatial(p spatialmath.Pose) Transform {
	q := p.Orientation().Quaternion()
	return FromQuaternion(
		mgl64.Quat{W: q.Real, V: mgl64.Vec3{q.Imag, q.Jmag, q.Kmag}},
		p.Point().Mul(1/mmPerMetre),
	)
}

// ToProtobuf converts t into the wire pose used by the Viam API.
func ToProtobuf(t Transform) *commonpb.Pose {
	return spatialmath.PoseToProtobuf(ToSpatial(t))
}

// FromProtobuf converts a wire pose into a Transform.
func FromProtobuf(p *commonpb.Pose) Transform {
	if p == nil {
		return Identity()
	}
	return FromSpatial(spatialmath.NewPoseFromProtobuf(p))
}

// ProtobufMap flattens a wire pose for DoCommand responses.
func ProtobufMap(p *commonpb.Pose) map[string]interface{} {
	return map[string]interface{}{
		"x": p.X, "y": p.Y, "z": p.Z,
		"o_x": p.OX, "o_y": p.OY, "o_z": p.OZ,
		"theta": p.Theta,
	}
}

// Point3 is a convenience for r3 literals.
func Point3(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}
