// Package pose implements rigid-body transforms for kinematic chains.
//
// A Transform is an immutable 4x4 homogeneous matrix in metres and radians. Constructors
// mirror the usual robotics toolbox vocabulary (Trans, Rx, RPY, OA) so that a chain of
// frames reads the same way it is written on paper.
package pose

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrDegenerateAxes is returned by OA when the orientation and approach vectors cannot span a frame.
var ErrDegenerateAxes = errors.New("orientation and approach vectors are parallel or zero")

const axisEps = 1e-12

// Transform is a rigid transform. The zero value is not valid; use Identity.
type Transform struct {
	m mgl64.Mat4
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{m: mgl64.Ident4()}
}

// FromMat4 wraps a homogeneous matrix. The caller is responsible for it being rigid.
func FromMat4(m mgl64.Mat4) Transform {
	return Transform{m: m}
}

// Trans returns a pure translation.
func Trans(x, y, z float64) Transform {
	return Transform{m: mgl64.Translate3D(x, y, z)}
}

// TransVec returns a pure translation to p.
func TransVec(p r3.Vector) Transform {
	return Trans(p.X, p.Y, p.Z)
}

// Rx returns a rotation of theta about the x axis.
func Rx(theta float64) Transform {
	return Transform{m: mgl64.HomogRotate3DX(theta)}
}

// Ry returns a rotation of theta about the y axis.
func Ry(theta float64) Transform {
	return Transform{m: mgl64.HomogRotate3DY(theta)}
}

// Rz returns a rotation of theta about the z axis.
func Rz(theta float64) Transform {
	return Transform{m: mgl64.HomogRotate3DZ(theta)}
}

// RPY builds a rotation from roll, pitch and yaw angles in radians, applied about the fixed
// x, y and z axes in that order: Rz(yaw)·Ry(pitch)·Rx(roll).
func RPY(roll, pitch, yaw float64) Transform {
	return Rz(yaw).Compose(Ry(pitch)).Compose(Rx(roll))
}

// RPYDeg is RPY with angles in degrees.
func RPYDeg(roll, pitch, yaw float64) Transform {
	return RPY(mgl64.DegToRad(roll), mgl64.DegToRad(pitch), mgl64.DegToRad(yaw))
}

// OA builds a rotation from an orientation vector o (the y axis of the new frame) and an
// approach vector a (its z axis). The x axis is o × a and the frame is re-orthonormalised
// around a.
func OA(o, a r3.Vector) (Transform, error) {
	if a.Norm() < axisEps || o.Norm() < axisEps {
		return Transform{}, ErrDegenerateAxes
	}
	n := o.Cross(a)
	if n.Norm() < axisEps {
		return Transform{}, ErrDegenerateAxes
	}
	a = a.Normalize()
	n = n.Normalize()
	o = a.Cross(n).Normalize()

	return FromRotationTranslation(mgl64.Mat3{
		n.X, n.Y, n.Z,
		o.X, o.Y, o.Z,
		a.X, a.Y, a.Z,
	}, r3.Vector{}), nil
}

// MustOA is OA for literal axes known to be valid.
func MustOA(o, a r3.Vector) Transform {
	t, err := OA(o, a)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRotationTranslation assembles a transform from a rotation matrix and a translation.
func FromRotationTranslation(rot mgl64.Mat3, p r3.Vector) Transform {
	m := rot.Mat4()
	m.Set(0, 3, p.X)
	m.Set(1, 3, p.Y)
	m.Set(2, 3, p.Z)
	return Transform{m: m}
}

// FromQuaternion assembles a transform from a unit quaternion and a translation.
func FromQuaternion(q mgl64.Quat, p r3.Vector) Transform {
	return FromRotationTranslation(q.Normalize().Mat4().Mat3(), p)
}

// Compose returns t·other.
func (t Transform) Compose(other Transform) Transform {
	return Transform{m: t.m.Mul4(other.m)}
}

// Inverse returns the rigid inverse [Rᵀ, -Rᵀp].
func (t Transform) Inverse() Transform {
	rt := t.Rotation().Transpose()
	p := t.m.Col(3).Vec3()
	return FromRotationTranslation(rt, fromVec3(rt.Mul3x1(p).Mul(-1)))
}

// Mat4 returns a copy of the underlying matrix.
func (t Transform) Mat4() mgl64.Mat4 {
	return t.m
}

// At returns the element at row, col.
func (t Transform) At(row, col int) float64 {
	return t.m.At(row, col)
}

// Point returns the translation part.
func (t Transform) Point() r3.Vector {
	return fromVec3(t.m.Col(3).Vec3())
}

// Rotation returns the rotation part.
func (t Transform) Rotation() mgl64.Mat3 {
	return t.m.Mat3()
}

// Quat returns the rotation as a unit quaternion with a non-negative scalar part.
func (t Transform) Quat() mgl64.Quat {
	q := mgl64.Mat4ToQuat(t.m).Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return q
}

// RPY returns roll, pitch and yaw such that RPY(roll, pitch, yaw) reproduces the rotation.
// At pitch = ±π/2 roll is reported as zero.
func (t Transform) RPY() (roll, pitch, yaw float64) {
	r := t.Rotation()
	cp := math.Hypot(r.At(0, 0), r.At(1, 0))
	pitch = math.Atan2(-r.At(2, 0), cp)
	if cp < 1e-10 {
		return 0, pitch, math.Atan2(-r.At(0, 1), r.At(1, 1))
	}
	return math.Atan2(r.At(2, 1), r.At(2, 2)), pitch, math.Atan2(r.At(1, 0), r.At(0, 0))
}

// Apply maps a point through the transform.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	v := t.m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// Axis returns column i (0 = x, 1 = y, 2 = z) of the rotation.
func (t Transform) Axis(i int) r3.Vector {
	return fromVec3(t.m.Col(i).Vec3())
}

func (t Transform) String() string {
	var sb strings.Builder
	for row := 0; row < 4; row++ {
		sb.WriteString("  ")
		for col := 0; col < 4; col++ {
			v := t.m.At(row, col)
			if math.Abs(v) < 5e-13 {
				v = 0
			}
			fmt.Fprintf(&sb, "%9.4f", v)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Delta returns the 6-vector error that takes from to to, expressed in the world frame: the
// translation difference followed by the rotation vector (axis times angle) of to·fromᵀ.
func Delta(from, to Transform) [6]float64 {
	dp := to.Point().Sub(from.Point())
	rot := to.Rotation().Mul3(from.Rotation().Transpose())
	w := rotationVector(mgl64.Mat4ToQuat(rot.Mat4()))
	return [6]float64{dp.X, dp.Y, dp.Z, w.X, w.Y, w.Z}
}

// DeltaNorm is the Euclidean norm of Delta(from, to).
func DeltaNorm(from, to Transform) float64 {
	d := Delta(from, to)
	var s float64
	for _, v := range d {
		s += v * v
	}
	return math.Sqrt(s)
}

// Interpolate blends linearly in position and spherically in orientation. s is clamped to [0, 1].
func Interpolate(a, b Transform, s float64) Transform {
	s = math.Max(0, math.Min(1, s))
	qa, qb := a.Quat(), b.Quat()
	if qa.Dot(qb) < 0 {
		qb = qb.Scale(-1)
	}
	p := a.Point().Add(b.Point().Sub(a.Point()).Mul(s))
	return FromQuaternion(mgl64.QuatSlerp(qa, qb, s), p)
}

// AlmostEqual reports whether every element of a and b differs by at most eps.
func AlmostEqual(a, b Transform, eps float64) bool {
	for i := range a.m {
		if math.Abs(a.m[i]-b.m[i]) > eps {
			return false
		}
	}
	return true
}

func rotationVector(q mgl64.Quat) r3.Vector {
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	v := fromVec3(q.V)
	s := v.Norm()
	if s < 1e-15 {
		return r3.Vector{}
	}
	angle := 2 * math.Atan2(s, q.W)
	return v.Mul(angle / s)
}

func fromVec3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}
