package kinematics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"dh_arm/pose"
)

// Joint is a revolute joint described by standard Denavit–Hartenberg parameters.
// Lengths are in metres, angles in radians.
type Joint struct {
	Name   string  `json:"name,omitempty"`
	D      float64 `json:"d"`
	A      float64 `json:"a"`
	Alpha  float64 `json:"alpha"`
	Offset float64 `json:"offset,omitempty"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Transform returns the link transform Rz(q+offset)·Tz(d)·Tx(a)·Rx(alpha).
func (j Joint) Transform(q float64) pose.Transform {
	theta := q + j.Offset
	ct, st := math.Cos(theta), math.Sin(theta)
	ca, sa := math.Cos(j.Alpha), math.Sin(j.Alpha)

	// column-major
	return pose.FromMat4(mgl64.Mat4{
		ct, st, 0, 0,
		-st * ca, ct * ca, sa, 0,
		st * sa, -ct * sa, ca, 0,
		j.A * ct, j.A * st, j.D, 1,
	})
}

// InLimits reports whether q lies inside the joint's interval.
func (j Joint) InLimits(q float64) bool {
	return q >= j.Min && q <= j.Max
}

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// wrapAngle maps a into (-π, π].
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
