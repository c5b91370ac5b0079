package kinematics

import (
	"gonum.org/v1/gonum/mat"
)

// Jacobian returns the 6×n geometric Jacobian at q in the world frame. Rows 0-2 map joint rates
// to tool-point linear velocity, rows 3-5 to angular velocity.
func (m *Model) Jacobian(q []float64) (*mat.Dense, error) {
	frames, err := m.ForwardAll(q)
	if err != nil {
		return nil, err
	}
	n := len(m.joints)
	tip := frames[len(frames)-1].Point()
	jac := mat.NewDense(6, n, nil)
	for i := 0; i < n; i++ {
		// joint i rotates about the z axis of frame i-1, which is frames[i]
		z := frames[i].Axis(2)
		lin := z.Cross(tip.Sub(frames[i].Point()))
		jac.Set(0, i, lin.X)
		jac.Set(1, i, lin.Y)
		jac.Set(2, i, lin.Z)
		jac.Set(3, i, z.X)
		jac.Set(4, i, z.Y)
		jac.Set(5, i, z.Z)
	}
	return jac, nil
}
