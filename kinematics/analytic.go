package kinematics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"dh_arm/pose"
)

const (
	geomEps = 1e-9
	// analyticTolerance is the residual a closed-form solution must meet to be reported as converged.
	analyticTolerance = 1e-6
)

// wristGeometry is the subset of DH parameters the closed form depends on.
type wristGeometry struct {
	d1, a1, sa1, ca1 float64
	a2               float64
	d4, a3, sa3      float64
	dShoulder        float64 // d2 + d3 + d4 cos(alpha3)
	sa4, sa5         float64
	d6, alpha6       float64
	alpha1, alpha3   float64
	alpha4, alpha5   float64
}

// SupportsAnalytic reports whether InverseAnalytic can solve this model.
func (m *Model) SupportsAnalytic() bool {
	_, err := m.wristGeometry()
	return err == nil
}

func (m *Model) wristGeometry() (wristGeometry, error) {
	if len(m.joints) != 6 {
		return wristGeometry{}, errors.Wrapf(ErrAnalyticUnsupported, "need 6 joints, model has %d", len(m.joints))
	}
	j := m.joints
	switch {
	case math.Abs(math.Sin(j[0].Alpha)) < geomEps:
		return wristGeometry{}, errors.Wrap(ErrAnalyticUnsupported, "joint 1 twist must not be 0 or π")
	case math.Abs(math.Sin(j[1].Alpha)) > geomEps || math.Cos(j[1].Alpha) < 0:
		return wristGeometry{}, errors.Wrap(ErrAnalyticUnsupported, "joints 2 and 3 must be parallel")
	case math.Abs(j[1].A) < geomEps:
		return wristGeometry{}, errors.Wrap(ErrAnalyticUnsupported, "upper arm length must be non-zero")
	case math.Abs(j[3].A) > geomEps || math.Abs(j[4].A) > geomEps || math.Abs(j[4].D) > geomEps || math.Abs(j[5].A) > geomEps:
		return wristGeometry{}, errors.Wrap(ErrAnalyticUnsupported, "wrist axes must intersect")
	case math.Abs(math.Cos(j[3].Alpha)) > geomEps || math.Abs(math.Cos(j[4].Alpha)) > geomEps:
		return wristGeometry{}, errors.Wrap(ErrAnalyticUnsupported, "wrist axes must be orthogonal")
	}
	return wristGeometry{
		d1: j[0].D, a1: j[0].A, sa1: math.Sin(j[0].Alpha), ca1: math.Cos(j[0].Alpha),
		a2: j[1].A,
		d4: j[3].D, a3: j[2].A, sa3: math.Sin(j[2].Alpha),
		dShoulder: j[1].D + j[2].D + j[3].D*math.Cos(j[2].Alpha),
		sa4:       math.Sin(j[3].Alpha), sa5: math.Sin(j[4].Alpha),
		d6: j[5].D, alpha6: j[5].Alpha,
		alpha1: j[0].Alpha, alpha3: j[2].Alpha,
		alpha4: j[3].Alpha, alpha5: j[4].Alpha,
	}, nil
}

// InverseAnalytic returns the closed-form solution in the requested configuration for a six-axis
// arm whose last three axes intersect at a spherical wrist. Unreachable targets are reported with
// Success false. Angles are wrapped to (-π, π] and limits are not enforced.
func (m *Model) InverseAnalytic(target pose.Transform, cfg Configuration) (IKResult, error) {
	if err := cfg.Validate(); err != nil {
		return IKResult{}, err
	}
	g, err := m.wristGeometry()
	if err != nil {
		return IKResult{}, err
	}

	flange := m.base.Inverse().Compose(target).Compose(m.tool.Inverse())
	r06 := flange.Rotation()
	p := flange.Point()

	// wrist centre: back off along z5 by d6
	z5 := r06.Mul3x1(mgl64.Vec3{0, math.Sin(g.alpha6), math.Cos(g.alpha6)})
	wx, wy, wz := p.X-g.d6*z5[0], p.Y-g.d6*z5[1], p.Z-g.d6*z5[2]

	unreachable := func(reason string) (IKResult, error) {
		return IKResult{Q: make([]float64, 6), Residual: math.Inf(1), Reason: reason}, nil
	}

	// θ1: the wrist centre seen from the shoulder must sit at lateral offset k
	k := ((wz-g.d1)*g.ca1 - g.dShoulder) / g.sa1
	r := math.Hypot(wx, wy)
	if math.Abs(k) > r+geomEps {
		return unreachable("wrist centre inside the shoulder offset cylinder")
	}
	ratio := clampUnit(k / r)
	if r < geomEps {
		ratio = 0
	}
	phi := math.Atan2(wy, wx)
	var t1 float64
	if cfg.Shoulder == Right {
		t1 = phi - math.Asin(ratio)
	} else {
		t1 = phi - math.Pi + math.Asin(ratio)
	}

	// reduce to the planar two-link problem in the plane of joints 2 and 3
	c1, s1 := math.Cos(t1), math.Sin(t1)
	ux, uy := c1*wx+s1*wy, -s1*wx+c1*wy
	x1 := ux - g.a1
	y1 := uy*g.ca1 + (wz-g.d1)*g.sa1

	l := math.Hypot(g.a3, g.d4*g.sa3)
	beta := math.Atan2(g.d4*g.sa3, g.a3)
	c := (x1*x1 + y1*y1 - g.a2*g.a2 - l*l) / (2 * g.a2 * l)
	if math.Abs(c) > 1+geomEps {
		return unreachable("wrist centre out of reach")
	}
	c = clampUnit(c)

	type elbowCandidate struct{ t2, t3, height float64 }
	var cands [2]elbowCandidate
	for i, sign := range []float64{1, -1} {
		t3 := beta + sign*math.Acos(c)
		a := g.a2 + g.a3*math.Cos(t3) + g.d4*g.sa3*math.Sin(t3)
		b := g.a3*math.Sin(t3) - g.d4*g.sa3*math.Cos(t3)
		t2 := math.Atan2(y1, x1) - math.Atan2(b, a)
		cands[i] = elbowCandidate{t2: t2, t3: t3, height: g.a2 * math.Sin(t2) * g.sa1}
	}
	pick := cands[0]
	higher := cands[1].height > cands[0].height
	if (cfg.Elbow == ElbowUp) == higher {
		pick = cands[1]
	}
	t2, t3 := pick.t2, pick.t3

	// wrist: M = R03ᵀ·R06·Rx(-α6) = Rz(θ4)·Rx(α4)·Rz(θ5)·Rx(α5)·Rz(θ6)
	r03 := rotZ(t1).Mul3(rotX(g.alpha1)).Mul3(rotZ(t2)).Mul3(rotZ(t3)).Mul3(rotX(g.alpha3))
	wm := r03.Transpose().Mul3(r06).Mul3(rotX(-g.alpha6))

	c5 := -g.sa4 * g.sa5 * wm.At(2, 2)
	s5 := math.Hypot(wm.At(0, 2), wm.At(1, 2))
	if cfg.WristFlip {
		s5 = -s5
	}
	var t4, t5, t6 float64
	if math.Abs(s5) < geomEps {
		// wrist singularity: only θ4+θ6 is determined, so θ4 is pinned at zero
		t5 = math.Atan2(0, c5)
		rest := rotX(g.alpha4).Mul3(rotZ(t5)).Mul3(rotX(g.alpha5)).Transpose().Mul3(wm)
		t6 = math.Atan2(rest.At(1, 0), rest.At(0, 0))
	} else {
		t5 = math.Atan2(s5, c5)
		t4 = math.Atan2(wm.At(1, 2)/(g.sa5*s5), wm.At(0, 2)/(g.sa5*s5))
		t6 = math.Atan2(-wm.At(2, 1)/(g.sa4*s5), wm.At(2, 0)/(g.sa4*s5))
	}

	theta := [6]float64{t1, t2, t3, t4, t5, t6}
	q := make([]float64, 6)
	for i, j := range m.joints {
		q[i] = wrapAngle(theta[i] - j.Offset)
	}

	got, err := m.Forward(q)
	if err != nil {
		return IKResult{}, err
	}
	res := IKResult{Q: q, Iterations: 1, Searches: 1, Residual: pose.DeltaNorm(got, target)}
	res.Success = res.Residual < analyticTolerance
	if !res.Success {
		res.Reason = "closed-form residual above tolerance"
	}
	return res, nil
}

// InverseAnalyticAll returns every closed-form branch keyed by configuration, skipping the ones
// that cannot reach target.
func (m *Model) InverseAnalyticAll(target pose.Transform) (map[Configuration]IKResult, error) {
	out := map[Configuration]IKResult{}
	for _, cfg := range Configurations() {
		res, err := m.InverseAnalytic(target, cfg)
		if err != nil {
			return nil, err
		}
		if res.Success {
			out[cfg] = res
		}
	}
	return out, nil
}

func rotX(a float64) mgl64.Mat3 {
	return mgl64.Rotate3DX(a)
}

func rotZ(a float64) mgl64.Mat3 {
	return mgl64.Rotate3DZ(a)
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
