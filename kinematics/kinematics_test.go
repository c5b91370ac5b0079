package kinematics

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dh_arm/pose"
)

func mustPreset(t *testing.T, ctor Constructor) *Model {
	t.Helper()
	m, err := ctor()
	require.NoError(t, err)
	return m
}

func TestForwardIRB120Zero(t *testing.T) {
	m := mustPreset(t, IRB120)

	tf, err := m.Forward(make([]float64, 6))
	require.NoError(t, err)

	// d1 + a2 + a3 up, d4 + d6 forward
	assert.InDelta(t, 0, tf.Point().Sub(r3.Vector{X: 0.302 + 0.072, Z: 0.29 + 0.27 + 0.07}).Norm(), 1e-12)
	assert.InDelta(t, 0, tf.Axis(0).Sub(r3.Vector{Z: 1}).Norm(), 1e-12)
	assert.InDelta(t, 0, tf.Axis(1).Sub(r3.Vector{Y: -1}).Norm(), 1e-12)
	assert.InDelta(t, 0, tf.Axis(2).Sub(r3.Vector{X: 1}).Norm(), 1e-12)

	home, err := m.Config(ConfigHome)
	require.NoError(t, err)
	tf, err = m.Forward(home)
	require.NoError(t, err)
	assert.InDelta(t, -0.525963, tf.Point().X, 1e-6)
	assert.InDelta(t, 0.644968, tf.Point().Z, 1e-6)
}

func TestForwardOtherPresets(t *testing.T) {
	puma := mustPreset(t, Puma560)
	tf, err := puma.Forward(make([]float64, 6))
	require.NoError(t, err)
	assert.InDelta(t, 0, tf.Point().Sub(r3.Vector{X: 0.4521, Y: -0.15005, Z: 0.4318}).Norm(), 1e-12)

	kr := mustPreset(t, KR)
	tf, err = kr.Forward(make([]float64, 6))
	require.NoError(t, err)
	assert.InDelta(t, 0, tf.Point().Sub(r3.Vector{X: 0.06, Z: 1.735}).Norm(), 1e-12)
}

func TestForwardDimension(t *testing.T) {
	m := mustPreset(t, IRB120)
	_, err := m.Forward([]float64{0, 0, 0})
	assert.ErrorIs(t, err, ErrDimension)

	_, err = m.ForwardAll(make([]float64, 7))
	assert.ErrorIs(t, err, ErrDimension)

	_, err = m.Inverse(context.Background(), pose.Identity(), []float64{0}, IKOptions{})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestNewModelValidation(t *testing.T) {
	_, err := NewModel("empty", nil)
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = NewModel("bad limits", []Joint{{Min: 1, Max: -1}})
	assert.ErrorIs(t, err, ErrInvalidModel)

	_, err = NewModel("bad config", []Joint{{Min: -1, Max: 1}}, WithConfig("qx", []float64{0, 0}))
	assert.ErrorIs(t, err, ErrDimension)

	m, err := NewModel("one", []Joint{{A: 1, Min: -1, Max: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{ConfigZero}, m.ConfigNames())
	assert.Equal(t, "q1", m.Joints()[0].Name)

	_, err = m.Config("missing")
	assert.ErrorIs(t, err, ErrUnknownConfig)
}

func TestWithinLimits(t *testing.T) {
	m := mustPreset(t, IRB120)
	out, err := m.WithinLimits([]float64{0, 0, 1.5, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, out)

	out, err = m.WithinLimits(make([]float64, 6))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestJacobianMatchesFiniteDifference(t *testing.T) {
	m := mustPreset(t, IRB120)
	q := []float64{0.3, -0.5, 0.4, 0.2, 0.7, -0.3}
	jac, err := m.Jacobian(q)
	require.NoError(t, err)

	const h = 1e-6
	for i := range q {
		qp := append([]float64(nil), q...)
		qm := append([]float64(nil), q...)
		qp[i] += h
		qm[i] -= h
		tp, err := m.Forward(qp)
		require.NoError(t, err)
		tm, err := m.Forward(qm)
		require.NoError(t, err)
		d := tp.Point().Sub(tm.Point()).Mul(1 / (2 * h))
		assert.InDelta(t, d.X, jac.At(0, i), 1e-6)
		assert.InDelta(t, d.Y, jac.At(1, i), 1e-6)
		assert.InDelta(t, d.Z, jac.At(2, i), 1e-6)
	}
}

func TestInverseLMRoundTrip(t *testing.T) {
	m := mustPreset(t, IRB120)
	ctx := context.Background()

	for _, q := range [][]float64{
		{0.3, -0.5, 0.4, 0.2, 0.7, -0.3},
		{-1, 0.3, -0.5, 1, -0.8, 2},
		{1.2, 0.8, -1.0, -1.5, 1.2, 0.5},
	} {
		target, err := m.Forward(q)
		require.NoError(t, err)

		seed := make([]float64, len(q))
		for i := range q {
			seed[i] = q[i] + 0.05
		}
		res, err := m.Inverse(ctx, target, seed, DefaultIKOptions())
		require.NoError(t, err)
		require.True(t, res.Success, "q=%v residual=%g", q, res.Residual)
		assert.Less(t, res.Residual, 1e-6)

		got, err := m.Forward(res.Q)
		require.NoError(t, err)
		assert.True(t, pose.AlmostEqual(got, target, 1e-5))
	}
}

func TestInverseLMFromZero(t *testing.T) {
	m := mustPreset(t, IRB120)
	home, err := m.Config(ConfigHome)
	require.NoError(t, err)
	target, err := m.Forward(home)
	require.NoError(t, err)

	res, err := m.Inverse(context.Background(), target, make([]float64, 6), IKOptions{Tolerance: 1e-4, MaxIterations: 2000, SearchLimit: 1000})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.GreaterOrEqual(t, res.Iterations, 1)

	got, err := m.Forward(res.Q)
	require.NoError(t, err)
	assert.Less(t, pose.DeltaNorm(got, target), 1e-4)
}

func TestInverseLMUnreachable(t *testing.T) {
	m := mustPreset(t, IRB120)
	// far above the reach of the arm
	target := pose.Trans(0.2, 0.1, 1.23).Compose(pose.RPYDeg(0, 0, -46))

	res, err := m.Inverse(context.Background(), target, make([]float64, 6), IKOptions{
		Tolerance: 1e-4, MaxIterations: 50, SearchLimit: 5,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 5, res.Searches)
	assert.LessOrEqual(t, res.Iterations, 250)
	assert.Greater(t, res.Residual, 0.1)
	assert.NotEmpty(t, res.Reason)
	assert.Len(t, res.Q, 6)
}

func TestInverseStallLimit(t *testing.T) {
	// a single joint about z cannot tilt the tool about x, so no step improves on q = 0
	m, err := NewModel("wrist", []Joint{{Min: -math.Pi, Max: math.Pi}})
	require.NoError(t, err)
	target := pose.RPYDeg(90, 0, 0)

	for _, limit := range []int{1, 3} {
		t.Run(fmt.Sprint(limit), func(t *testing.T) {
			res, err := m.Inverse(context.Background(), target, []float64{0}, IKOptions{
				MaxIterations: 100, SearchLimit: 1, StallLimit: limit,
			})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, 1, res.Searches)
			assert.Equal(t, limit, res.Iterations)
			assert.InDelta(t, 0, res.Q[0], 1e-12)
			assert.InDelta(t, math.Pi/2, res.Residual, 1e-9)
		})
	}
}

func TestInverseCancelled(t *testing.T) {
	m := mustPreset(t, IRB120)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Inverse(ctx, pose.Trans(0.3, 0, 0.5), make([]float64, 6), IKOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInverseAnalyticPuma(t *testing.T) {
	m := mustPreset(t, Puma560)
	target := pose.Trans(0.4, 0.1, 0).Compose(pose.RPYDeg(0, 180, 0))

	seen := map[string]bool{}
	for _, code := range []string{"lu", "ru", "rd", "ld"} {
		cfg, err := ParseConfiguration(code)
		require.NoError(t, err)

		res, err := m.InverseAnalytic(target, cfg)
		require.NoError(t, err)
		require.True(t, res.Success, code)

		got, err := m.Forward(res.Q)
		require.NoError(t, err)
		assert.True(t, pose.AlmostEqual(got, target, 1e-9), code)

		key := fmt.Sprintf("%.3f %.3f %.3f", res.Q[0], res.Q[1], res.Q[2])
		assert.False(t, seen[key], "%s duplicates another branch", code)
		seen[key] = true
	}

	res, err := m.InverseAnalytic(target, Configuration{})
	require.NoError(t, err)
	assert.InDelta(t, 172.6948, RadiansToDegrees(res.Q[0]), 1e-3)
	assert.InDelta(t, 116.3243, RadiansToDegrees(res.Q[1]), 1e-3)
	assert.InDelta(t, 39.9155, RadiansToDegrees(res.Q[2]), 1e-3)

	res, err = m.InverseAnalytic(target, Configuration{Shoulder: Right, Elbow: ElbowDown})
	require.NoError(t, err)
	assert.InDelta(t, 35.3777, RadiansToDegrees(res.Q[0]), 1e-3)
	assert.InDelta(t, -63.6757, RadiansToDegrees(res.Q[1]), 1e-3)
	assert.InDelta(t, 39.9155, RadiansToDegrees(res.Q[2]), 1e-3)
}

func TestInverseAnalyticRecoversBranch(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, ctor := range []Constructor{IRB120, Puma560, KR} {
		m := mustPreset(t, ctor)
		t.Run(m.Name(), func(t *testing.T) {
			for trial := 0; trial < 50; trial++ {
				q := make([]float64, 6)
				for i := range q {
					q[i] = -2.5 + 5*rng.Float64()
				}
				target, err := m.Forward(q)
				require.NoError(t, err)

				all, err := m.InverseAnalyticAll(target)
				require.NoError(t, err)

				found := 0
				for cfg, res := range all {
					got, err := m.Forward(res.Q)
					require.NoError(t, err)
					assert.True(t, pose.AlmostEqual(got, target, 1e-8), "%v %v", q, cfg)

					same := true
					for i := range q {
						if math.Abs(wrapAngle(res.Q[i]-q[i])) > 1e-6 {
							same = false
						}
					}
					if same {
						found++
					}
				}
				assert.Equal(t, 1, found, "q=%v", q)
			}
		})
	}
}

func TestInverseAnalyticUnreachable(t *testing.T) {
	m := mustPreset(t, Puma560)
	res, err := m.InverseAnalytic(pose.Trans(3, 0, 0), Configuration{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Reason)
}

func TestInverseAnalyticUnsupported(t *testing.T) {
	planar, err := NewModel("planar", []Joint{{A: 1, Min: -1, Max: 1}, {A: 1, Min: -1, Max: 1}})
	require.NoError(t, err)
	_, err = planar.InverseAnalytic(pose.Identity(), Configuration{})
	assert.ErrorIs(t, err, ErrAnalyticUnsupported)
	assert.False(t, planar.SupportsAnalytic())

	joints := mustPreset(t, Puma560).Joints()
	joints[4].A = 0.05
	offsetWrist, err := NewModel("offset wrist", joints)
	require.NoError(t, err)
	_, err = offsetWrist.InverseAnalytic(pose.Identity(), Configuration{})
	assert.ErrorIs(t, err, ErrAnalyticUnsupported)

	m := mustPreset(t, Puma560)
	_, err = m.InverseAnalytic(pose.Identity(), Configuration{Shoulder: 7})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSolveDispatch(t *testing.T) {
	m := mustPreset(t, Puma560)
	q := []float64{0.2, 0.6, -0.4, 0.3, 0.5, 0.1}
	target, err := m.Forward(q)
	require.NoError(t, err)

	for _, s := range []Strategy{StrategyLM, StrategyAnalytic} {
		res, err := m.Solve(context.Background(), target, q, s, Configuration{Shoulder: Right}, IKOptions{})
		require.NoError(t, err)
		assert.True(t, res.Success, s.String())
	}

	_, err = m.Solve(context.Background(), target, q, Strategy(9), Configuration{}, IKOptions{})
	assert.Error(t, err)
}

func TestParseConfiguration(t *testing.T) {
	tests := []struct {
		code     string
		expected Configuration
		wantErr  bool
	}{
		{code: "", expected: Configuration{}},
		{code: "lu", expected: Configuration{Shoulder: Left, Elbow: ElbowUp}},
		{code: "ru", expected: Configuration{Shoulder: Right, Elbow: ElbowUp}},
		{code: "rd", expected: Configuration{Shoulder: Right, Elbow: ElbowDown}},
		{code: "LD", expected: Configuration{Shoulder: Left, Elbow: ElbowDown}},
		{code: "ruf", expected: Configuration{Shoulder: Right, Elbow: ElbowUp, WristFlip: true}},
		{code: "dn", expected: Configuration{Elbow: ElbowDown}},
		{code: "rl", wantErr: true},
		{code: "x", wantErr: true},
		{code: "uu", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParseConfiguration(tt.code)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	assert.Equal(t, "rdf", Configuration{Shoulder: Right, Elbow: ElbowDown, WristFlip: true}.String())
	assert.Len(t, Configurations(), 8)
}

func TestPresetsAndDefinition(t *testing.T) {
	assert.Equal(t, []string{PresetIRB120, PresetKR, PresetPuma560}, PresetNames())
	_, err := Preset("nope")
	assert.ErrorIs(t, err, ErrUnknownPreset)

	for _, name := range PresetNames() {
		m, err := Preset(name)
		require.NoError(t, err)
		assert.True(t, m.SupportsAnalytic(), name)

		rebuilt, err := m.Definition().Build()
		require.NoError(t, err)
		q := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
		a, err := m.Forward(q)
		require.NoError(t, err)
		b, err := rebuilt.Forward(q)
		require.NoError(t, err)
		assert.True(t, pose.AlmostEqual(a, b, 1e-9), name)
		assert.Equal(t, m.ConfigNames(), rebuilt.ConfigNames())
	}

	s := mustPreset(t, IRB120).String()
	assert.Contains(t, s, "ABB-IRB-120-3-0-6")
	assert.Contains(t, s, "qhome")
}
