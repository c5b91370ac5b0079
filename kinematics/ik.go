package kinematics

import (
	"context"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"dh_arm/pose"
)

// Strategy selects an inverse kinematics solver.
type Strategy int

const (
	// StrategyLM is the damped least-squares (Levenberg–Marquardt) iterative solver.
	StrategyLM Strategy = iota
	// StrategyAnalytic is the closed-form solver for six-axis arms with a spherical wrist.
	StrategyAnalytic
)

func (s Strategy) String() string {
	switch s {
	case StrategyLM:
		return "lm"
	case StrategyAnalytic:
		return "analytic"
	default:
		return "unknown"
	}
}

// ParseStrategy maps "lm" or "analytic" to a Strategy. The empty string means StrategyLM.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "lm":
		return StrategyLM, nil
	case "analytic":
		return StrategyAnalytic, nil
	default:
		return 0, errors.Errorf("unknown inverse kinematics strategy %q", s)
	}
}

// IKOptions bounds the iterative solver.
type IKOptions struct {
	// Tolerance on the norm of the 6-vector pose residual.
	Tolerance float64 `json:"tolerance,omitempty"`
	// MaxIterations bounds one search.
	MaxIterations int `json:"max_iterations,omitempty"`
	// SearchLimit bounds the number of searches, the first from the initial guess and the rest from
	// perturbed or random configurations.
	SearchLimit int `json:"search_limit,omitempty"`
	// StallLimit abandons a search after this many consecutive steps that fail to reduce the residual.
	StallLimit int `json:"stall_limit,omitempty"`
	// Lambda is the initial damping factor.
	Lambda float64 `json:"lambda,omitempty"`
	// Seed drives restart configurations so that solves are reproducible.
	Seed int64 `json:"seed,omitempty"`
}

// DefaultIKOptions returns the defaults used when a field is left zero.
func DefaultIKOptions() IKOptions {
	return IKOptions{
		Tolerance:     1e-6,
		MaxIterations: 100,
		SearchLimit:   100,
		StallLimit:    25,
		Lambda:        1e-2,
		Seed:          1,
	}
}

func (o IKOptions) withDefaults() IKOptions {
	d := DefaultIKOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = d.SearchLimit
	}
	if o.StallLimit <= 0 {
		o.StallLimit = d.StallLimit
	}
	if o.Lambda <= 0 {
		o.Lambda = d.Lambda
	}
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	return o
}

// IKResult is the outcome of one inverse kinematics solve. A solve that does not converge is
// not an error: Success is false and Q holds the best iterate found.
type IKResult struct {
	Q          []float64 `json:"q"`
	Success    bool      `json:"success"`
	Iterations int       `json:"iterations"`
	Searches   int       `json:"searches"`
	Residual   float64   `json:"residual"`
	Reason     string    `json:"reason,omitempty"`
}

const (
	minLambda   = 1e-12
	maxLambda   = 1e8
	mutationAmt = 0.05
)

// Inverse solves for joint angles that place the tool at target, starting from q0, with the
// damped least-squares method. Joint limits are not enforced.
func (m *Model) Inverse(ctx context.Context, target pose.Transform, q0 []float64, opts IKOptions) (IKResult, error) {
	if len(q0) != len(m.joints) {
		return IKResult{}, dimensionError(len(q0), len(m.joints))
	}
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))

	best := IKResult{Q: append([]float64(nil), q0...), Residual: math.Inf(1)}
	seed := append([]float64(nil), q0...)
	jointMut := 0
	jointAmt := mutationAmt

	for search := 0; search < opts.SearchLimit; search++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}
		best.Searches = search + 1

		q, residual, iters, err := m.search(ctx, target, seed, opts)
		best.Iterations += iters
		if err != nil {
			return best, err
		}
		if residual < best.Residual {
			best.Q = q
			best.Residual = residual
		}
		if residual < opts.Tolerance {
			best.Success = true
			return best, nil
		}

		// perturb one joint at a time around the initial guess, then fall back to random restarts
		if jointMut < len(q0) {
			seed = append(seed[:0], q0...)
			seed[jointMut] += jointAmt
			jointAmt *= -1
			if jointAmt > 0 {
				jointMut++
			}
		} else {
			seed = m.randomConfiguration(rng)
		}
	}
	best.Reason = "iteration budget exhausted"
	return best, nil
}

// search runs one damped least-squares descent from seed and returns the final iterate.
func (m *Model) search(ctx context.Context, target pose.Transform, seed []float64, opts IKOptions) ([]float64, float64, int, error) {
	n := len(m.joints)
	q := append([]float64(nil), seed...)
	qNew := make([]float64, n)

	residual, e, err := m.residual(target, q)
	if err != nil {
		return nil, 0, 0, err
	}

	lambda := opts.Lambda
	stalled := 0
	jtj := mat.NewSymDense(n, nil)
	jte := mat.NewVecDense(n, nil)
	dq := mat.NewVecDense(n, nil)

	iter := 0
	for ; iter < opts.MaxIterations; iter++ {
		if residual < opts.Tolerance {
			break
		}
		if iter%16 == 0 {
			if err := ctx.Err(); err != nil {
				return q, residual, iter, err
			}
		}

		jac, err := m.Jacobian(q)
		if err != nil {
			return nil, 0, iter, err
		}
		jtj.SymOuterK(1, jac.T())
		for i := 0; i < n; i++ {
			jtj.SetSym(i, i, jtj.At(i, i)+lambda)
		}
		jte.MulVec(jac.T(), mat.NewVecDense(6, e[:]))

		var chol mat.Cholesky
		if ok := chol.Factorize(jtj); !ok {
			lambda = math.Min(lambda*10, maxLambda)
			stalled++
			if stalled > opts.StallLimit {
				break
			}
			continue
		}
		if err := chol.SolveVecTo(dq, jte); err != nil {
			lambda = math.Min(lambda*10, maxLambda)
			stalled++
			if stalled > opts.StallLimit {
				break
			}
			continue
		}

		floats.AddTo(qNew, q, dq.RawVector().Data)
		newResidual, newE, err := m.residual(target, qNew)
		if err != nil {
			return nil, 0, iter, err
		}
		if newResidual < residual {
			copy(q, qNew)
			residual, e = newResidual, newE
			lambda = math.Max(lambda/10, minLambda)
			stalled = 0
			continue
		}
		lambda = math.Min(lambda*10, maxLambda)
		stalled++
		if stalled > opts.StallLimit {
			break
		}
	}
	return q, residual, iter, nil
}

func (m *Model) residual(target pose.Transform, q []float64) (float64, [6]float64, error) {
	current, err := m.Forward(q)
	if err != nil {
		return 0, [6]float64{}, err
	}
	e := pose.Delta(current, target)
	return floats.Norm(e[:], 2), e, nil
}

// randomConfiguration samples inside the joint limits; joints without limits sample in [-π, π].
func (m *Model) randomConfiguration(rng *rand.Rand) []float64 {
	q := make([]float64, len(m.joints))
	for i, j := range m.joints {
		lo, hi := j.Min, j.Max
		if lo == hi {
			lo, hi = -math.Pi, math.Pi
		}
		q[i] = lo + rng.Float64()*(hi-lo)
	}
	return q
}
