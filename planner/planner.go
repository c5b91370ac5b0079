// Package planner solves inverse kinematics over every sample of a Cartesian trajectory.
package planner

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"golang.org/x/sync/errgroup"

	"dh_arm/kinematics"
	"dh_arm/pose"
	"dh_arm/trajectory"
)

// ErrNoModel is returned when a Solver has no kinematic model.
var ErrNoModel = errors.New("planner has no kinematic model")

// Solver runs one IK solve per trajectory sample.
//
// Sequentially, each solve is seeded with the previous converged solution. With Parallel set the
// samples are independent: every solve starts from Seed, which costs robustness on long paths but
// lets Workers goroutines share the batch.
type Solver struct {
	Model         *kinematics.Model
	Strategy      kinematics.Strategy
	Configuration kinematics.Configuration
	Options       kinematics.IKOptions
	Orientation   OrientationPolicy
	// Seed is the initial guess for the first sample, or for every sample when Parallel is set.
	// It defaults to the model's zero configuration.
	Seed     []float64
	Parallel bool
	// Workers bounds the parallel solves; zero means GOMAXPROCS.
	Workers int
	Logger  logging.Logger
}

// JointTrajectory is the joint-space result of a batch solve, index-aligned with the samples.
type JointTrajectory struct {
	Times   []float64             `json:"times"`
	Q       [][]float64           `json:"q"`
	Results []kinematics.IKResult `json:"-"`
	Success []bool                `json:"success"`
	// AllSucceeded is true only when every sample converged.
	AllSucceeded bool `json:"all_succeeded"`
}

// Len is the number of samples.
func (jt JointTrajectory) Len() int { return len(jt.Q) }

// Failed lists the indices of samples that did not converge.
func (jt JointTrajectory) Failed() []int {
	var out []int
	for i, ok := range jt.Success {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// LastReached returns the inputs of the last sample that converged.
func (jt JointTrajectory) LastReached() ([]referenceframe.Input, bool) {
	for i := len(jt.Q) - 1; i >= 0; i-- {
		if i < len(jt.Success) && jt.Success[i] {
			return kinematics.Inputs(jt.Q[i]), true
		}
	}
	return nil, false
}

// Summary renders the convergence counts and the failing samples, at most limit of them.
func (jt JointTrajectory) Summary(limit int) string {
	failed := jt.Failed()

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%d samples, %d converged, %d failed", jt.Len(), jt.Len()-len(failed), len(failed)))
	t.AppendHeader(table.Row{"Sample", "Time (s)", "Residual", "Searches", "Reason"})
	for n, i := range failed {
		if n == limit {
			t.AppendFooter(table.Row{"...", "", "", "", fmt.Sprintf("%d more", len(failed)-limit)})
			break
		}
		row := table.Row{i, fmt.Sprintf("%.2f", jt.Times[i])}
		if i < len(jt.Results) {
			r := jt.Results[i]
			row = append(row, fmt.Sprintf("%.3g", r.Residual), r.Searches, r.Reason)
		}
		t.AppendRow(row)
	}
	return strings.TrimSpace(t.Render())
}

func (s *Solver) logger() logging.Logger {
	if s.Logger == nil {
		return logging.NewBlankLogger("planner")
	}
	return s.Logger
}

func (s *Solver) seed() ([]float64, error) {
	if s.Seed != nil {
		if len(s.Seed) != s.Model.DoF() {
			return nil, errors.Wrapf(kinematics.ErrDimension, "seed has %d angles, model has %d joints",
				len(s.Seed), s.Model.DoF())
		}
		return append([]float64(nil), s.Seed...), nil
	}
	return s.Model.Config(kinematics.ConfigZero)
}

// SolveTrajectory solves every sample. A sample that does not converge is flagged in Success and
// the batch carries on; only structural errors and context cancellation abort it.
func (s *Solver) SolveTrajectory(ctx context.Context, samples []trajectory.Sample) (JointTrajectory, error) {
	if s.Model == nil {
		return JointTrajectory{}, ErrNoModel
	}
	if s.Strategy == kinematics.StrategyAnalytic {
		if err := s.Configuration.Validate(); err != nil {
			return JointTrajectory{}, err
		}
		if !s.Model.SupportsAnalytic() {
			return JointTrajectory{}, errors.Wrapf(kinematics.ErrAnalyticUnsupported, "model %s", s.Model.Name())
		}
	}
	seed, err := s.seed()
	if err != nil {
		return JointTrajectory{}, err
	}
	policy := s.Orientation
	if policy == nil {
		policy = NewFixed(pose.Identity())
	}

	jt := JointTrajectory{
		Times:   make([]float64, len(samples)),
		Q:       make([][]float64, len(samples)),
		Results: make([]kinematics.IKResult, len(samples)),
		Success: make([]bool, len(samples)),
	}
	for i, smp := range samples {
		jt.Times[i] = smp.Time
	}

	logger := s.logger()
	logger.Debugf("solving %d samples with %s (parallel: %v)", len(samples), s.Strategy, s.Parallel)
	if s.Parallel {
		err = s.solveParallel(ctx, samples, policy, seed, &jt)
	} else {
		err = s.solveSequential(ctx, logger, samples, policy, seed, &jt)
	}
	if err != nil {
		return jt, err
	}

	jt.AllSucceeded = true
	for i, r := range jt.Results {
		jt.Q[i] = r.Q
		jt.Success[i] = r.Success
		jt.AllSucceeded = jt.AllSucceeded && r.Success
	}
	if failed := jt.Failed(); len(failed) > 0 {
		logger.Warnf("%d of %d samples did not converge, first at index %d", len(failed), len(samples), failed[0])
	} else {
		logger.Debugf("all %d samples converged", len(samples))
	}
	return jt, nil
}

func (s *Solver) solveSequential(
	ctx context.Context,
	logger logging.Logger,
	samples []trajectory.Sample,
	policy OrientationPolicy,
	seed []float64,
	jt *JointTrajectory,
) error {
	q := seed
	for i, smp := range samples {
		res, err := s.Model.Solve(ctx, policy.PoseAt(smp), q, s.Strategy, s.Configuration, s.Options)
		if err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
		jt.Results[i] = res
		// only converged solutions seed the next sample
		if res.Success {
			q = res.Q
		} else {
			logger.Debugf("sample %d at t=%.3f did not converge: residual %.3g", i, smp.Time, res.Residual)
		}
	}
	return nil
}

func (s *Solver) solveParallel(
	ctx context.Context,
	samples []trajectory.Sample,
	policy OrientationPolicy,
	seed []float64,
	jt *JointTrajectory,
) error {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, smp := range samples {
		g.Go(func() error {
			res, err := s.Model.Solve(gctx, policy.PoseAt(smp), seed, s.Strategy, s.Configuration, s.Options)
			if err != nil {
				return errors.Wrapf(err, "sample %d", i)
			}
			jt.Results[i] = res
			return nil
		})
	}
	return g.Wait()
}

// Plan synthesizes a trajectory through via and solves it.
func (s *Solver) Plan(
	ctx context.Context,
	via []r3.Vector,
	opts trajectory.Options,
) ([]trajectory.Sample, JointTrajectory, error) {
	samples, err := trajectory.Synthesize(via, opts)
	if err != nil {
		return nil, JointTrajectory{}, err
	}
	s.logger().Infof("synthesized %d samples over %.2f s through %d via points",
		len(samples), trajectory.Duration(samples), len(via))
	jt, err := s.SolveTrajectory(ctx, samples)
	return samples, jt, err
}
