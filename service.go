package dh_arm

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/operation"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
	"gonum.org/v1/plot/vg"

	"dh_arm/kinematics"
	"dh_arm/planner"
	"dh_arm/pose"
	"dh_arm/render"
	"dh_arm/trajectory"
)

var DHPlannerModel = resource.NewModel("devrel", "kinematics", "dh-planner")

func init() {
	resource.RegisterService(genericservice.API, DHPlannerModel,
		resource.Registration[resource.Resource, *PlannerConfig]{
			Constructor: newDHPlanner,
		},
	)
}

// dhPlanner exposes forward and inverse kinematics and trajectory planning for one arm model
// through DoCommand.
type dhPlanner struct {
	resource.Named
	resource.AlwaysRebuild

	logger logging.Logger
	cfg    *PlannerConfig
	model  *kinematics.Model
	solver *planner.Solver
	opts   trajectory.Options
	opMgr  *operation.SingleOperationManager

	mu       sync.Mutex
	lastPlan *planner.JointTrajectory
}

func newDHPlanner(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*PlannerConfig](rawConf)
	if err != nil {
		return nil, err
	}
	return NewDHPlanner(ctx, rawConf.ResourceName(), conf, logger)
}

// NewDHPlanner builds a planner service from a validated config.
func NewDHPlanner(ctx context.Context, name resource.Name, conf *PlannerConfig, logger logging.Logger) (resource.Resource, error) {
	model, err := GetSharedModel(conf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize kinematic model: %w", err)
	}

	solver, err := conf.NewSolver(model, logger)
	if err != nil {
		ReleaseSharedModel(conf) // Clean up on error
		return nil, err
	}
	opts, err := conf.TrajectoryOptions()
	if err != nil {
		ReleaseSharedModel(conf)
		return nil, err
	}

	logger.Infof("DH planner %s ready with %d-joint model %q (%s)", name.ShortName(), model.DoF(), model.Name(), solver.Strategy)
	return &dhPlanner{
		Named:  name.AsNamed(),
		logger: logger,
		cfg:    conf,
		model:  model,
		solver: solver,
		opts:   opts,
		opMgr:  operation.NewSingleOperationManager(),
	}, nil
}

func (s *dhPlanner) Close(context.Context) error {
	s.opMgr.CancelRunning(context.Background())
	ReleaseSharedModel(s.cfg)
	s.logger.Debug("DH planner closed")
	return nil
}

func (s *dhPlanner) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "forward":
		q, err := jointsArg(cmd, s.model)
		if err != nil {
			return nil, fmt.Errorf("forward command: %w", err)
		}
		t, err := s.model.Forward(q)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"pose": poseMap(t)}, nil

	case "inverse":
		return s.inverse(ctx, cmd)

	case "plan_trajectory":
		return s.planTrajectory(ctx, cmd)

	case "within_limits":
		q, err := jointsArg(cmd, s.model)
		if err != nil {
			return nil, fmt.Errorf("within_limits command: %w", err)
		}
		outside, err := s.model.WithinLimits(q)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"within_limits": len(outside) == 0,
			"outside":       intList(outside),
		}, nil

	case "describe":
		def, err := asMap(s.model.Definition())
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"name":              s.model.Name(),
			"dof":               s.model.DoF(),
			"supports_analytic": s.model.SupportsAnalytic(),
			"table":             s.model.String(),
			"definition":        def,
		}, nil

	case "configs":
		configs := make(map[string]interface{})
		for _, name := range s.model.ConfigNames() {
			q, err := s.model.Config(name)
			if err != nil {
				return nil, err
			}
			configs[name] = degreesList(q)
		}
		return map[string]interface{}{"configs": configs}, nil

	case "save_model":
		path, ok := cmd["path"].(string)
		if !ok || path == "" {
			return nil, fmt.Errorf("save_model command requires 'path' string parameter")
		}
		resolved := ResolveDataPath(path)
		if err := SaveModelFile(resolved, s.model); err != nil {
			return nil, err
		}
		s.logger.Infof("Saved model %q to %s", s.model.Name(), resolved)
		return map[string]interface{}{"success": true, "path": resolved}, nil

	case "last_plan":
		s.mu.Lock()
		jt := s.lastPlan
		s.mu.Unlock()
		if jt == nil {
			return map[string]interface{}{"message": "no trajectory planned yet"}, nil
		}
		limit := 20
		if v, ok := toFloat(cmd["limit"]); ok {
			limit = int(v)
		}
		return map[string]interface{}{
			"samples":       jt.Len(),
			"all_succeeded": jt.AllSucceeded,
			"summary":       jt.Summary(limit),
		}, nil

	default:
		return nil, fmt.Errorf("unknown command: %v", cmd["command"])
	}
}

func (s *dhPlanner) inverse(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	raw, ok := cmd["pose"]
	if !ok {
		return nil, fmt.Errorf("inverse command requires 'pose' parameter")
	}
	target, err := poseArg(raw)
	if err != nil {
		return nil, err
	}

	strategy := s.solver.Strategy
	if v, ok := cmd["strategy"].(string); ok {
		if strategy, err = kinematics.ParseStrategy(v); err != nil {
			return nil, err
		}
	}

	arm := s.solver.Configuration
	if v, ok := cmd["configuration"].(string); ok {
		if v == "all" {
			return s.inverseAll(target)
		}
		if arm, err = kinematics.ParseConfiguration(v); err != nil {
			return nil, err
		}
	}

	seed := append([]float64(nil), s.solver.Seed...)
	if v, ok := cmd["seed"]; ok {
		if seed, err = floatList(v); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	} else if name, ok := cmd["seed_config"].(string); ok {
		if seed, err = s.model.Config(name); err != nil {
			return nil, err
		}
	}

	res, err := s.model.Solve(ctx, target, seed, strategy, arm, s.cfg.IK)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{
		"success":    res.Success,
		"joints":     listOf(res.Q),
		"joints_deg": degreesList(res.Q),
		"residual":   res.Residual,
		"iterations": res.Iterations,
		"searches":   res.Searches,
	}
	if res.Reason != "" {
		out["reason"] = res.Reason
	}
	if outside, err := s.model.WithinLimits(res.Q); err == nil && len(outside) > 0 {
		out["outside_limits"] = intList(outside)
	}
	return out, nil
}

func (s *dhPlanner) inverseAll(target pose.Transform) (map[string]interface{}, error) {
	branches, err := s.model.InverseAnalyticAll(target)
	if err != nil {
		return nil, err
	}
	solutions := make(map[string]interface{}, len(branches))
	for arm, res := range branches {
		solutions[arm.String()] = degreesList(res.Q)
	}
	return map[string]interface{}{"solutions": solutions}, nil
}

func (s *dhPlanner) planTrajectory(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	raw, ok := cmd["via_points"]
	if !ok {
		return nil, fmt.Errorf("plan_trajectory command requires 'via_points' parameter")
	}
	via, err := viaPointsArg(raw)
	if err != nil {
		return nil, err
	}

	opts := s.opts
	if v, ok := toFloat(cmd["max_velocity"]); ok {
		opts.MaxVelocity = trajectory.UniformVelocity(v)
	}
	if v, ok := toFloat(cmd["sample_interval"]); ok {
		opts.SampleInterval = v
	}
	if v, ok := toFloat(cmd["accel_time"]); ok {
		opts.AccelTime = v
	}
	if v, ok := cmd["segment_times"]; ok {
		if opts.SegmentTimes, err = floatList(v); err != nil {
			return nil, fmt.Errorf("segment_times: %w", err)
		}
	}

	solver := *s.solver
	if v, ok := cmd["orientation"]; ok {
		var oc OrientationConfig
		if err := decodeInto(v, &oc); err != nil {
			return nil, errors.Wrap(err, "orientation")
		}
		if solver.Orientation, err = oc.Policy(); err != nil {
			return nil, err
		}
	}

	// a new plan cancels one still in progress
	ctx, done := s.opMgr.New(ctx)
	defer done()

	samples, jt, err := solver.Plan(ctx, via, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastPlan = &jt
	s.mu.Unlock()

	out := map[string]interface{}{
		"samples":       len(samples),
		"duration":      trajectory.Duration(samples),
		"arc_length":    trajectory.ArcLength(samples),
		"all_succeeded": jt.AllSucceeded,
		"failed":        intList(jt.Failed()),
	}
	if include, _ := cmd["include_joints"].(bool); include {
		times := listOf(jt.Times)
		joints := make([]interface{}, jt.Len())
		for i, q := range jt.Q {
			joints[i] = degreesList(q)
		}
		out["times"] = times
		out["joints_deg"] = joints
	}
	if path, ok := cmd["render_file"].(string); ok && path != "" {
		resolved := ResolveDataPath(path)
		if err := renderPlan(resolved, s.model, samples, via, jt); err != nil {
			return nil, err
		}
		out["render_file"] = resolved
	}
	return out, nil
}

func renderPlan(
	path string, m *kinematics.Model, samples []trajectory.Sample, via []r3.Vector, jt planner.JointTrajectory,
) error {
	fig := render.NewContext(4*vg.Inch, 4*vg.Inch)
	if err := fig.Path(render.PlaneXY, samples, via); err != nil {
		return err
	}
	if err := fig.Path(render.PlaneXZ, samples, via); err != nil {
		return err
	}
	if err := fig.Joints(jt); err != nil {
		return err
	}
	if last, ok := jt.LastReached(); ok {
		if err := fig.Arm(m, last, render.PlaneXZ); err != nil {
			return err
		}
	}
	return fig.Save(path)
}
