package main

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/plot/vg"

	"dh_arm/kinematics"
	"dh_arm/planner"
	"dh_arm/pose"
	"dh_arm/render"
	"dh_arm/trajectory"
)

func describe(c *cli.Context, logger logging.Logger) error {
	m, err := kinematics.Preset(c.String(flagPreset))
	if err != nil {
		return err
	}
	logger.Debugf("describing %s", m.Name())
	fmt.Fprintln(c.App.Writer, m)
	return nil
}

func forward(c *cli.Context, logger logging.Logger) error {
	m, err := kinematics.Preset(c.String(flagPreset))
	if err != nil {
		return err
	}

	var q []float64
	if deg := c.Float64Slice(flagJoints); len(deg) > 0 {
		for _, d := range deg {
			q = append(q, kinematics.DegreesToRadians(d))
		}
	} else if q, err = m.Config(c.String(flagConfig)); err != nil {
		return err
	}

	frames, err := m.ForwardAll(q)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s link frames", m.Name()))
	t.AppendHeader(table.Row{"Link", "X", "Y", "Z", "Roll°", "Pitch°", "Yaw°"})
	for i, f := range frames {
		p := f.Point()
		roll, pitch, yaw := f.RPY()
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("%.4f", p.X), fmt.Sprintf("%.4f", p.Y), fmt.Sprintf("%.4f", p.Z),
			fmt.Sprintf("%.1f", kinematics.RadiansToDegrees(roll)),
			fmt.Sprintf("%.1f", kinematics.RadiansToDegrees(pitch)),
			fmt.Sprintf("%.1f", kinematics.RadiansToDegrees(yaw)),
		})
	}
	fmt.Fprintln(c.App.Writer, t.Render())

	tool, err := m.Forward(q)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "tool:\n%v\n", tool)
	logger.Infof("tool pose %v", pose.ToSpatial(tool))
	return nil
}

// singlePose solves a target above the reach of the arm, so the report shows the best effort.
func singlePose(c *cli.Context, logger logging.Logger) error {
	m, err := kinematics.IRB120()
	if err != nil {
		return err
	}
	target := pose.Trans(0.2, 0.1, 1.23).Compose(pose.RPYDeg(0, 0, -46))
	q0, err := m.Config(kinematics.ConfigZero)
	if err != nil {
		return err
	}

	opts := kinematics.IKOptions{
		Tolerance:     1e-4,
		MaxIterations: 2000,
		SearchLimit:   c.Int(flagSearchLimit),
	}
	res, err := m.Inverse(c.Context, target, q0, opts)
	if err != nil {
		return err
	}
	reached, err := m.Forward(res.Q)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetTitle("IRB 120 single pose")
	t.AppendRows([]table.Row{
		{"success", res.Success},
		{"residual", fmt.Sprintf("%.3g", res.Residual)},
		{"iterations", res.Iterations},
		{"searches", res.Searches},
		{"q (deg)", formatDegrees(res.Q)},
		{"target", pose.ToSpatial(target)},
		{"reached", pose.ToSpatial(reached)},
	})
	fmt.Fprintln(c.App.Writer, t.Render())
	if !res.Success {
		logger.Warnf("target not reached: %s", res.Reason)
	}
	return nil
}

func pumaBranches(c *cli.Context, logger logging.Logger) error {
	m, err := kinematics.Puma560()
	if err != nil {
		return err
	}
	target := pose.Trans(0.4, 0.1, 0).Compose(pose.RPYDeg(0, 180, 0))
	fmt.Fprintf(c.App.Writer, "target:\n%v\n", target)

	t := table.NewWriter()
	t.SetTitle("Puma 560 closed-form solutions")
	t.AppendHeader(table.Row{"Config", "Success", "q (deg)", "Residual"})
	for _, code := range []string{"lu", "ru", "rd", "ld"} {
		arm, err := kinematics.ParseConfiguration(code)
		if err != nil {
			return err
		}
		res, err := m.InverseAnalytic(target, arm)
		if err != nil {
			return errors.Wrapf(err, "configuration %s", code)
		}
		logger.Debugf("%s: %v", code, res.Q)
		t.AppendRow(table.Row{code, res.Success, formatDegrees(res.Q), fmt.Sprintf("%.2g", res.Residual)})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

// cubeTraversal visits every edge of a 1.2 m cube, revisiting corners where the path doubles back.
func cubeTraversal() []r3.Vector {
	const xc, yc, zc, edge = -0.6, 0.6, 1.3, 1.2
	a := pose.Point3(xc, yc-edge, zc-edge)
	b := pose.Point3(xc, yc-edge, zc)
	cc := pose.Point3(xc, yc, zc)
	d := pose.Point3(xc, yc, zc-edge)
	h := pose.Point3(xc+edge, yc-edge, zc-edge)
	g := pose.Point3(xc+edge, yc-edge, zc)
	f := pose.Point3(xc+edge, yc, zc)
	e := pose.Point3(xc+edge, yc, zc-edge)
	return []r3.Vector{a, b, cc, d, a, h, g, f, e, h, g, b, cc, f, e, d}
}

func cube(c *cli.Context, logger logging.Logger) error {
	m, err := kinematics.IRB120()
	if err != nil {
		return err
	}
	seed, err := m.Config(kinematics.ConfigZero)
	if err != nil {
		return err
	}
	policy, err := trajectory.ParseZeroLengthPolicy(c.String(flagZeroLength))
	if err != nil {
		return err
	}

	solver := &planner.Solver{
		Model:       m,
		Strategy:    kinematics.StrategyLM,
		Options:     kinematics.IKOptions{SearchLimit: c.Int(flagSearchLimit)},
		Orientation: planner.ForwardApproach(),
		Seed:        seed,
		Parallel:    c.Bool(flagParallel),
		Workers:     c.Int(flagWorkers),
		Logger:      logger,
	}
	via := cubeTraversal()
	samples, jt, err := solver.Plan(c.Context, via, trajectory.Options{
		MaxVelocity:    trajectory.UniformVelocity(c.Float64(flagVelocity)),
		SampleInterval: c.Float64(flagInterval),
		AccelTime:      c.Float64(flagAccelTime),
		ZeroLength:     policy,
	})
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetTitle("Cube trajectory")
	t.AppendRows([]table.Row{
		{"via points", len(via)},
		{"samples", len(samples)},
		{"duration (s)", fmt.Sprintf("%.2f", trajectory.Duration(samples))},
		{"arc length (m)", fmt.Sprintf("%.4f", trajectory.ArcLength(samples))},
		{"converged", fmt.Sprintf("%d/%d", jt.Len()-len(jt.Failed()), jt.Len())},
	})
	fmt.Fprintln(c.App.Writer, t.Render())
	if !jt.AllSucceeded {
		fmt.Fprintln(c.App.Writer, jt.Summary(10))
	}

	// draw the arm at the last pose it reached
	last, ok := jt.LastReached()
	if !ok {
		last = kinematics.Inputs(seed)
	}

	fig := render.NewContext(5*vg.Inch, 4*vg.Inch)
	for _, step := range []func() error{
		func() error { return fig.Path(render.PlaneXY, samples, via) },
		func() error { return fig.Path(render.PlaneXZ, samples, via) },
		func() error { return fig.Joints(jt) },
		func() error { return fig.Arm(m, last, render.PlaneXZ) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	if err := fig.Save(c.String(flagOut)); err != nil {
		return err
	}
	logger.Infof("wrote %s", c.String(flagOut))
	return nil
}

func formatDegrees(q []float64) string {
	out := make([]float64, len(q))
	for i, v := range q {
		out[i] = kinematics.RadiansToDegrees(v)
	}
	return fmt.Sprintf("%.2f", out)
}
