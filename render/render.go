// Package render draws arm poses, Cartesian paths and joint trajectories to PNG.
//
// A Context collects panels; nothing is drawn until Save, which tiles every panel into one image.
// Callers own the Context and pass it explicitly, so several figures can be built side by side.
package render

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/referenceframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"dh_arm/kinematics"
	"dh_arm/planner"
	"dh_arm/trajectory"
)

// ErrNothingToDraw is returned by Save when no panel has been added.
var ErrNothingToDraw = errors.New("render context has no panels")

// Plane is the projection used for 3D data.
type Plane int

const (
	// PlaneXY looks down the Z axis.
	PlaneXY Plane = iota
	// PlaneXZ looks along the Y axis.
	PlaneXZ
	// PlaneYZ looks along the X axis.
	PlaneYZ
)

func (p Plane) String() string {
	switch p {
	case PlaneXY:
		return "XY"
	case PlaneXZ:
		return "XZ"
	case PlaneYZ:
		return "YZ"
	default:
		return "unknown"
	}
}

func (p Plane) project(v r3.Vector) (float64, float64) {
	switch p {
	case PlaneXZ:
		return v.X, v.Z
	case PlaneYZ:
		return v.Y, v.Z
	default:
		return v.X, v.Y
	}
}

func (p Plane) labels() (string, string) {
	switch p {
	case PlaneXZ:
		return "x (m)", "z (m)"
	case PlaneYZ:
		return "y (m)", "z (m)"
	default:
		return "x (m)", "y (m)"
	}
}

var accentColor = color.RGBA{R: 220, G: 30, B: 30, A: 255}

// Context owns the panels of one figure.
type Context struct {
	panelWidth  vg.Length
	panelHeight vg.Length
	columns     int
	dpi         int
	panels      []*plot.Plot
}

// NewContext returns an empty figure whose panels are width by height.
func NewContext(width, height vg.Length) *Context {
	return &Context{panelWidth: width, panelHeight: height, columns: 2, dpi: 96}
}

// SetColumns sets how many panels share a row.
func (c *Context) SetColumns(n int) {
	if n > 0 {
		c.columns = n
	}
}

// Panels is the number of panels added so far.
func (c *Context) Panels() int { return len(c.panels) }

// Reset drops every panel.
func (c *Context) Reset() { c.panels = nil }

func newPanel(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(plotter.NewGrid())
	return p
}

func projected(plane Plane, points []r3.Vector) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, v := range points {
		xys[i].X, xys[i].Y = plane.project(v)
	}
	return xys
}

// Path adds the projection of a sampled path, with the via points marked when given.
func (c *Context) Path(plane Plane, samples []trajectory.Sample, via []r3.Vector) error {
	if len(samples) == 0 {
		return errors.Wrap(trajectory.ErrInsufficientPoints, "no samples to draw")
	}
	x, y := plane.labels()
	p := newPanel(fmt.Sprintf("End-effector path (%s)", plane), x, y)

	line, err := plotter.NewLine(projected(plane, trajectory.Positions(samples)))
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = plotutil.Color(0)
	p.Add(line)
	p.Legend.Add("path", line)

	if len(via) > 0 {
		marks, err := plotter.NewScatter(projected(plane, via))
		if err != nil {
			return err
		}
		marks.GlyphStyle.Shape = draw.BoxGlyph{}
		marks.GlyphStyle.Color = plotutil.Color(1)
		p.Add(marks)
		p.Legend.Add("via", marks)
	}
	p.Legend.Top = true
	c.panels = append(c.panels, p)
	return nil
}

// PathXY adds the top view of samples.
func (c *Context) PathXY(samples []trajectory.Sample) error {
	return c.Path(PlaneXY, samples, nil)
}

// PathXZ adds the side view of samples.
func (c *Context) PathXZ(samples []trajectory.Sample) error {
	return c.Path(PlaneXZ, samples, nil)
}

// Joints adds every joint angle in degrees against time. Samples that did not converge are
// marked with crosses on the first joint's curve.
func (c *Context) Joints(jt planner.JointTrajectory) error {
	if jt.Len() == 0 {
		return errors.Wrap(ErrNothingToDraw, "empty joint trajectory")
	}
	p := newPanel("Joint trajectory", "t (s)", "q (deg)")

	dof := len(jt.Q[0])
	for j := 0; j < dof; j++ {
		xys := make(plotter.XYs, jt.Len())
		for i, q := range jt.Q {
			if len(q) != dof {
				return errors.Wrapf(kinematics.ErrDimension, "sample %d has %d angles, want %d", i, len(q), dof)
			}
			xys[i].X = jt.Times[i]
			xys[i].Y = kinematics.RadiansToDegrees(q[j])
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.LineStyle.Color = plotutil.Color(j)
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("q%d", j+1), line)
	}

	if failed := jt.Failed(); len(failed) > 0 {
		xys := make(plotter.XYs, len(failed))
		for k, i := range failed {
			xys[k].X = jt.Times[i]
			xys[k].Y = kinematics.RadiansToDegrees(jt.Q[i][0])
		}
		marks, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		marks.GlyphStyle.Shape = draw.CrossGlyph{}
		marks.GlyphStyle.Color = accentColor
		p.Add(marks)
		p.Legend.Add("failed", marks)
	}
	c.panels = append(c.panels, p)
	return nil
}

// Arm adds a stick figure of m at inputs projected onto plane, with the tool approach axis drawn from
// the tool point.
func (c *Context) Arm(m *kinematics.Model, inputs []referenceframe.Input, plane Plane) error {
	frames, err := m.ForwardAll(append([]float64(nil), inputs...))
	if err != nil {
		return err
	}
	x, y := plane.labels()
	p := newPanel(fmt.Sprintf("%s (%s)", m.Name(), plane), x, y)

	points := make([]r3.Vector, len(frames))
	for i, f := range frames {
		points[i] = f.Point()
	}
	links, joints, err := plotter.NewLinePoints(projected(plane, points))
	if err != nil {
		return err
	}
	links.LineStyle.Width = vg.Points(3)
	links.LineStyle.Color = plotutil.Color(0)
	joints.GlyphStyle.Shape = draw.CircleGlyph{}
	joints.GlyphStyle.Radius = vg.Points(3)
	p.Add(links, joints)

	tool := frames[len(frames)-1]
	reach := 0.0
	for _, v := range points {
		reach = math.Max(reach, v.Sub(points[0]).Norm())
	}
	tip := tool.Point().Add(tool.Axis(2).Mul(math.Max(reach*0.15, 0.02)))
	approach, err := plotter.NewLine(projected(plane, []r3.Vector{tool.Point(), tip}))
	if err != nil {
		return err
	}
	approach.LineStyle.Color = accentColor
	approach.LineStyle.Width = vg.Points(2)
	p.Add(approach)
	p.Legend.Add("approach", approach)

	// equal scale on both axes
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = squareLimits(projected(plane, append(points, tip)))
	c.panels = append(c.panels, p)
	return nil
}

func squareLimits(xys plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, v := range xys {
		xmin, xmax = math.Min(xmin, v.X), math.Max(xmax, v.X)
		ymin, ymax = math.Min(ymin, v.Y), math.Max(ymax, v.Y)
	}
	half := math.Max(xmax-xmin, ymax-ymin)/2*1.1 + 0.01
	cx, cy := (xmin+xmax)/2, (ymin+ymax)/2
	return cx - half, cx + half, cy - half, cy + half
}

// Save tiles every panel into a PNG at path, creating parent directories as needed.
func (c *Context) Save(path string) (err error) {
	if len(c.panels) == 0 {
		return ErrNothingToDraw
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	cols := c.columns
	if cols > len(c.panels) {
		cols = len(c.panels)
	}
	rows := (len(c.panels) + cols - 1) / cols
	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, cols)
	}
	for i, p := range c.panels {
		grid[i/cols][i%cols] = p
	}

	img := vgimg.NewWith(
		vgimg.UseWH(c.panelWidth*vg.Length(cols), c.panelHeight*vg.Length(rows)),
		vgimg.UseDPI(c.dpi),
	)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Points(2), PadBottom: vg.Points(2),
		PadLeft: vg.Points(2), PadRight: vg.Points(2),
	}
	canvases := plot.Align(grid, tiles, dc)
	for r, row := range grid {
		for col, p := range row {
			if p != nil {
				p.Draw(canvases[r][col])
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
