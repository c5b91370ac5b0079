package kinematics

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"dh_arm/pose"
)

// String prints the DH table followed by the base, tool and named configurations.
func (m *Model) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("DHRobot: %s, %d joints (%s)", m.name, len(m.joints), strings.Repeat("R", len(m.joints))))
	t.AppendHeader(table.Row{"θj", "dj", "aj", "⍺j", "q⁻", "q⁺"})
	for i, j := range m.joints {
		theta := fmt.Sprintf("q%d", i+1)
		if j.Offset != 0 {
			theta = fmt.Sprintf("q%d %+.1f°", i+1, RadiansToDegrees(j.Offset))
		}
		t.AppendRow([]interface{}{
			theta,
			fmt.Sprintf("%.4g", j.D),
			fmt.Sprintf("%.4g", j.A),
			fmt.Sprintf("%.1f°", RadiansToDegrees(j.Alpha)),
			fmt.Sprintf("%.1f°", RadiansToDegrees(j.Min)),
			fmt.Sprintf("%.1f°", RadiansToDegrees(j.Max)),
		})
	}

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n")

	frames := table.NewWriter()
	frames.AppendHeader(table.Row{"Frame", "Translation", "Orientation (rpy°)"})
	for _, f := range []struct {
		name string
		tf   pose.Transform
	}{{"base", m.base}, {"tool", m.tool}} {
		p := f.tf.Point()
		roll, pitch, yaw := f.tf.RPY()
		frames.AppendRow([]interface{}{
			f.name,
			fmt.Sprintf("X:%.3g, Y:%.3g, Z:%.3g", p.X, p.Y, p.Z),
			fmt.Sprintf("Roll:%.1f, Pitch:%.1f, Yaw:%.1f",
				RadiansToDegrees(roll), RadiansToDegrees(pitch), RadiansToDegrees(yaw)),
		})
	}
	sb.WriteString(frames.Render())
	sb.WriteString("\n")

	configs := table.NewWriter()
	header := table.Row{"Name"}
	for i := range m.joints {
		header = append(header, fmt.Sprintf("q%d", i+1))
	}
	configs.AppendHeader(header)
	for _, name := range m.ConfigNames() {
		row := table.Row{name}
		for _, v := range m.configs[name] {
			row = append(row, fmt.Sprintf("%.1f°", RadiansToDegrees(v)))
		}
		configs.AppendRow(row)
	}
	sb.WriteString(configs.Render())
	return sb.String()
}
