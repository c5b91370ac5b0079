package kinematics

import (
	"math"
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"dh_arm/pose"
)

// Preset names.
const (
	PresetIRB120  = "abb-irb120"
	PresetPuma560 = "puma560"
	PresetKR      = "kuka-kr"
)

// Constructor builds a fresh model.
type Constructor func() (*Model, error)

var (
	presetsMu sync.RWMutex
	presets   = map[string]Constructor{}
)

func init() {
	RegisterPreset(PresetIRB120, IRB120)
	RegisterPreset(PresetPuma560, Puma560)
	RegisterPreset(PresetKR, KR)
}

// RegisterPreset makes a model constructor available by name. Registering a name twice replaces it.
func RegisterPreset(name string, ctor Constructor) {
	presetsMu.Lock()
	defer presetsMu.Unlock()
	presets[name] = ctor
}

// Preset builds the named model.
func Preset(name string) (*Model, error) {
	presetsMu.RLock()
	ctor, ok := presets[name]
	presetsMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPreset, "%q", name)
	}
	return ctor()
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func deg(v ...float64) []float64 {
	out := make([]float64, len(v))
	for i, d := range v {
		out[i] = DegreesToRadians(d)
	}
	return out
}

// IRB120 is the ABB IRB 120-3/0.6 with the tool frame aligned with the last link.
func IRB120() (*Model, error) {
	joints := []Joint{
		{Name: "axis1", D: 0.290, A: 0, Alpha: math.Pi / 2, Min: -2.88, Max: 2.88},
		{Name: "axis2", D: 0, A: 0.27, Alpha: 0, Offset: math.Pi / 2, Min: -1.92, Max: 1.92},
		{Name: "axis3", D: 0, A: 0.07, Alpha: math.Pi / 2, Min: -1.92, Max: 1.22},
		{Name: "axis4", D: 0.302, A: 0, Alpha: -math.Pi / 2, Min: -2.79, Max: 2.79},
		{Name: "axis5", D: 0, A: 0, Alpha: math.Pi / 2, Min: -2.09, Max: 2.09},
		{Name: "axis6", D: 0.072, A: 0, Alpha: 0, Min: -6.98, Max: 6.98},
	}
	return NewModel("ABB-IRB-120-3-0-6", joints,
		WithTool(pose.MustOA(r3.Vector{Y: 1}, r3.Vector{Z: 1})),
		WithConfig(ConfigZero, deg(0, 0, 0, 0, 0, 0)),
		WithConfig(ConfigHome, deg(0, 45, 90, 0, 45, 0)),
	)
}

// Puma560 is the Unimation Puma 560 in standard DH form.
func Puma560() (*Model, error) {
	lim := deg(-160, 160, -45, 225, -225, 45, -110, 170, -100, 100, -266, 266)
	joints := []Joint{
		{Name: "waist", D: 0, A: 0, Alpha: math.Pi / 2, Min: lim[0], Max: lim[1]},
		{Name: "shoulder", D: 0, A: 0.4318, Alpha: 0, Min: lim[2], Max: lim[3]},
		{Name: "elbow", D: 0.15005, A: 0.0203, Alpha: -math.Pi / 2, Min: lim[4], Max: lim[5]},
		{Name: "wrist1", D: 0.4318, A: 0, Alpha: math.Pi / 2, Min: lim[6], Max: lim[7]},
		{Name: "wrist2", D: 0, A: 0, Alpha: -math.Pi / 2, Min: lim[8], Max: lim[9]},
		{Name: "wrist3", D: 0, A: 0, Alpha: 0, Min: lim[10], Max: lim[11]},
	}
	return NewModel("Puma 560", joints,
		WithConfig(ConfigZero, deg(0, 0, 0, 0, 0, 0)),
		WithConfig(ConfigHome, []float64{0, math.Pi / 4, math.Pi, 0, math.Pi / 4, 0}),
		// ready: arm straight up
		WithConfig("qr", []float64{0, math.Pi / 2, -math.Pi / 2, 0, 0, 0}),
		// stretch: arm horizontal
		WithConfig("qs", []float64{0, 0, -math.Pi / 2, 0, 0, 0}),
		// nominal: dextrous working pose
		WithConfig("qn", []float64{0, math.Pi / 4, math.Pi, 0, math.Pi / 4, 0}),
	)
}

// KR is a KUKA-style six-axis arm with offsets on the shoulder and elbow.
func KR() (*Model, error) {
	lim := deg(-155, 155, -180, 65, -110, 170, -165, 165, -140, 140, -360, 360)
	joints := []Joint{
		{Name: "a1", D: 0.4, A: 0.180, Alpha: math.Pi / 2, Min: lim[0], Max: lim[1]},
		{Name: "a2", D: 0, A: 0.6, Alpha: 0, Offset: math.Pi / 2, Min: lim[2], Max: lim[3]},
		{Name: "a3", D: 0, A: 0.120, Alpha: math.Pi / 2, Offset: math.Pi / 2, Min: lim[4], Max: lim[5]},
		{Name: "a4", D: 0.62, A: 0, Alpha: math.Pi / 2, Min: lim[6], Max: lim[7]},
		{Name: "a5", D: 0, A: 0, Alpha: -math.Pi / 2, Min: lim[8], Max: lim[9]},
		{Name: "a6", D: 0.115, A: 0, Alpha: 0, Min: lim[10], Max: lim[11]},
	}
	return NewModel("KUKA", joints,
		WithConfig(ConfigHome, deg(0, -90, 90, 0, 0, 0)),
	)
}
