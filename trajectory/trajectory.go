// Package trajectory synthesizes time-sampled Cartesian paths through via points.
//
// Each segment between consecutive via points is a straight line traversed at constant velocity,
// with its duration set by the slowest axis. Around every via point the velocity changes linearly
// over the acceleration time, which rounds the corner with a parabolic blend instead of stopping.
// The path starts and ends at rest on the first and last via points.
package trajectory

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

var (
	// ErrInsufficientPoints is returned when fewer than two via points are given.
	ErrInsufficientPoints = errors.New("at least two via points are required")
	// ErrZeroLengthSegment is returned under RejectZeroLength for repeated consecutive via points.
	ErrZeroLengthSegment = errors.New("zero-length segment")
	// ErrInvalidOptions is returned for non-positive limits or intervals.
	ErrInvalidOptions = errors.New("invalid trajectory options")
	// ErrTooManySamples is returned when a trajectory would hold more than MaxSamples samples.
	ErrTooManySamples = errors.New("trajectory has too many samples")
)

// MaxSamples bounds the length of a synthesized trajectory.
const MaxSamples = 1 << 20

// ZeroLengthPolicy decides what happens to consecutive identical via points.
type ZeroLengthPolicy int

const (
	// AllowZeroLength keeps the repeated point; the segment becomes a pause of one acceleration time.
	AllowZeroLength ZeroLengthPolicy = iota
	// RejectZeroLength fails with ErrZeroLengthSegment.
	RejectZeroLength
	// SkipZeroLength drops the repeated point.
	SkipZeroLength
)

// ParseZeroLengthPolicy maps "allow", "reject" or "skip" to a policy. The empty string means allow.
func ParseZeroLengthPolicy(s string) (ZeroLengthPolicy, error) {
	switch s {
	case "", "allow":
		return AllowZeroLength, nil
	case "reject":
		return RejectZeroLength, nil
	case "skip":
		return SkipZeroLength, nil
	default:
		return 0, errors.Wrapf(ErrInvalidOptions, "unknown zero-length policy %q", s)
	}
}

// zeroLengthEps is the segment length below which two via points count as identical.
const zeroLengthEps = 1e-12

// stepEps absorbs floating point noise when a duration is quantised to whole samples.
const stepEps = 1e-9

// Options configures Synthesize.
type Options struct {
	// MaxVelocity is the per-axis speed limit in metres per second.
	MaxVelocity r3.Vector
	// SegmentTimes optionally fixes the duration of each segment in seconds instead of deriving it
	// from MaxVelocity. Its length must be one less than the number of via points.
	SegmentTimes []float64
	// SampleInterval is the time between samples in seconds.
	SampleInterval float64
	// AccelTime is the duration of each corner blend in seconds. It is rounded up to an even number
	// of sample intervals so that blends are centred on a sample.
	AccelTime float64
	// ZeroLength handles repeated consecutive via points.
	ZeroLength ZeroLengthPolicy
}

// UniformVelocity returns a per-axis limit with the same speed on every axis.
func UniformVelocity(v float64) r3.Vector {
	return r3.Vector{X: v, Y: v, Z: v}
}

// Sample is one point of a synthesized trajectory.
type Sample struct {
	Time     float64   `json:"time"`
	Position r3.Vector `json:"position"`
	// Segment is the index of the segment the sample belongs to; it starts at via point Segment.
	Segment int `json:"segment"`
	// Progress is how far along the segment's nominal time span the sample lies, in [0, 1].
	Progress float64 `json:"progress"`
}

func (o Options) validate(segments int) error {
	if !(o.SampleInterval > 0) || math.IsInf(o.SampleInterval, 1) {
		return errors.Wrapf(ErrInvalidOptions, "sample interval must be positive, got %g", o.SampleInterval)
	}
	if !(o.AccelTime >= 0) || math.IsInf(o.AccelTime, 1) {
		return errors.Wrapf(ErrInvalidOptions, "acceleration time must be finite and not negative, got %g", o.AccelTime)
	}
	if o.SegmentTimes != nil {
		if len(o.SegmentTimes) != segments {
			return errors.Wrapf(ErrInvalidOptions, "%d segment times for %d segments", len(o.SegmentTimes), segments)
		}
		for i, t := range o.SegmentTimes {
			if !(t >= 0) || math.IsInf(t, 1) {
				return errors.Wrapf(ErrInvalidOptions, "segment %d time must be finite and not negative, got %g", i, t)
			}
		}
		return nil
	}
	if !(o.MaxVelocity.X > 0 && o.MaxVelocity.Y > 0 && o.MaxVelocity.Z > 0) {
		return errors.Wrapf(ErrInvalidOptions, "max velocity must be positive on every axis, got %v", o.MaxVelocity)
	}
	return nil
}

// Synthesize samples a blended multi-segment path through points at a fixed interval.
//
// The first sample is the first via point and the last sample is the last via point. Intermediate
// via points are passed near, not through: each corner is cut by a parabolic blend lasting
// AccelTime. The number of samples is total duration / SampleInterval + 1, where the total
// duration is the sum of the segment durations plus one AccelTime.
func Synthesize(points []r3.Vector, opts Options) ([]Sample, error) {
	if len(points) < 2 {
		return nil, errors.Wrapf(ErrInsufficientPoints, "got %d", len(points))
	}

	if err := opts.validate(len(points) - 1); err != nil {
		return nil, err
	}
	via, times, err := applyZeroLengthPolicy(points, opts.SegmentTimes, opts.ZeroLength)
	if err != nil {
		return nil, err
	}
	if len(via) < 2 {
		// every point repeated the first; keep a single stationary segment
		via = []r3.Vector{points[0], points[0]}
		if times != nil {
			times = []float64{0}
		}
	}

	dt := opts.SampleInterval
	if opts.AccelTime/dt > MaxSamples {
		return nil, errors.Wrapf(ErrTooManySamples, "acceleration time %g at interval %g", opts.AccelTime, dt)
	}
	accSteps := 2 * ceilSteps(opts.AccelTime/2, dt)
	half := accSteps / 2

	n := len(via)
	segSteps := make([]int, n-1)
	vel := make([]r3.Vector, n-1)
	for k := 0; k < n-1; k++ {
		d := via[k+1].Sub(via[k])
		var t float64
		if times != nil {
			t = times[k]
		} else {
			t = math.Max(math.Abs(d.X)/opts.MaxVelocity.X,
				math.Max(math.Abs(d.Y)/opts.MaxVelocity.Y, math.Abs(d.Z)/opts.MaxVelocity.Z))
		}
		if t/dt > MaxSamples {
			return nil, errors.Wrapf(ErrTooManySamples, "segment %d lasts %g s at interval %g", k, t, dt)
		}
		steps := ceilSteps(t, dt)
		if steps < accSteps {
			steps = accSteps
		}
		if steps == 0 {
			steps = 1
		}
		segSteps[k] = steps
		vel[k] = d.Mul(1 / (float64(steps) * dt))
	}

	// via point j is passed at step viaStep[j]; the first one after half a blend from rest
	viaStep := make([]int, n)
	viaStep[0] = half
	for k, s := range segSteps {
		viaStep[k+1] = viaStep[k] + s
	}
	total := viaStep[n-1] + half
	if total >= MaxSamples {
		return nil, errors.Wrapf(ErrTooManySamples, "%d samples", total+1)
	}

	out := make([]Sample, 0, total+1)
	seg := 0
	for step := 0; step <= total; step++ {
		for seg < n-2 && step >= viaStep[seg+1] {
			seg++
		}
		pos := positionAt(step, seg, via, vel, viaStep, half, dt)
		progress := float64(step-viaStep[seg]) / float64(segSteps[seg])
		out = append(out, Sample{
			Time:     float64(step) * dt,
			Position: pos,
			Segment:  seg,
			Progress: math.Max(0, math.Min(1, progress)),
		})
	}

	// pin the endpoints exactly
	out[0].Position = via[0]
	out[len(out)-1].Position = via[n-1]
	return out, nil
}

// positionAt evaluates the path at step, where seg is the segment whose span contains it.
func positionAt(step, seg int, via, vel []r3.Vector, viaStep []int, half int, dt float64) r3.Vector {
	// the nearest via point is either the start or the end of seg
	j := seg
	if step-viaStep[seg] > viaStep[seg+1]-step {
		j = seg + 1
	}
	offset := step - viaStep[j]
	if offset < 0 {
		offset = -offset
	}
	if offset > half {
		tau := float64(step-viaStep[seg]) * dt
		return via[seg].Add(vel[seg].Mul(tau))
	}
	if half == 0 {
		return via[j]
	}

	var vIn, vOut r3.Vector
	if j > 0 {
		vIn = vel[j-1]
	}
	if j < len(vel) {
		vOut = vel[j]
	}
	acc := 2 * float64(half) * dt
	tau := float64(step-viaStep[j]) * dt
	shifted := tau + acc/2
	// p(τ) = P + v_in τ + (v_out - v_in)(τ + T/2)² / 2T, for |τ| ≤ T/2
	return via[j].Add(vIn.Mul(tau)).Add(vOut.Sub(vIn).Mul(shifted * shifted / (2 * acc)))
}

// applyZeroLengthPolicy filters points, and the matching segment times when given, by policy.
func applyZeroLengthPolicy(points []r3.Vector, times []float64, policy ZeroLengthPolicy) ([]r3.Vector, []float64, error) {
	switch policy {
	case AllowZeroLength:
		return points, times, nil
	case RejectZeroLength:
		for i := 1; i < len(points); i++ {
			if points[i].Sub(points[i-1]).Norm() < zeroLengthEps {
				return nil, nil, errors.Wrapf(ErrZeroLengthSegment, "via points %d and %d coincide", i-1, i)
			}
		}
		return points, times, nil
	case SkipZeroLength:
		out := []r3.Vector{points[0]}
		var kept []float64
		if times != nil {
			kept = []float64{}
		}
		for i, p := range points[1:] {
			if p.Sub(out[len(out)-1]).Norm() < zeroLengthEps {
				continue
			}
			out = append(out, p)
			if times != nil {
				kept = append(kept, times[i])
			}
		}
		return out, kept, nil
	default:
		return nil, nil, errors.Wrapf(ErrInvalidOptions, "unknown zero-length policy %d", policy)
	}
}

func ceilSteps(t, dt float64) int {
	if t <= 0 {
		return 0
	}
	return int(math.Ceil(t/dt - stepEps))
}

// Positions extracts the sample positions.
func Positions(samples []Sample) []r3.Vector {
	out := make([]r3.Vector, len(samples))
	for i, s := range samples {
		out[i] = s.Position
	}
	return out
}

// ArcLength is the length of the polyline through the sample positions.
func ArcLength(samples []Sample) float64 {
	var l float64
	for i := 1; i < len(samples); i++ {
		l += samples[i].Position.Sub(samples[i-1].Position).Norm()
	}
	return l
}

// Duration is the time of the last sample.
func Duration(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[len(samples)-1].Time
}
