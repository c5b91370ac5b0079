package dh_arm

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
	commonpb "go.viam.com/api/common/v1"

	"dh_arm/kinematics"
	"dh_arm/pose"
)

// DoCommand payloads arrive as decoded JSON: numbers are float64 and lists are []interface{}.
// Responses must stay within the same types to cross the module boundary.

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func floatList(v interface{}) ([]float64, error) {
	switch l := v.(type) {
	case []float64:
		return append([]float64(nil), l...), nil
	case []interface{}:
		out := make([]float64, len(l))
		for i, e := range l {
			f, ok := toFloat(e)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a number", i, e)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of numbers, got %T", v)
	}
}

func listOf(values []float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func degreesList(q []float64) []interface{} {
	out := make([]interface{}, len(q))
	for i, v := range q {
		out[i] = kinematics.RadiansToDegrees(v)
	}
	return out
}

func intList(values []int) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// jointsArg reads joint angles from "joints" (radians), "joints_deg" or a named "config".
func jointsArg(cmd map[string]interface{}, m *kinematics.Model) ([]float64, error) {
	if v, ok := cmd["joints"]; ok {
		return floatList(v)
	}
	if v, ok := cmd["joints_deg"]; ok {
		q, err := floatList(v)
		if err != nil {
			return nil, err
		}
		for i := range q {
			q[i] = kinematics.DegreesToRadians(q[i])
		}
		return q, nil
	}
	if name, ok := cmd["config"].(string); ok {
		return m.Config(name)
	}
	return nil, fmt.Errorf("expected 'joints', 'joints_deg' or 'config'")
}

// poseArg reads a pose either as {x, y, z, roll, pitch, yaw} in metres and degrees, or as a Viam
// pose {x, y, z, o_x, o_y, o_z, theta} in millimetres and degrees.
func poseArg(v interface{}) (pose.Transform, error) {
	fields, ok := v.(map[string]interface{})
	if !ok {
		return pose.Transform{}, fmt.Errorf("expected a pose object, got %T", v)
	}
	get := func(key string) (float64, error) {
		raw, ok := fields[key]
		if !ok {
			return 0, nil
		}
		f, ok := toFloat(raw)
		if !ok {
			return 0, fmt.Errorf("pose field %q is %T, not a number", key, raw)
		}
		return f, nil
	}

	keys := []string{"x", "y", "z", "roll", "pitch", "yaw"}
	_, viam := fields["theta"]
	if viam {
		keys = []string{"x", "y", "z", "o_x", "o_y", "o_z", "theta"}
	}
	vals := make([]float64, len(keys))
	for i, k := range keys {
		f, err := get(k)
		if err != nil {
			return pose.Transform{}, err
		}
		vals[i] = f
	}

	if viam {
		return pose.FromProtobuf(&commonpb.Pose{
			X: vals[0], Y: vals[1], Z: vals[2],
			OX: vals[3], OY: vals[4], OZ: vals[5], Theta: vals[6],
		}), nil
	}
	return pose.Trans(vals[0], vals[1], vals[2]).Compose(pose.RPYDeg(vals[3], vals[4], vals[5])), nil
}

// poseMap renders t in both pose formats accepted by poseArg.
func poseMap(t pose.Transform) map[string]interface{} {
	p := t.Point()
	roll, pitch, yaw := t.RPY()
	return map[string]interface{}{
		"x":     p.X,
		"y":     p.Y,
		"z":     p.Z,
		"roll":  kinematics.RadiansToDegrees(roll),
		"pitch": kinematics.RadiansToDegrees(pitch),
		"yaw":   kinematics.RadiansToDegrees(yaw),
		"viam":  pose.ProtobufMap(pose.ToProtobuf(t)),
	}
}

// viaPointsArg reads [[x, y, z], ...] in metres.
func viaPointsArg(v interface{}) ([]r3.Vector, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list of points, got %T", v)
	}
	out := make([]r3.Vector, len(list))
	for i, e := range list {
		xyz, err := floatList(e)
		if err != nil {
			return nil, fmt.Errorf("via point %d: %w", i, err)
		}
		if len(xyz) != 3 {
			return nil, fmt.Errorf("via point %d has %d coordinates, want 3", i, len(xyz))
		}
		out[i] = r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	}
	return out, nil
}

// decodeInto re-decodes a DoCommand object into a typed struct through JSON.
func decodeInto(v interface{}, dst interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// asMap re-encodes a typed value as a DoCommand object.
func asMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
