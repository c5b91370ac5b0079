package dh_arm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	genericservice "go.viam.com/rdk/services/generic"
	"go.viam.com/utils/protoutils"

	"dh_arm/kinematics"
)

func newTestPlanner(t *testing.T, cfg *PlannerConfig) resource.Resource {
	t.Helper()
	_, _, err := cfg.Validate("test")
	require.NoError(t, err)
	svc, err := NewDHPlanner(context.Background(), resource.NewName(genericservice.API, "planner"), cfg, logging.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close(context.Background())) })
	return svc
}

// every response has to survive conversion to a protobuf struct
func doCommand(t *testing.T, svc resource.Resource, cmd map[string]interface{}) map[string]interface{} {
	t.Helper()
	resp, err := svc.DoCommand(context.Background(), cmd)
	require.NoError(t, err)
	_, err = protoutils.StructToStructPb(resp)
	require.NoError(t, err)
	return resp
}

func TestPlannerForwardAndInverse(t *testing.T) {
	svc := newTestPlanner(t, &PlannerConfig{Preset: kinematics.PresetPuma560})

	resp := doCommand(t, svc, map[string]interface{}{"command": "forward", "config": "qn"})
	poseResp := resp["pose"].(map[string]interface{})
	for _, key := range []string{"x", "y", "z", "roll", "pitch", "yaw", "viam"} {
		assert.Contains(t, poseResp, key)
	}

	t.Run("lm from qz", func(t *testing.T) {
		resp := doCommand(t, svc, map[string]interface{}{
			"command": "inverse",
			"pose":    poseResp,
		})
		assert.Equal(t, true, resp["success"])
		assert.Less(t, resp["residual"].(float64), 1e-6)
		assert.Len(t, resp["joints_deg"], 6)

		// the solution reproduces the pose
		check := doCommand(t, svc, map[string]interface{}{"command": "forward", "joints": resp["joints"]})
		got := check["pose"].(map[string]interface{})
		for _, key := range []string{"x", "y", "z"} {
			assert.InDelta(t, poseResp[key].(float64), got[key].(float64), 1e-5, key)
		}
	})

	t.Run("viam pose", func(t *testing.T) {
		resp := doCommand(t, svc, map[string]interface{}{
			"command":       "inverse",
			"pose":          poseResp["viam"],
			"strategy":      "analytic",
			"configuration": "rd",
		})
		assert.Equal(t, true, resp["success"])
	})

	t.Run("analytic branch", func(t *testing.T) {
		resp := doCommand(t, svc, map[string]interface{}{
			"command":       "inverse",
			"pose":          poseResp,
			"strategy":      "analytic",
			"configuration": "rd",
		})
		assert.Equal(t, true, resp["success"])
	})

	t.Run("all branches", func(t *testing.T) {
		resp := doCommand(t, svc, map[string]interface{}{
			"command":       "inverse",
			"pose":          poseResp,
			"configuration": "all",
		})
		solutions := resp["solutions"].(map[string]interface{})
		assert.NotEmpty(t, solutions)
		for code, q := range solutions {
			_, err := kinematics.ParseConfiguration(code)
			assert.NoError(t, err)
			assert.Len(t, q, 6)
		}
	})

	t.Run("seed config", func(t *testing.T) {
		resp := doCommand(t, svc, map[string]interface{}{
			"command":     "inverse",
			"pose":        poseResp,
			"seed_config": "qn",
		})
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, 1, resp["searches"], "seeded at the answer, the first search converges")
	})
}

func TestPlannerPlanTrajectory(t *testing.T) {
	svc := newTestPlanner(t, &PlannerConfig{
		Preset:        kinematics.PresetPuma560,
		Strategy:      "analytic",
		Configuration: "rd",
	})

	resp := doCommand(t, svc, map[string]interface{}{"command": "forward", "config": "qn"})
	start := resp["pose"].(map[string]interface{})
	x, y, z := start["x"].(float64), start["y"].(float64), start["z"].(float64)

	dir := t.TempDir()
	plan := doCommand(t, svc, map[string]interface{}{
		"command": "plan_trajectory",
		"via_points": []interface{}{
			[]interface{}{x, y, z},
			[]interface{}{x + 0.05, y, z},
			[]interface{}{x + 0.05, y + 0.05, z},
		},
		"orientation": map[string]interface{}{
			"mode":        "fixed",
			"rpy_degrees": []interface{}{start["roll"], start["pitch"], start["yaw"]},
		},
		"max_velocity":   0.1,
		"include_joints": true,
		"render_file":    filepath.Join(dir, "plan.png"),
	})

	assert.Equal(t, true, plan["all_succeeded"])
	assert.Empty(t, plan["failed"])
	samples := plan["samples"].(int)
	assert.Greater(t, samples, 2)
	assert.Len(t, plan["joints_deg"], samples)
	assert.Len(t, plan["times"], samples)
	assert.InDelta(t, 0.1, plan["arc_length"].(float64), 0.01)

	info, err := os.Stat(filepath.Join(dir, "plan.png"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	last := doCommand(t, svc, map[string]interface{}{"command": "last_plan"})
	assert.Equal(t, samples, last["samples"])
	assert.Equal(t, true, last["all_succeeded"])
}

func TestPlannerDescribe(t *testing.T) {
	svc := newTestPlanner(t, &PlannerConfig{Preset: kinematics.PresetIRB120})

	resp := doCommand(t, svc, map[string]interface{}{"command": "describe"})
	assert.Equal(t, 6, resp["dof"])
	assert.Equal(t, true, resp["supports_analytic"])
	assert.Contains(t, resp["table"], "DHRobot")
	def := resp["definition"].(map[string]interface{})
	assert.Len(t, def["joints"], 6)

	resp = doCommand(t, svc, map[string]interface{}{"command": "configs"})
	assert.Contains(t, resp["configs"], kinematics.ConfigZero)

	resp = doCommand(t, svc, map[string]interface{}{"command": "within_limits", "joints_deg": []interface{}{0.0, 0.0, 0.0, 0.0, 0.0, 0.0}})
	assert.Equal(t, true, resp["within_limits"])
	resp = doCommand(t, svc, map[string]interface{}{"command": "within_limits", "joints_deg": []interface{}{500.0, 0.0, 0.0, 0.0, 0.0, 0.0}})
	assert.Equal(t, false, resp["within_limits"])
	assert.Equal(t, []interface{}{0}, resp["outside"])

	resp = doCommand(t, svc, map[string]interface{}{"command": "last_plan"})
	assert.Contains(t, resp, "message")
}

func TestPlannerSaveModel(t *testing.T) {
	t.Setenv("VIAM_MODULE_DATA", t.TempDir())
	svc := newTestPlanner(t, &PlannerConfig{Preset: kinematics.PresetKR})

	resp := doCommand(t, svc, map[string]interface{}{"command": "save_model", "path": "kr.dh.json"})
	path := resp["path"].(string)
	assert.Equal(t, filepath.Join(os.Getenv("VIAM_MODULE_DATA"), "kr.dh.json"), path)

	m, err := LoadModelFile(path, logging.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 6, m.DoF())

	// a planner configured from the saved file computes the same forward kinematics
	fromFile := newTestPlanner(t, &PlannerConfig{ModelFile: "kr.dh.json"})
	a := doCommand(t, svc, map[string]interface{}{"command": "forward", "config": kinematics.ConfigZero})
	b := doCommand(t, fromFile, map[string]interface{}{"command": "forward", "config": kinematics.ConfigZero})
	for _, key := range []string{"x", "y", "z"} {
		assert.InDelta(t, a["pose"].(map[string]interface{})[key], b["pose"].(map[string]interface{})[key], 1e-12)
	}
}

func TestPlannerCommandErrors(t *testing.T) {
	svc := newTestPlanner(t, &PlannerConfig{Preset: kinematics.PresetIRB120})
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  map[string]interface{}
	}{
		{"unknown command", map[string]interface{}{"command": "dance"}},
		{"forward without joints", map[string]interface{}{"command": "forward"}},
		{"forward wrong length", map[string]interface{}{"command": "forward", "joints": []interface{}{0.0}}},
		{"forward bad element", map[string]interface{}{"command": "forward", "joints": []interface{}{"a", 0.0}}},
		{"inverse without pose", map[string]interface{}{"command": "inverse"}},
		{"inverse bad strategy", map[string]interface{}{"command": "inverse", "pose": map[string]interface{}{}, "strategy": "guess"}},
		{"plan without points", map[string]interface{}{"command": "plan_trajectory"}},
		{"plan short point", map[string]interface{}{"command": "plan_trajectory", "via_points": []interface{}{[]interface{}{0.0, 0.0}}}},
		{"plan single point", map[string]interface{}{"command": "plan_trajectory", "via_points": []interface{}{[]interface{}{0.3, 0.0, 0.5}}}},
		{"plan bad orientation", map[string]interface{}{
			"command":     "plan_trajectory",
			"via_points":  []interface{}{[]interface{}{0.3, 0.0, 0.5}, []interface{}{0.3, 0.1, 0.5}},
			"orientation": map[string]interface{}{"mode": "spin"},
		}},
		{"save without path", map[string]interface{}{"command": "save_model"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.DoCommand(ctx, tt.cmd)
			assert.Error(t, err)
		})
	}
}

func TestPlannerSharesModel(t *testing.T) {
	cfg := &PlannerConfig{Preset: kinematics.PresetIRB120, Name: "shared"}
	_, _, err := cfg.Validate("test")
	require.NoError(t, err)
	logger := logging.NewTestLogger(t)

	a, err := NewDHPlanner(context.Background(), resource.NewName(genericservice.API, "a"), cfg, logger)
	require.NoError(t, err)
	b, err := NewDHPlanner(context.Background(), resource.NewName(genericservice.API, "b"), cfg, logger)
	require.NoError(t, err)

	refs, loaded, _ := sharedModels.Status(cfg.modelKey())
	assert.Equal(t, int64(2), refs)
	assert.True(t, loaded)

	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))
	_, loaded, _ = sharedModels.Status(cfg.modelKey())
	assert.False(t, loaded)
}
