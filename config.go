package dh_arm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/logging"

	"dh_arm/kinematics"
	"dh_arm/planner"
	"dh_arm/pose"
	"dh_arm/trajectory"
)

const (
	defaultMaxVelocity    = 0.5
	defaultSampleInterval = 0.02
	defaultAccelTime      = 0.2
)

// Orientation modes for planned paths.
const (
	OrientationFixed           = "fixed"
	OrientationForwardApproach = "forward_approach"
	OrientationInterpolated    = "interpolated"
)

// OrientationConfig selects how each trajectory sample becomes a full tool pose.
type OrientationConfig struct {
	// Mode is fixed, forward_approach or interpolated. Defaults to forward_approach.
	Mode string `json:"mode,omitempty"`

	// Fixed mode: pose = Prefix · Trans(p) · RPY(RPYDegrees)
	Prefix     *kinematics.FrameDefinition `json:"prefix,omitempty"`
	RPYDegrees [3]float64                  `json:"rpy_degrees"`

	// Interpolated mode: one orientation per via point
	ViaRPYDegrees [][3]float64 `json:"via_rpy_degrees,omitempty"`
}

// Policy builds the orientation policy.
func (oc *OrientationConfig) Policy() (planner.OrientationPolicy, error) {
	if oc == nil {
		return planner.ForwardApproach(), nil
	}
	switch oc.Mode {
	case "", OrientationForwardApproach:
		return planner.ForwardApproach(), nil
	case OrientationFixed:
		f := planner.NewFixed(pose.RPYDeg(oc.RPYDegrees[0], oc.RPYDegrees[1], oc.RPYDegrees[2]))
		if oc.Prefix != nil {
			f.Prefix = oc.Prefix.Transform()
		}
		return f, nil
	case OrientationInterpolated:
		if len(oc.ViaRPYDegrees) == 0 {
			return nil, errors.New("interpolated orientation needs via_rpy_degrees")
		}
		p := planner.Interpolated{}
		for _, rpy := range oc.ViaRPYDegrees {
			p.Orientations = append(p.Orientations, pose.RPYDeg(rpy[0], rpy[1], rpy[2]))
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown orientation mode %q", oc.Mode)
	}
}

// PlannerConfig configures the DH planner service. Exactly one of Preset, ModelFile or Joints
// describes the arm.
type PlannerConfig struct {
	Preset    string             `json:"preset,omitempty"`
	ModelFile string             `json:"model_file,omitempty"`
	Name      string             `json:"name,omitempty"`
	Joints    []kinematics.Joint `json:"joints,omitempty"`

	// Base and Tool replace the frames of the selected model when set.
	Base *kinematics.FrameDefinition `json:"base,omitempty"`
	Tool *kinematics.FrameDefinition `json:"tool,omitempty"`

	Strategy      string               `json:"strategy,omitempty"`      // lm or analytic
	Configuration string               `json:"configuration,omitempty"` // analytic branch, e.g. "lu"
	IK            kinematics.IKOptions `json:"ik"`

	MaxVelocity    float64     `json:"max_velocity_m_per_sec,omitempty"`
	MaxVelocityXYZ *[3]float64 `json:"max_velocity_xyz,omitempty"`
	SampleInterval float64     `json:"sample_interval_sec,omitempty"`
	AccelTime      float64     `json:"accel_time_sec,omitempty"`
	ZeroLength     string      `json:"zero_length,omitempty"`

	Orientation *OrientationConfig `json:"orientation,omitempty"`
	// SeedConfig names the model configuration that seeds the first solve.
	SeedConfig string `json:"seed_config,omitempty"`
	Parallel   bool   `json:"parallel,omitempty"`
	Workers    int    `json:"workers,omitempty"`
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (cfg *PlannerConfig) Validate(path string) ([]string, []string, error) {
	sources := 0
	for _, set := range []bool{cfg.Preset != "", cfg.ModelFile != "", len(cfg.Joints) > 0} {
		if set {
			sources++
		}
	}
	if sources == 0 {
		return nil, nil, goutils.NewConfigValidationFieldRequiredError(path, "preset")
	}
	if sources > 1 {
		return nil, nil, goutils.NewConfigValidationError(path,
			errors.New("only one of preset, model_file or joints may be set"))
	}
	if cfg.Preset != "" {
		if _, err := kinematics.Preset(cfg.Preset); err != nil {
			return nil, nil, goutils.NewConfigValidationError(path, err)
		}
	}

	if cfg.MaxVelocity == 0 {
		cfg.MaxVelocity = defaultMaxVelocity
	}
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = defaultSampleInterval
	}
	if cfg.AccelTime == 0 {
		cfg.AccelTime = defaultAccelTime
	}
	if cfg.SeedConfig == "" {
		cfg.SeedConfig = kinematics.ConfigZero
	}

	// report every malformed field at once
	var errs error
	if cfg.MaxVelocity < 0 || cfg.SampleInterval < 0 || cfg.AccelTime < 0 {
		errs = multierr.Append(errs, errors.New("velocity, sample interval and acceleration time must not be negative"))
	}
	if _, err := kinematics.ParseStrategy(cfg.Strategy); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.Configuration != "" {
		if _, err := kinematics.ParseConfiguration(cfg.Configuration); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if _, err := trajectory.ParseZeroLengthPolicy(cfg.ZeroLength); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := cfg.Orientation.Policy(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.Workers < 0 {
		errs = multierr.Append(errs, fmt.Errorf("workers must not be negative, got %d", cfg.Workers))
	}
	if errs != nil {
		return nil, nil, goutils.NewConfigValidationError(path, errs)
	}
	return nil, nil, nil
}

// modelKey identifies the model source for sharing between services.
func (cfg *PlannerConfig) modelKey() string {
	switch {
	case cfg.Preset != "":
		return "preset:" + cfg.Preset + frameKey(cfg.Base, cfg.Tool)
	case cfg.ModelFile != "":
		return "file:" + ResolveDataPath(cfg.ModelFile) + frameKey(cfg.Base, cfg.Tool)
	default:
		data, _ := json.Marshal(struct {
			Name   string
			Joints []kinematics.Joint
		}{cfg.Name, cfg.Joints})
		return "inline:" + string(data) + frameKey(cfg.Base, cfg.Tool)
	}
}

func frameKey(base, tool *kinematics.FrameDefinition) string {
	if base == nil && tool == nil {
		return ""
	}
	data, _ := json.Marshal([]*kinematics.FrameDefinition{base, tool})
	return "|" + string(data)
}

// BuildModel constructs the kinematic model the config describes.
func (cfg *PlannerConfig) BuildModel(logger logging.Logger) (*kinematics.Model, error) {
	var (
		m   *kinematics.Model
		err error
	)
	switch {
	case cfg.Preset != "":
		m, err = kinematics.Preset(cfg.Preset)
	case cfg.ModelFile != "":
		m, err = LoadModelFile(ResolveDataPath(cfg.ModelFile), logger)
	default:
		name := cfg.Name
		if name == "" {
			name = "custom"
		}
		m, err = kinematics.NewModel(name, cfg.Joints)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Base == nil && cfg.Tool == nil {
		return m, nil
	}

	def := m.Definition()
	if cfg.Base != nil {
		def.Base = cfg.Base
	}
	if cfg.Tool != nil {
		def.Tool = cfg.Tool
	}
	return def.Build()
}

// TrajectoryOptions returns the synthesis options of the config.
func (cfg *PlannerConfig) TrajectoryOptions() (trajectory.Options, error) {
	policy, err := trajectory.ParseZeroLengthPolicy(cfg.ZeroLength)
	if err != nil {
		return trajectory.Options{}, err
	}
	vmax := trajectory.UniformVelocity(cfg.MaxVelocity)
	if cfg.MaxVelocityXYZ != nil {
		vmax = r3.Vector{X: cfg.MaxVelocityXYZ[0], Y: cfg.MaxVelocityXYZ[1], Z: cfg.MaxVelocityXYZ[2]}
	}
	return trajectory.Options{
		MaxVelocity:    vmax,
		SampleInterval: cfg.SampleInterval,
		AccelTime:      cfg.AccelTime,
		ZeroLength:     policy,
	}, nil
}

// NewSolver returns a batch solver for m configured from cfg.
func (cfg *PlannerConfig) NewSolver(m *kinematics.Model, logger logging.Logger) (*planner.Solver, error) {
	strategy, err := kinematics.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	var arm kinematics.Configuration
	if cfg.Configuration != "" {
		if arm, err = kinematics.ParseConfiguration(cfg.Configuration); err != nil {
			return nil, err
		}
	}
	policy, err := cfg.Orientation.Policy()
	if err != nil {
		return nil, err
	}
	seedName := cfg.SeedConfig
	if seedName == "" {
		seedName = kinematics.ConfigZero
	}
	seed, err := m.Config(seedName)
	if err != nil {
		return nil, err
	}
	return &planner.Solver{
		Model:         m,
		Strategy:      strategy,
		Configuration: arm,
		Options:       cfg.IK,
		Orientation:   policy,
		Seed:          seed,
		Parallel:      cfg.Parallel,
		Workers:       cfg.Workers,
		Logger:        logger,
	}, nil
}

// ResolveDataPath joins relative paths onto VIAM_MODULE_DATA, or /tmp when it is unset.
func ResolveDataPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}
	return filepath.Join(moduleDataDir, path)
}

// LoadModelFile reads a model definition from a JSON file and builds it.
func LoadModelFile(filePath string, logger logging.Logger) (*kinematics.Model, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var def kinematics.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}
	m, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("model validation failed: %w", err)
	}

	if logger != nil {
		logger.Debugf("Loaded %d-joint model %q from %s", m.DoF(), m.Name(), filePath)
	}
	return m, nil
}

// SaveModelFile writes the definition of m to a JSON file.
func SaveModelFile(filePath string, m *kinematics.Model) error {
	data, err := json.MarshalIndent(m.Definition(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}
