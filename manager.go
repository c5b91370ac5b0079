package dh_arm

import (
	"go.viam.com/rdk/logging"

	"dh_arm/kinematics"
)

// sharedModels is the registry used by every planner service in the module process.
var sharedModels = NewModelRegistry()

// GetSharedModel returns the model cfg describes, shared with other services using the same source.
// Callers release it with ReleaseSharedModel(cfg).
func GetSharedModel(cfg *PlannerConfig, logger logging.Logger) (*kinematics.Model, error) {
	return sharedModels.GetModel(cfg.modelKey(), func() (*kinematics.Model, error) {
		return cfg.BuildModel(logger)
	}, logger)
}

// ReleaseSharedModel drops the reference taken by GetSharedModel.
func ReleaseSharedModel(cfg *PlannerConfig) {
	sharedModels.ReleaseModel(cfg.modelKey())
}
