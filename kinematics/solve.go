package kinematics

import (
	"context"

	"github.com/pkg/errors"

	"dh_arm/pose"
)

// Solve dispatches to the solver selected by strategy. cfg is ignored by StrategyLM and q0 is
// ignored by StrategyAnalytic.
func (m *Model) Solve(
	ctx context.Context,
	target pose.Transform,
	q0 []float64,
	strategy Strategy,
	cfg Configuration,
	opts IKOptions,
) (IKResult, error) {
	switch strategy {
	case StrategyLM:
		return m.Inverse(ctx, target, q0, opts)
	case StrategyAnalytic:
		if err := ctx.Err(); err != nil {
			return IKResult{}, err
		}
		return m.InverseAnalytic(target, cfg)
	default:
		return IKResult{}, errors.Errorf("unknown inverse kinematics strategy %d", strategy)
	}
}
