package loadgen

import (
	"context"
	"fmt"

	"assay/pkg/logging"
)

// DefaultErrorThreshold halts a stress ramp once more than 10% of calls fail.
const DefaultErrorThreshold = 0.10

// StressOptions ramps the number of virtual users phase by phase.
type StressOptions struct {
	// Options is the per-phase template; VirtualUsers is ignored
	Options
	// StartUsers defaults to StepSize
	StartUsers int
	StepSize   int
	MaxUsers   int
	// ErrorThreshold is the error ratio (0..1) that ends the ramp
	ErrorThreshold float64
	// OnPhase is called after each completed phase
	OnPhase func(Phase)
}

// Phase is the outcome of one concurrency level.
type Phase struct {
	Users   int     `json:"users"`
	Metrics Metrics `json:"metrics"`
}

// StressResult summarises a ramp.
type StressResult struct {
	Phases []Phase `json:"phases"`
	// MaxStableUsers is the highest level whose error ratio stayed within the threshold
	MaxStableUsers int `json:"maxStableUsers"`
	// BreakingPoint is the first level that crossed the threshold, 0 if none did
	BreakingPoint int `json:"breakingPoint"`
	// Halted is true when the ramp ended early on the threshold
	Halted bool `json:"halted"`
}

// Levels returns the user counts a ramp would visit.
func (o StressOptions) Levels() []int {
	if o.StepSize <= 0 || o.MaxUsers <= 0 {
		return nil
	}
	start := o.StartUsers
	if start <= 0 {
		start = o.StepSize
	}
	if start > o.MaxUsers {
		return []int{o.MaxUsers}
	}
	var levels []int
	for users := start; users <= o.MaxUsers; users += o.StepSize {
		levels = append(levels, users)
	}
	return levels
}

// Stress runs one load phase per level and stops early when a phase's error
// ratio exceeds the threshold.
func (g *Generator) Stress(ctx context.Context, opts StressOptions) (StressResult, error) {
	levels := opts.Levels()
	if len(levels) == 0 {
		return StressResult{}, fmt.Errorf("%w: stepSize and maxUsers must be greater than 0", ErrInvalidOptions)
	}
	threshold := opts.ErrorThreshold
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}

	var result StressResult
	for _, users := range levels {
		if ctx.Err() != nil {
			break
		}

		phaseOpts := opts.Options
		phaseOpts.VirtualUsers = users
		m, err := g.Run(ctx, phaseOpts)
		if err != nil {
			return result, err
		}

		phase := Phase{Users: users, Metrics: m}
		result.Phases = append(result.Phases, phase)
		if opts.OnPhase != nil {
			opts.OnPhase(phase)
		}

		if m.TotalRequests > 0 && m.ErrorRate > threshold {
			result.BreakingPoint = users
			result.Halted = true
			logging.Info("LoadGen", "Stress ramp halted at %d users: error rate %.1f%% exceeds %.1f%%", users, m.ErrorRate*100, threshold*100)
			break
		}
		result.MaxStableUsers = users
	}
	return result, nil
}
