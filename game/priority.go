package game

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"heroai-go/core"
)

// PriorityEvaluator scores evaluation contexts. Higher is better.
type PriorityEvaluator struct {
	config  core.PriorityConfig
	program *vm.Program
	logger  *zap.Logger
}

// NewPriorityEvaluator creates an evaluator, compiling the configured formula if any.
func NewPriorityEvaluator(config core.PriorityConfig, logger *zap.Logger) (*PriorityEvaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &PriorityEvaluator{config: config, logger: logger}
	if config.Formula != "" {
		program, err := expr.Compile(config.Formula, expr.Env(core.FormulaEnv{}), expr.AsFloat64())
		if err != nil {
			return nil, fmt.Errorf("failed to compile priority formula: %w", err)
		}
		e.program = program
	}
	return e, nil
}

// Evaluate scores ctx. The built-in weighting grows with reward and
// shrinks with danger, movement cost, army loss and distance from the
// cheapest way to the same target.
func (e *PriorityEvaluator) Evaluate(ctx EvaluationContext, goldPressure float64) float64 {
	if e.program != nil {
		if p, ok := e.evaluateFormula(ctx, goldPressure); ok {
			return p
		}
	}

	cfg := e.config
	strength := float64(max(ctx.HeroStrength, 1))
	closest := max(ctx.ClosestWayRatio, 1)
	scale := cfg.CostScale
	if scale <= 0 {
		scale = 1000
	}

	p := ctx.Reward / 1000
	p /= 1 + cfg.DangerWeight*float64(ctx.Danger)/strength
	p /= 1 + cfg.CostWeight*ctx.MovementCost/scale
	p /= 1 + cfg.ArmyLossWeight*float64(ctx.ArmyLoss)/strength
	p /= math.Pow(closest, cfg.ClosestWayWeight)

	if ctx.HeroRole == RoleScout && ctx.Danger > 0 {
		p *= cfg.ScoutPenalty
		if ctx.ExchangeCount > 0 && ctx.Turns > 0 {
			p *= cfg.ChainScoutPenalty
		}
	}
	if ctx.GoldCost > 0 {
		p *= 1 - goldPressure
	}
	return sanitize(p)
}

func (e *PriorityEvaluator) evaluateFormula(ctx EvaluationContext, goldPressure float64) (float64, bool) {
	env := core.FormulaEnv{
		Danger:          float64(ctx.Danger),
		Strength:        float64(ctx.HeroStrength),
		Cost:            ctx.MovementCost,
		ArmyLoss:        float64(ctx.ArmyLoss),
		ClosestWayRatio: ctx.ClosestWayRatio,
		Reward:          ctx.Reward,
		GoldCost:        float64(ctx.GoldCost),
		GoldPressure:    goldPressure,
		Scout:           ctx.HeroRole == RoleScout,
		Exchanges:       ctx.ExchangeCount,
		Turns:           ctx.Turns,
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		e.logger.Warn("priority formula failed, using built-in weighting", zap.Error(err))
		return 0, false
	}
	p, ok := out.(float64)
	if !ok {
		return 0, false
	}
	return sanitize(p), true
}

func sanitize(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}
