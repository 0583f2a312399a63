package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"heroai-go/core"
)

func newEvaluator(t *testing.T, cfg core.PriorityConfig) *PriorityEvaluator {
	t.Helper()
	e, err := NewPriorityEvaluator(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return e
}

func TestPriorityEvaluator_Evaluate(t *testing.T) {
	e := newEvaluator(t, core.DefaultConfig().Priority)
	base := EvaluationContext{
		Danger:          50,
		MovementCost:    500,
		ArmyLoss:        10,
		HeroStrength:    100,
		ClosestWayRatio: 1,
		Reward:          1000,
		HeroRole:        RoleMain,
	}
	p := e.Evaluate(base, 0)
	assert.InDelta(t, 1/(1.5*1.5*1.1), p, 1e-9)

	tests := []struct {
		name   string
		modify func(*EvaluationContext)
		better bool
	}{
		{"more reward", func(c *EvaluationContext) { c.Reward = 2000 }, true},
		{"more danger", func(c *EvaluationContext) { c.Danger = 80 }, false},
		{"longer way", func(c *EvaluationContext) { c.MovementCost = 900 }, false},
		{"more loss", func(c *EvaluationContext) { c.ArmyLoss = 50 }, false},
		{"not the closest way", func(c *EvaluationContext) { c.ClosestWayRatio = 2 }, false},
		{"stronger hero", func(c *EvaluationContext) { c.HeroStrength = 400 }, true},
		{"scout in danger", func(c *EvaluationContext) { c.HeroRole = RoleScout }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := base
			tt.modify(&ctx)
			got := e.Evaluate(ctx, 0)
			if tt.better {
				assert.Greater(t, got, p)
			} else {
				assert.Less(t, got, p)
			}
		})
	}
}

func TestPriorityEvaluator_Penalties(t *testing.T) {
	cfg := core.DefaultConfig().Priority
	e := newEvaluator(t, cfg)
	ctx := EvaluationContext{Danger: 10, HeroStrength: 100, ClosestWayRatio: 1, Reward: 1000, HeroRole: RoleScout}
	scout := e.Evaluate(ctx, 0)

	ctx.ExchangeCount, ctx.Turns = 1, 1
	assert.InDelta(t, scout*cfg.ChainScoutPenalty, e.Evaluate(ctx, 0), 1e-12)

	ctx = EvaluationContext{ClosestWayRatio: 1, Reward: 1000, GoldCost: 500}
	assert.InDelta(t, 1.0, e.Evaluate(ctx, 0), 1e-12)
	assert.InDelta(t, 0.7, e.Evaluate(ctx, 0.3), 1e-12)
}

func TestPriorityEvaluator_NeverNegative(t *testing.T) {
	e := newEvaluator(t, core.DefaultConfig().Priority)
	assert.Zero(t, e.Evaluate(EvaluationContext{Reward: -100}, 0))
	assert.Zero(t, e.Evaluate(EvaluationContext{Reward: math.Inf(1)}, 0))
	assert.Zero(t, e.Evaluate(EvaluationContext{Reward: math.NaN()}, 0))
	assert.Zero(t, e.Evaluate(EvaluationContext{}, 0))
}

func TestPriorityEvaluator_Formula(t *testing.T) {
	cfg := core.DefaultConfig().Priority
	cfg.Formula = "reward / (1 + cost) + (scout ? 0 : 1)"
	e := newEvaluator(t, cfg)

	assert.InDelta(t, 11.0, e.Evaluate(EvaluationContext{Reward: 1000, MovementCost: 99, HeroRole: RoleMain}, 0), 1e-9)
	assert.InDelta(t, 10.0, e.Evaluate(EvaluationContext{Reward: 1000, MovementCost: 99, HeroRole: RoleScout}, 0), 1e-9)

	cfg.Formula = "reward +"
	_, err := NewPriorityEvaluator(cfg, nil)
	assert.Error(t, err)
}
