package game

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"heroai-go/core"
)

// ExecuteChain walks every waypoint of a path and optionally visits an object at its end.
type ExecuteChain struct {
	goalBase
	Path   Path
	Object core.ObjectID
	target string
}

// NewExecuteChain creates the concrete goal for a path. obj may be nil.
func NewExecuteChain(path Path, obj *core.MapObject) *ExecuteChain {
	g := &ExecuteChain{Path: path}
	g.kind = GoalExecuteChain
	g.heroes = path.Heroes()
	g.evaluation = EvaluationContext{
		Danger:          path.TotalDanger(),
		MovementCost:    path.MovementCost(),
		ArmyLoss:        path.ArmyLoss,
		HeroStrength:    path.HeroStrength(),
		ClosestWayRatio: 1,
		ExchangeCount:   path.ExchangeCount,
		Turns:           path.Turn(),
	}
	if obj != nil {
		g.Object = obj.ID
		g.target = fmt.Sprintf("%s %s", obj.Kind, obj.Pos)
	} else {
		g.target = "tile " + path.TargetTile().String()
	}
	return g
}

func (g *ExecuteChain) Key() string {
	return fmt.Sprintf("chain:%d:%x:%s:%d", g.Path.TargetHero, g.Path.ChainMask, g.Path.TargetTile(), g.Object)
}

func (g *ExecuteChain) String() string {
	return fmt.Sprintf("ExecuteChain %s by %s", g.target, g.Path.TargetHeroName)
}

// VisitTile asks for a hero to reach a tile by whatever chain fits best.
type VisitTile struct {
	goalBase
	Hero core.HeroID
	Tile core.Position
}

// NewVisitTile creates an abstract visit goal. hero may be zero for "any hero".
func NewVisitTile(hero core.HeroID, tile core.Position) *VisitTile {
	g := &VisitTile{Hero: hero, Tile: tile}
	g.kind = GoalVisitTile
	g.abstract = true
	g.heroes = heroesOf(hero)
	return g
}

func (g *VisitTile) Key() string    { return fmt.Sprintf("visit_tile:%d:%s", g.Hero, g.Tile) }
func (g *VisitTile) String() string { return fmt.Sprintf("VisitTile %s", g.Tile) }

func (g *VisitTile) Decompose(q PathQuery) ([]Goal, error) {
	goals := q.HowToVisitTile(g.Hero, g.Tile, true)
	if len(goals) == 0 {
		return nil, fmt.Errorf("%s: %w", g, ErrUnreachable)
	}
	return goals, nil
}

func (g *VisitTile) Execute(context.Context, *Executor) Result { return g.elementary() }

// VisitObject asks for a hero to visit an object.
type VisitObject struct {
	goalBase
	Hero   core.HeroID
	Object core.ObjectID
}

// NewVisitObject creates an abstract object visit goal. hero may be zero for "any hero".
func NewVisitObject(hero core.HeroID, object core.ObjectID) *VisitObject {
	g := &VisitObject{Hero: hero, Object: object}
	g.kind = GoalVisitObject
	g.abstract = true
	g.heroes = heroesOf(hero)
	return g
}

func (g *VisitObject) Key() string    { return fmt.Sprintf("visit_object:%d:%d", g.Hero, g.Object) }
func (g *VisitObject) String() string { return fmt.Sprintf("VisitObject %d", g.Object) }

func (g *VisitObject) Decompose(q PathQuery) ([]Goal, error) {
	goals := q.HowToVisitObject(g.Hero, g.Object, true)
	if len(goals) == 0 {
		return nil, fmt.Errorf("%s: %w", g, ErrUnreachable)
	}
	return goals, nil
}

func (g *VisitObject) Execute(context.Context, *Executor) Result { return g.elementary() }

// GatherArmy asks for a hero's army to grow to at least Value.
type GatherArmy struct {
	goalBase
	Hero   core.HeroID
	Target core.Position
	Value  uint64
}

// NewGatherArmy creates an abstract gather army goal.
func NewGatherArmy(hero core.HeroID, target core.Position, value uint64) *GatherArmy {
	g := &GatherArmy{Hero: hero, Target: target, Value: value}
	g.kind = GoalGatherArmy
	g.abstract = true
	g.heroes = heroesOf(hero)
	return g
}

func (g *GatherArmy) Key() string { return fmt.Sprintf("gather:%d:%s", g.Hero, g.Target) }
func (g *GatherArmy) String() string {
	return fmt.Sprintf("GatherArmy %d for hero %d", g.Value, g.Hero)
}

// Decompose offers the chains that bring armies to the hero and the
// reinforcements the hero can buy in reachable towns.
func (g *GatherArmy) Decompose(q PathQuery) ([]Goal, error) {
	world := q.World()
	hero, ok := world.Hero(g.Hero)
	if !ok {
		return nil, fmt.Errorf("hero %d: %w", g.Hero, ErrActorLost)
	}

	var options []Goal
	for _, path := range q.GetPathsToTile(g.Hero, hero.Pos) {
		if path.ExchangeCount == 0 || path.HeroStrength() <= hero.Army {
			continue
		}
		if !q.IsSafe(path.HeroStrength(), path.TotalDanger()) {
			continue
		}
		chain := NewExecuteChain(path, nil)
		chain.evaluation.Reward = float64(path.HeroStrength() - hero.Army)
		options = append(options, chain)
	}

	gold := world.Gold() - q.ReservedGold()
	for _, town := range world.Towns() {
		if town.Reinforcements == 0 || town.ReinforcementsCost > gold {
			continue
		}
		for _, path := range q.GetPathsToTile(g.Hero, town.Pos) {
			if !q.IsSafe(path.HeroStrength(), path.TotalDanger()) {
				continue
			}
			buy := NewBuyArmy(town, g.Hero)
			goal := NewComposite(NewExecuteChain(path, nil), buy)
			ctx := goal.Evaluation()
			ctx.Reward = float64(town.Reinforcements)
			goal.SetEvaluation(ctx)
			options = append(options, goal)
		}
	}

	if len(options) == 0 {
		return nil, fmt.Errorf("%s: %w", g, ErrUnreachable)
	}
	return options, nil
}

func (g *GatherArmy) Execute(context.Context, *Executor) Result { return g.elementary() }

// RecruitHero hires a new hero in a town.
type RecruitHero struct {
	goalBase
	Town core.TownID
	name string
}

// NewRecruitHero creates a recruit goal for town.
func NewRecruitHero(town core.Town) *RecruitHero {
	g := &RecruitHero{Town: town.ID, name: town.Name}
	g.kind = GoalRecruitHero
	g.evaluation = EvaluationContext{GoldCost: town.RecruitCost, ClosestWayRatio: 1}
	return g
}

func (g *RecruitHero) Key() string    { return fmt.Sprintf("recruit:%d", g.Town) }
func (g *RecruitHero) String() string { return fmt.Sprintf("RecruitHero in %s", g.name) }

func (g *RecruitHero) Execute(ctx context.Context, ex *Executor) Result {
	hero, err := ex.World.RecruitHero(ctx, g.Town)
	if err != nil {
		return Aborted(fmt.Errorf("failed to recruit hero in %s: %w", g.name, err))
	}
	ex.Logger.Info("hero recruited", zap.String("town", g.name), zap.Int("hero", int(hero)))
	return Completed()
}

// BuyArmy purchases a town's reinforcements, for a hero standing there or for the garrison.
type BuyArmy struct {
	goalBase
	Town  core.TownID
	Hero  core.HeroID
	Value uint64
	name  string
}

// NewBuyArmy creates a purchase goal. hero zero buys into the garrison.
func NewBuyArmy(town core.Town, hero core.HeroID) *BuyArmy {
	g := &BuyArmy{Town: town.ID, Hero: hero, Value: town.Reinforcements, name: town.Name}
	g.kind = GoalBuyArmy
	g.heroes = heroesOf(hero)
	g.evaluation = EvaluationContext{
		GoldCost:        town.ReinforcementsCost,
		Reward:          float64(town.Reinforcements),
		ClosestWayRatio: 1,
	}
	return g
}

func (g *BuyArmy) Key() string { return fmt.Sprintf("buy:%d:%d", g.Town, g.Hero) }
func (g *BuyArmy) String() string {
	return fmt.Sprintf("BuyArmy %d in %s", g.Value, g.name)
}

func (g *BuyArmy) Execute(ctx context.Context, ex *Executor) Result {
	if err := ex.World.Purchase(ctx, g.Town, g.Hero); err != nil {
		return Aborted(fmt.Errorf("failed to buy army in %s: %w", g.name, err))
	}
	return Completed()
}

// SwapGarrison moves Hero into the garrison of a town, or with Hero zero
// moves the garrison hero out to the gate.
type SwapGarrison struct {
	goalBase
	Town core.TownID
	Hero core.HeroID
}

// NewSwapGarrison creates a swap goal.
func NewSwapGarrison(town core.TownID, hero core.HeroID) *SwapGarrison {
	g := &SwapGarrison{Town: town, Hero: hero}
	g.kind = GoalSwapGarrison
	g.heroes = heroesOf(hero)
	g.evaluation = EvaluationContext{ClosestWayRatio: 1}
	return g
}

func (g *SwapGarrison) Key() string { return fmt.Sprintf("swap:%d:%d", g.Town, g.Hero) }
func (g *SwapGarrison) String() string {
	if g.Hero == 0 {
		return fmt.Sprintf("SwapGarrison extract from town %d", g.Town)
	}
	return fmt.Sprintf("SwapGarrison put hero %d into town %d", g.Hero, g.Town)
}

func (g *SwapGarrison) Execute(ctx context.Context, ex *Executor) Result {
	town, ok := ex.World.Town(g.Town)
	if !ok {
		return Aborted(fmt.Errorf("town %d is gone: %w", g.Town, ErrInvalidConfiguration))
	}

	if g.Hero == 0 {
		if town.GarrisonHero == 0 {
			return Aborted(fmt.Errorf("no hero in garrison of %s: %w", town.Name, ErrInvalidConfiguration))
		}
		if town.VisitingHero != 0 {
			return Aborted(fmt.Errorf("gate of %s is occupied: %w", town.Name, ErrInvalidConfiguration))
		}
		if err := ex.World.SwapGarrison(ctx, g.Town); err != nil {
			return Aborted(fmt.Errorf("failed to swap garrison of %s: %w", town.Name, err))
		}
		ex.Locks.Unlock(town.GarrisonHero)
		ex.Logger.Debug("extracted hero from garrison", zap.String("town", town.Name), zap.Int("hero", int(town.GarrisonHero)))
		return Completed()
	}

	if town.GarrisonHero == g.Hero {
		ex.Hold(g.Hero, LockDefence)
		return Completed()
	}
	hero, ok := ex.World.Hero(g.Hero)
	if !ok {
		return Aborted(fmt.Errorf("hero %d: %w", g.Hero, ErrActorLost))
	}
	if hero.Pos != town.Pos || town.VisitingHero != g.Hero {
		return Aborted(fmt.Errorf("hero %s is not at the gate of %s: %w", hero.Name, town.Name, ErrInvalidConfiguration))
	}
	if err := ex.World.SwapGarrison(ctx, g.Town); err != nil {
		return Aborted(fmt.Errorf("failed to swap garrison of %s: %w", town.Name, err))
	}
	ex.Hold(g.Hero, LockDefence)
	if town.GarrisonHero != 0 {
		ex.Locks.Unlock(town.GarrisonHero)
	}
	ex.Logger.Debug("put hero into garrison", zap.String("town", town.Name), zap.String("hero", hero.Name))
	return Completed()
}

// Composite runs its parts in order and stops at the first failure.
type Composite struct {
	goalBase
	Parts []Goal
}

// NewComposite creates a composite goal.
func NewComposite(parts ...Goal) *Composite {
	g := &Composite{Parts: parts}
	g.kind = GoalComposite
	g.evaluation.ClosestWayRatio = 1
	seen := make(map[core.HeroID]bool)
	for _, part := range parts {
		if part.Abstract() {
			g.abstract = true
		}
		for _, hero := range part.Heroes() {
			if !seen[hero] {
				seen[hero] = true
				g.heroes = append(g.heroes, hero)
			}
		}
		ctx := part.Evaluation()
		g.evaluation.Danger = max(g.evaluation.Danger, ctx.Danger)
		g.evaluation.MovementCost += ctx.MovementCost
		g.evaluation.ArmyLoss += ctx.ArmyLoss
		g.evaluation.HeroStrength = max(g.evaluation.HeroStrength, ctx.HeroStrength)
		g.evaluation.Reward += ctx.Reward
		g.evaluation.GoldCost += ctx.GoldCost
		g.evaluation.ExchangeCount += ctx.ExchangeCount
		g.evaluation.Turns = max(g.evaluation.Turns, ctx.Turns)
	}
	return g
}

func (g *Composite) Key() string {
	keys := make([]string, len(g.Parts))
	for i, part := range g.Parts {
		keys[i] = part.Key()
	}
	return "composite[" + strings.Join(keys, ",") + "]"
}

func (g *Composite) String() string {
	names := make([]string, len(g.Parts))
	for i, part := range g.Parts {
		names[i] = part.String()
	}
	return strings.Join(names, " then ")
}

func (g *Composite) Execute(ctx context.Context, ex *Executor) Result {
	for _, part := range g.Parts {
		if part.Abstract() {
			return Aborted(fmt.Errorf("%s: %w", part, ErrNotElementary))
		}
		if result := part.Execute(ctx, ex); !result.Ok() {
			return result
		}
	}
	return Completed()
}

// Invalid is a goal that can never be achieved.
type Invalid struct {
	goalBase
	reason string
}

// NewInvalid creates an invalid goal.
func NewInvalid(reason string) *Invalid {
	g := &Invalid{reason: reason}
	g.kind = GoalInvalid
	return g
}

func (g *Invalid) Key() string    { return "invalid:" + g.reason }
func (g *Invalid) String() string { return "Invalid: " + g.reason }

func (g *Invalid) Execute(context.Context, *Executor) Result {
	return Aborted(errors.New(g.reason))
}
