package game

import (
	"fmt"

	"go.uber.org/zap"

	"heroai-go/core"
)

const (
	defenceReward      = 5000
	releaseReward      = 100
	recruitReward      = 2000
	extraRecruitReward = 500
	gatherRewardShare  = 0.5
)

var defaultObjectRewards = map[core.ObjectKind]float64{
	core.ObjectResource:     500,
	core.ObjectMine:         2000,
	core.ObjectDwelling:     1500,
	core.ObjectCreatureBank: 2500,
	core.ObjectArtifact:     1500,
	core.ObjectMonster:      300,
}

// Behavior produces candidate goals from the current state.
type Behavior interface {
	fmt.Stringer
	ProduceCandidates(world core.WorldInterface, q PathQuery) []Goal
}

// NewBehaviors returns the behaviors enabled in config.
func NewBehaviors(config core.BehaviorConfig, logger *zap.Logger) []Behavior {
	if logger == nil {
		logger = zap.NewNop()
	}
	var behaviors []Behavior
	if config.Defence {
		behaviors = append(behaviors, &DefenceBehavior{})
	}
	if config.CaptureObjects {
		behaviors = append(behaviors, &CaptureObjectsBehavior{logger: logger.Named("capture")})
	}
	if config.RecruitHeroes {
		behaviors = append(behaviors, &RecruitHeroBehavior{goldThreshold: config.RecruitGoldThreshold})
	}
	if config.BuyArmy {
		behaviors = append(behaviors, &BuyArmyBehavior{fromDay: config.BuyArmyFromDay})
	}
	return behaviors
}

// ObjectReward is what visiting obj is worth to the player.
func ObjectReward(obj core.MapObject) float64 {
	if obj.Value > 0 {
		return float64(obj.Value)
	}
	return defaultObjectRewards[obj.Kind]
}

// CaptureObjectsBehavior proposes visiting every worthwhile object.
type CaptureObjectsBehavior struct {
	logger *zap.Logger
}

func (b *CaptureObjectsBehavior) String() string { return "capture objects" }

func (b *CaptureObjectsBehavior) ProduceCandidates(world core.WorldInterface, q PathQuery) []Goal {
	var goals []Goal
	for _, obj := range world.Objects() {
		if !b.capturable(world, obj) {
			continue
		}
		goals = append(goals, b.objectGoals(world, q, obj)...)
	}
	return goals
}

func (b *CaptureObjectsBehavior) capturable(world core.WorldInterface, obj core.MapObject) bool {
	if ObjectReward(obj) <= 0 || obj.Owner == world.Player() {
		return false
	}
	return !(obj.Visited && obj.Kind == core.ObjectCreatureBank)
}

func (b *CaptureObjectsBehavior) objectGoals(world core.WorldInterface, q PathQuery, obj core.MapObject) []Goal {
	reward := ObjectReward(obj)
	var chains []*ExecuteChain
	var unsafe *Path
	for _, path := range q.GetPathsToObject(0, obj.ID) {
		if len(path.Nodes) == 0 {
			continue
		}
		if path.GetFirstBlockedAction(world) != nil {
			b.logger.Debug("ignore path, action is blocked", zap.Stringer("path", &path))
			continue
		}
		if q.EnemyCanKillAlong(&path) {
			b.logger.Debug("ignore path, enemy can intercept", zap.Stringer("path", &path))
			continue
		}
		danger := path.TotalDanger()
		if !q.IsSafe(path.HeroStrength(), danger) {
			if unsafe == nil || danger < unsafe.TotalDanger() {
				p := path
				unsafe = &p
			}
			continue
		}
		if danger == 0 && path.ExchangeCount > 1 && q.HeroRole(path.TargetHero) == RoleScout {
			continue
		}
		chains = append(chains, NewExecuteChain(path, &obj))
	}

	if len(chains) == 0 {
		if unsafe == nil || q.HeroRole(unsafe.TargetHero) != RoleMain {
			return nil
		}
		gather := NewGatherArmy(unsafe.TargetHero, obj.Pos, uint64(float64(unsafe.TotalDanger())*q.SafeAttackRatio()))
		gather.SetEvaluation(EvaluationContext{
			MovementCost:    unsafe.MovementCost(),
			HeroStrength:    unsafe.HeroStrength(),
			ClosestWayRatio: 1,
			Reward:          reward * gatherRewardShare,
			HeroRole:        RoleMain,
			Turns:           unsafe.Turn(),
		})
		return []Goal{gather}
	}

	closest := chains[0].Path.MovementCost()
	for _, chain := range chains[1:] {
		closest = min(closest, chain.Path.MovementCost())
	}
	goals := make([]Goal, 0, len(chains))
	for _, chain := range chains {
		ctx := chain.Evaluation()
		ctx.Reward = reward
		ctx.HeroRole = q.HeroRole(chain.Path.TargetHero)
		if closest > 0 {
			ctx.ClosestWayRatio = chain.Path.MovementCost() / closest
		}
		chain.SetEvaluation(ctx)
		goals = append(goals, chain)
	}
	return goals
}

// RecruitHeroBehavior hires heroes while the player has few of them or plenty of gold.
type RecruitHeroBehavior struct {
	goldThreshold int
}

func (b *RecruitHeroBehavior) String() string { return "recruit hero" }

func (b *RecruitHeroBehavior) ProduceCandidates(world core.WorldInterface, q PathQuery) []Goal {
	heroes := len(world.Heroes())
	towns := world.Towns()
	gold := world.Gold()

	var goals []Goal
	for _, town := range towns {
		if town.GarrisonHero != 0 || town.VisitingHero != 0 || !town.CanRecruit || town.RecruitCost > gold {
			continue
		}
		reward := float64(recruitReward)
		if heroes >= len(towns)+1 {
			if gold <= b.goldThreshold {
				continue
			}
			reward = extraRecruitReward
		}
		goal := NewRecruitHero(town)
		ctx := goal.Evaluation()
		ctx.Reward = reward
		goal.SetEvaluation(ctx)
		goals = append(goals, goal)
	}
	return goals
}

// BuyArmyBehavior buys the reinforcements towns offer, from the configured day
// on, with the gold not promised to pending buildings.
type BuyArmyBehavior struct {
	fromDay int
}

func (b *BuyArmyBehavior) String() string { return "buy army" }

func (b *BuyArmyBehavior) ProduceCandidates(world core.WorldInterface, q PathQuery) []Goal {
	if world.Day() < b.fromDay {
		return nil
	}
	gold := world.Gold() - q.ReservedGold()
	var goals []Goal
	for _, town := range world.Towns() {
		if town.Reinforcements == 0 || town.ReinforcementsCost > gold {
			continue
		}
		goals = append(goals, NewBuyArmy(town, town.VisitingHero))
	}
	return goals
}

// DefenceBehavior keeps threatened towns garrisoned and frees garrison heroes otherwise.
type DefenceBehavior struct{}

func (b *DefenceBehavior) String() string { return "defence" }

func (b *DefenceBehavior) ProduceCandidates(world core.WorldInterface, q PathQuery) []Goal {
	var goals []Goal
	for _, town := range world.Towns() {
		threat := q.Threat(town.Pos)
		threatened := threat.Fastest.Danger > 0 && threat.Fastest.Turn <= 1

		if !threatened {
			if town.GarrisonHero != 0 && town.VisitingHero == 0 {
				goal := NewSwapGarrison(town.ID, 0)
				goal.SetEvaluation(EvaluationContext{ClosestWayRatio: 1, Reward: releaseReward, HeroRole: RoleMain})
				goals = append(goals, goal)
			}
			continue
		}
		if town.GarrisonHero != 0 {
			continue
		}

		if town.VisitingHero != 0 {
			goal := NewSwapGarrison(town.ID, town.VisitingHero)
			goal.SetEvaluation(EvaluationContext{ClosestWayRatio: 1, Reward: defenceReward, HeroRole: RoleMain})
			goals = append(goals, goal)
			continue
		}

		for _, path := range q.GetPathsToTile(0, town.Pos) {
			if len(path.Nodes) == 0 || path.Turn() > threat.Fastest.Turn {
				continue
			}
			chain := NewExecuteChain(path, nil)
			goal := NewComposite(chain, NewSwapGarrison(town.ID, path.TargetHero))
			ctx := goal.Evaluation()
			ctx.Reward = defenceReward
			ctx.HeroRole = RoleMain
			goal.SetEvaluation(ctx)
			goals = append(goals, goal)
		}
	}
	return goals
}
