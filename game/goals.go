package game

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"heroai-go/core"
)

var (
	// ErrUnreachable means no path leads to the goal's target.
	ErrUnreachable = errors.New("unreachable")
	// ErrBlocked means a special action on the way cannot be resolved now.
	ErrBlocked = errors.New("blocked")
	// ErrActorLost means a hero was removed while executing a chain.
	ErrActorLost = core.ErrHeroLost
	// ErrInvalidConfiguration means a goal's precondition does not hold.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrNotElementary is returned when an abstract goal is executed directly.
	ErrNotElementary = errors.New("goal is abstract")
)

// GoalKind enumerates the candidate actions.
type GoalKind uint8

const (
	GoalInvalid GoalKind = iota
	GoalVisitTile
	GoalVisitObject
	GoalRecruitHero
	GoalBuyArmy
	GoalGatherArmy
	GoalExecuteChain
	GoalSwapGarrison
	GoalComposite
)

var goalKindNames = [...]string{
	GoalInvalid:      "invalid",
	GoalVisitTile:    "visit_tile",
	GoalVisitObject:  "visit_object",
	GoalRecruitHero:  "recruit_hero",
	GoalBuyArmy:      "buy_army",
	GoalGatherArmy:   "gather_army",
	GoalExecuteChain: "execute_chain",
	GoalSwapGarrison: "swap_garrison",
	GoalComposite:    "composite",
}

func (k GoalKind) String() string {
	if int(k) < len(goalKindNames) {
		return goalKindNames[k]
	}
	return fmt.Sprintf("goal(%d)", uint8(k))
}

// EvaluationContext is what the priority evaluator scores.
type EvaluationContext struct {
	Danger       uint64
	MovementCost float64
	ArmyLoss     uint64
	HeroStrength uint64
	// ClosestWayRatio is this option's cost over the cheapest option reaching the same target.
	ClosestWayRatio float64
	Reward          float64
	GoldCost        int
	HeroRole        HeroRole
	ExchangeCount   int
	Turns           int
}

// Outcome of executing a goal.
type Outcome uint8

const (
	OutcomeCompleted Outcome = iota
	OutcomeAborted
)

func (o Outcome) String() string {
	if o == OutcomeCompleted {
		return "completed"
	}
	return "aborted"
}

// Result is returned by Goal.Execute.
type Result struct {
	Outcome Outcome
	Reason  error
}

// Completed is the successful result.
func Completed() Result { return Result{Outcome: OutcomeCompleted} }

// Aborted is a failed result carrying the reason.
func Aborted(reason error) Result { return Result{Outcome: OutcomeAborted, Reason: reason} }

// Ok reports whether the goal completed.
func (r Result) Ok() bool { return r.Outcome == OutcomeCompleted }

func (r Result) String() string {
	if r.Reason != nil {
		return fmt.Sprintf("%s: %v", r.Outcome, r.Reason)
	}
	return r.Outcome.String()
}

// Executor is what a goal needs to act on the world.
type Executor struct {
	World  core.WorldInterface
	Locks  *LockManager
	Logger *zap.Logger

	held map[core.HeroID]HeroLockReason
}

// NewExecutor creates an executor for one goal.
func NewExecutor(world core.WorldInterface, locks *LockManager, logger *zap.Logger) *Executor {
	return &Executor{World: world, Locks: locks, Logger: logger, held: make(map[core.HeroID]HeroLockReason)}
}

// Hold keeps a hero locked after the goal finishes.
func (ex *Executor) Hold(hero core.HeroID, reason HeroLockReason) {
	if ex.held == nil {
		ex.held = make(map[core.HeroID]HeroLockReason)
	}
	ex.held[hero] = reason
	ex.Locks.Lock(hero, reason)
}

// Held reports whether the goal asked to keep hero locked.
func (ex *Executor) Held(hero core.HeroID) bool {
	_, ok := ex.held[hero]
	return ok
}

// Goal is a candidate action.
type Goal interface {
	Kind() GoalKind
	// Abstract goals must be decomposed before they can be executed.
	Abstract() bool
	Evaluation() EvaluationContext
	// Heroes lists the heroes the goal would use; they are locked while it runs.
	Heroes() []core.HeroID
	// Key identifies the goal across planning passes of one turn.
	Key() string
	Decompose(q PathQuery) ([]Goal, error)
	Execute(ctx context.Context, ex *Executor) Result
	fmt.Stringer
}

// goalBase carries the fields every goal shares.
type goalBase struct {
	kind       GoalKind
	abstract   bool
	evaluation EvaluationContext
	heroes     []core.HeroID
}

func (g *goalBase) Kind() GoalKind                { return g.kind }
func (g *goalBase) Abstract() bool                { return g.abstract }
func (g *goalBase) Evaluation() EvaluationContext { return g.evaluation }
func (g *goalBase) Heroes() []core.HeroID         { return g.heroes }

// SetEvaluation replaces the evaluation context.
func (g *goalBase) SetEvaluation(ctx EvaluationContext) { g.evaluation = ctx }

func (g *goalBase) Decompose(PathQuery) ([]Goal, error) {
	return nil, fmt.Errorf("%s goal cannot be decomposed: %w", g.kind, ErrInvalidConfiguration)
}

func (g *goalBase) elementary() Result {
	return Aborted(fmt.Errorf("%s: %w", g.kind, ErrNotElementary))
}

// heroesOf returns a one-element hero list, or none for zero.
func heroesOf(hero core.HeroID) []core.HeroID {
	if hero == 0 {
		return nil
	}
	return []core.HeroID{hero}
}
