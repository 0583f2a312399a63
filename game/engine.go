package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"heroai-go/core"
)

const maxDecomposeDepth = 4

// EngineState is the phase the turn engine is in.
type EngineState uint8

const (
	StateIdle EngineState = iota
	StatePlanning
	StateExecuting
	StateCompleted
	StateFailed
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Decision is one executed goal.
type Decision struct {
	TurnID   string        `json:"turn_id"`
	Pass     int           `json:"pass"`
	Player   core.PlayerID `json:"player"`
	Day      int           `json:"day"`
	Goal     string        `json:"goal"`
	Kind     string        `json:"kind"`
	Key      string        `json:"key"`
	Priority float64       `json:"priority"`
	Heroes   []core.HeroID `json:"heroes"`
	Outcome  string        `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	At       time.Time     `json:"at"`
}

// TurnReport summarizes one PlanTurn call.
type TurnReport struct {
	ID        string                 `json:"id"`
	Player    core.PlayerID          `json:"player"`
	Day       int                    `json:"day"`
	Started   time.Time              `json:"started"`
	Finished  time.Time              `json:"finished"`
	Passes    int                    `json:"passes"`
	Decisions []Decision             `json:"decisions"`
	Stats     SearchStats            `json:"stats"`
	Locked    map[core.HeroID]string `json:"locked"`
}

// DecisionRecorder persists decisions as they are made.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, decision Decision) error
}

// Engine runs the planning loop of one player.
type Engine struct {
	world     core.WorldInterface
	config    *core.Config
	locks     *LockManager
	paths     *PathfindingManager
	behaviors []Behavior
	evaluator *PriorityEvaluator
	recorder  DecisionRecorder
	logger    *zap.Logger

	mu    sync.RWMutex
	state EngineState
	last  *TurnReport
}

// Candidate is a goal with its priority.
type Candidate struct {
	Goal     Goal
	Priority float64
}

// NewEngine creates a new Engine for the player the world view belongs to.
func NewEngine(world core.WorldInterface, config *core.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int("player", int(world.Player())))
	evaluator, err := NewPriorityEvaluator(config.Priority, logger.Named("priority"))
	if err != nil {
		return nil, err
	}
	locks := NewLockManager()
	return &Engine{
		world:     world,
		config:    config,
		locks:     locks,
		paths:     NewPathfindingManager(world, config, locks, logger),
		behaviors: NewBehaviors(config.Behaviors, logger.Named("behaviors")),
		evaluator: evaluator,
		logger:    logger,
	}, nil
}

// SetRecorder attaches a decision journal.
func (e *Engine) SetRecorder(recorder DecisionRecorder) { e.recorder = recorder }

// Paths exposes the path query used by the engine.
func (e *Engine) Paths() *PathfindingManager { return e.paths }

// State returns the current engine state.
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(state EngineState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// LastReport returns the report of the most recent turn, nil before the first one.
func (e *Engine) LastReport() *TurnReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// LockedHeroes returns the heroes currently locked and why.
func (e *Engine) LockedHeroes() map[core.HeroID]HeroLockReason { return e.locks.Snapshot() }

// LockReason returns why a hero is locked.
func (e *Engine) LockReason(hero core.HeroID) HeroLockReason { return e.locks.Reason(hero) }

// resetState clears the locks of the previous turn. Heroes garrisoned in a
// town start the turn locked.
func (e *Engine) resetState() {
	e.locks.Reset()
	for _, town := range e.world.Towns() {
		if town.GarrisonHero != 0 {
			e.locks.Lock(town.GarrisonHero, LockStartup)
		}
	}
}

// PlanTurn plans and executes goals until nothing worth doing is left.
func (e *Engine) PlanTurn(ctx context.Context) (*TurnReport, error) {
	report := &TurnReport{
		ID:      uuid.NewString(),
		Player:  e.world.Player(),
		Day:     e.world.Day(),
		Started: time.Now(),
	}
	logger := e.logger.With(zap.String("turn", report.ID), zap.Int("day", report.Day))
	logger.Info("turn started")

	e.resetState()
	attempted := make(map[string]error)
	var err error

	for pass := 0; ; pass++ {
		if pass >= e.config.Engine.MaxPasses {
			logger.Warn("pass limit reached", zap.Int("passes", pass))
			break
		}
		if err = ctx.Err(); err != nil {
			break
		}

		e.setState(StatePlanning)
		report.Stats = e.paths.Update()
		goal, priority := e.chooseBest(attempted)
		if goal == nil {
			break
		}
		report.Passes++

		e.setState(StateExecuting)
		logger.Info("executing goal", zap.Stringer("goal", goal), zap.Float64("priority", priority))
		result := e.execute(ctx, goal)
		attempted[goal.Key()] = result.Reason
		if result.Ok() {
			e.setState(StateCompleted)
		} else {
			e.setState(StateFailed)
			logger.Info("goal aborted", zap.Stringer("goal", goal), zap.Error(result.Reason))
		}

		decision := Decision{
			TurnID:   report.ID,
			Pass:     pass,
			Player:   report.Player,
			Day:      report.Day,
			Goal:     goal.String(),
			Kind:     goal.Kind().String(),
			Key:      goal.Key(),
			Priority: priority,
			Heroes:   goal.Heroes(),
			Outcome:  result.Outcome.String(),
			At:       time.Now(),
		}
		if result.Reason != nil {
			decision.Reason = result.Reason.Error()
		}
		report.Decisions = append(report.Decisions, decision)
		if e.recorder != nil {
			if rerr := e.recorder.RecordDecision(ctx, decision); rerr != nil {
				logger.Warn("failed to record decision", zap.Error(rerr))
			}
		}
	}

	report.Finished = time.Now()
	report.Locked = make(map[core.HeroID]string)
	for hero, reason := range e.locks.Snapshot() {
		report.Locked[hero] = reason.String()
	}
	e.mu.Lock()
	e.state = StateIdle
	e.last = report
	e.mu.Unlock()

	logger.Info("turn finished", zap.Int("passes", report.Passes), zap.Duration("took", report.Finished.Sub(report.Started)))
	if err != nil {
		return report, fmt.Errorf("turn interrupted: %w", err)
	}
	return report, nil
}

// SelectGoal runs one Planning pass without executing anything.
func (e *Engine) SelectGoal() (Goal, float64) {
	e.paths.Update()
	return e.chooseBest(map[string]error{})
}

// Candidates returns every scored candidate of the current state, best first.
func (e *Engine) Candidates() []Candidate {
	return e.candidates(map[string]error{})
}

func (e *Engine) candidates(attempted map[string]error) []Candidate {
	var scored []Candidate
	for _, behavior := range e.behaviors {
		for _, goal := range behavior.ProduceCandidates(e.world, e.paths) {
			if _, done := attempted[goal.Key()]; done {
				continue
			}
			if e.locks.AnyLocked(goal.Heroes()) {
				continue
			}
			priority := e.score(goal)
			if priority < e.config.Engine.MinPriority {
				continue
			}
			scored = append(scored, Candidate{Goal: goal, Priority: priority})
		}
	}
	sortScored(scored)
	return scored
}

func (e *Engine) chooseBest(attempted map[string]error) (Goal, float64) {
	for _, candidate := range e.candidates(attempted) {
		if !candidate.Goal.Abstract() {
			return candidate.Goal, candidate.Priority
		}
		goal, priority := e.decompose(candidate.Goal, 1, attempted)
		if goal == nil {
			attempted[candidate.Goal.Key()] = ErrUnreachable
			continue
		}
		return goal, priority
	}
	return nil, 0
}

// decompose picks the best concrete goal achieving an abstract one.
func (e *Engine) decompose(parent Goal, depth int, attempted map[string]error) (Goal, float64) {
	subgoals, err := parent.Decompose(e.paths)
	if err != nil {
		e.logger.Debug("cannot decompose goal", zap.Stringer("goal", parent), zap.Error(err))
		return nil, 0
	}

	reward := parent.Evaluation().Reward
	var options []Candidate
	for _, sub := range subgoals {
		if _, done := attempted[sub.Key()]; done {
			continue
		}
		if e.locks.AnyLocked(sub.Heroes()) {
			continue
		}
		if ctx := sub.Evaluation(); ctx.Reward == 0 {
			if setter, ok := sub.(interface{ SetEvaluation(EvaluationContext) }); ok {
				ctx.Reward = reward
				setter.SetEvaluation(ctx)
			}
		}
		if sub.Abstract() {
			if depth >= maxDecomposeDepth {
				continue
			}
			concrete, priority := e.decompose(sub, depth+1, attempted)
			if concrete != nil {
				options = append(options, Candidate{Goal: concrete, Priority: priority})
			}
			continue
		}
		options = append(options, Candidate{Goal: sub, Priority: e.score(sub)})
	}

	sortScored(options)
	if len(options) == 0 || options[0].Priority < e.config.Engine.MinPriority {
		return nil, 0
	}
	return options[0].Goal, options[0].Priority
}

func (e *Engine) score(goal Goal) float64 {
	ctx := goal.Evaluation()
	if heroes := goal.Heroes(); len(heroes) > 0 {
		ctx.HeroRole = e.paths.HeroRole(heroes[0])
	}
	return e.evaluator.Evaluate(ctx, e.paths.GoldPressure())
}

// sortScored orders by priority, then fewer heroes, then key.
func sortScored(scored []Candidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if len(a.Goal.Heroes()) != len(b.Goal.Heroes()) {
			return len(a.Goal.Heroes()) < len(b.Goal.Heroes())
		}
		return a.Goal.Key() < b.Goal.Key()
	})
}

// execute locks the goal's heroes, runs it and releases the locks the goal did not hold on to.
func (e *Engine) execute(ctx context.Context, goal Goal) Result {
	heroes := goal.Heroes()
	for _, hero := range heroes {
		e.locks.Lock(hero, LockHeroChain)
	}
	if chain, ok := goal.(*ExecuteChain); ok && len(chain.Path.Nodes) > 0 {
		e.locks.Reserve(chain.Path.TargetTile(), chain.Path.TargetHero)
	}

	ex := NewExecutor(e.world, e.locks, e.logger.Named("executor"))
	result := goal.Execute(ctx, ex)
	if errors.Is(result.Reason, ErrNotElementary) {
		e.logger.Error("abstract goal reached execution", zap.Stringer("goal", goal))
	}
	for _, hero := range heroes {
		if !ex.Held(hero) {
			e.locks.Unlock(hero)
		}
	}
	return result
}
