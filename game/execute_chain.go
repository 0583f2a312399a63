package game

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"heroai-go/core"
)

var errNotReached = errors.New("waypoint not reached")

// Execute walks the waypoints in execution order. A waypoint that fails
// blocks the waypoints depending on it and keeps its hero locked for the
// rest of the turn. A lost hero abandons the whole lineage depending on it.
func (g *ExecuteChain) Execute(ctx context.Context, ex *Executor) Result {
	nodes := g.Path.Nodes
	logger := ex.Logger.With(zap.String("goal", g.String()))

	blocked := make(map[int]bool)
	abandoned := make(map[int]bool)
	var reason error

	block := func(index int) {
		for ; index >= 0 && !blocked[index]; index = nodes[index].ParentIndex {
			blocked[index] = true
		}
	}
	abandon := func(index int) {
		for ; index >= 0 && !abandoned[index]; index = nodes[index].ParentIndex {
			abandoned[index] = true
			blocked[index] = true
		}
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		if blocked[i] {
			if !abandoned[i] {
				ex.Hold(node.Hero, LockHeroChain)
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return Aborted(err)
		}

		hero, ok := ex.World.Hero(node.Hero)
		if !ok {
			logger.Info("hero lost, abandoning lineage", zap.Stringer("waypoint", node))
			abandon(i)
			reason = fmt.Errorf("hero %s: %w", node.HeroName, ErrActorLost)
			continue
		}

		err := g.executeNode(ctx, ex, node, hero)
		switch {
		case err == nil:
			logger.Debug("waypoint done", zap.Stringer("waypoint", node))
		case errors.Is(err, ErrActorLost):
			logger.Info("hero lost, abandoning lineage", zap.Stringer("waypoint", node), zap.Error(err))
			abandon(i)
			reason = err
		default:
			logger.Debug("waypoint failed", zap.Stringer("waypoint", node), zap.Error(err))
			ex.Hold(node.Hero, LockHeroChain)
			block(node.ParentIndex)
			blocked[i] = true
			if reason == nil {
				reason = err
			}
		}
	}

	if len(nodes) > 0 && blocked[0] {
		if reason == nil {
			reason = errNotReached
		}
		return Aborted(reason)
	}

	if g.Object != 0 {
		if _, ok := ex.World.Object(g.Object); ok {
			if err := ex.World.Interact(ctx, g.Path.TargetHero, g.Object); err != nil {
				if errors.Is(err, ErrActorLost) {
					return Aborted(err)
				}
				return Aborted(fmt.Errorf("failed to visit %s: %w", g.target, err))
			}
		}
	}
	return Completed()
}

func (g *ExecuteChain) executeNode(ctx context.Context, ex *Executor, node Waypoint, hero core.Hero) error {
	if node.Join != nil {
		return g.join(ctx, ex, node, hero)
	}

	if node.SpecialAction != nil && node.SpecialAction.Kind == ActionTownPortal {
		if hero.Pos == node.Coord {
			return nil
		}
		if err := node.SpecialAction.Resolve(ctx, ex.World, hero.ID); err != nil {
			return fmt.Errorf("failed to cast town portal: %w", err)
		}
		return nil
	}

	if hero.Pos != node.Coord {
		if hero.Movement == 0 {
			return fmt.Errorf("%s has no movement left: %w", hero.Name, errNotReached)
		}
		outcome, err := ex.World.MoveHero(ctx, hero.ID, node.Steps)
		if err != nil {
			return fmt.Errorf("failed to move %s: %w", hero.Name, err)
		}
		if outcome.Lost {
			return fmt.Errorf("%s lost a battle: %w", hero.Name, ErrActorLost)
		}
		if outcome.Reached != node.Coord {
			return fmt.Errorf("%s stopped at %s: %w", hero.Name, outcome.Reached, errNotReached)
		}
	}

	if node.SpecialAction != nil {
		if err := node.SpecialAction.Resolve(ctx, ex.World, hero.ID); err != nil {
			return fmt.Errorf("failed to %s: %w", node.SpecialAction, err)
		}
	}
	return nil
}

func (g *ExecuteChain) join(ctx context.Context, ex *Executor, node Waypoint, hero core.Hero) error {
	if hero.Pos != node.Coord {
		return fmt.Errorf("%s is not at %s: %w", hero.Name, node.Coord, errNotReached)
	}
	if node.Join.FromTown != 0 {
		if err := ex.World.TakeGarrison(ctx, hero.ID, node.Join.FromTown); err != nil {
			return fmt.Errorf("failed to take garrison: %w", err)
		}
		return nil
	}

	other, ok := ex.World.Hero(node.Join.FromHero)
	if !ok {
		return fmt.Errorf("hero %d: %w", node.Join.FromHero, ErrActorLost)
	}
	if other.Pos != node.Coord && !core.Adjacent(other.Pos, node.Coord) {
		return fmt.Errorf("%s did not arrive at %s: %w", other.Name, node.Coord, errNotReached)
	}
	if err := ex.World.ExchangeArmy(ctx, other.ID, hero.ID); err != nil {
		return fmt.Errorf("failed to exchange army: %w", err)
	}
	return nil
}
