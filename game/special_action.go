package game

import (
	"context"
	"fmt"

	"heroai-go/core"
)

// SpecialActionKind enumerates the actions a node may require.
type SpecialActionKind uint8

const (
	// ActionOpenGate passes a border gate; it needs the gate's key.
	ActionOpenGate SpecialActionKind = iota
	// ActionCompleteQuest passes a quest guard once its quest is done.
	ActionCompleteQuest
	// ActionTownPortal reaches the node by casting town portal.
	ActionTownPortal
)

// SpecialAction is attached to a node that cannot be reached or passed by walking alone.
type SpecialAction struct {
	Kind     SpecialActionKind
	Object   core.ObjectID
	KeyColor string
	Quest    core.ObjectID
	Town     core.TownID
}

func (a *SpecialAction) String() string {
	switch a.Kind {
	case ActionOpenGate:
		return fmt.Sprintf("open %s gate", a.KeyColor)
	case ActionCompleteQuest:
		return fmt.Sprintf("complete quest of guard %d", a.Object)
	case ActionTownPortal:
		return fmt.Sprintf("town portal to %d", a.Town)
	}
	return "unknown action"
}

// CanAct reports whether the action can be resolved right now.
func (a *SpecialAction) CanAct(world core.WorldInterface, hero core.HeroID) bool {
	switch a.Kind {
	case ActionOpenGate:
		return world.HasKey(a.KeyColor)
	case ActionCompleteQuest:
		return world.QuestCompleted(a.Object)
	case ActionTownPortal:
		return true
	}
	return false
}

// WhatToDo returns the goal that would unblock the action for hero. Gates
// have no such goal: keys are out of reach of the planner.
func (a *SpecialAction) WhatToDo(hero core.HeroID) Goal {
	switch a.Kind {
	case ActionCompleteQuest:
		return NewVisitObject(hero, a.Quest)
	case ActionOpenGate:
		return NewInvalid(fmt.Sprintf("no %s key", a.KeyColor))
	}
	return nil
}

// Resolve performs the action with the rule engine.
func (a *SpecialAction) Resolve(ctx context.Context, world core.WorldInterface, hero core.HeroID) error {
	if !a.CanAct(world, hero) {
		return fmt.Errorf("%s: %w", a, ErrBlocked)
	}
	switch a.Kind {
	case ActionOpenGate, ActionCompleteQuest:
		return world.Interact(ctx, hero, a.Object)
	case ActionTownPortal:
		return world.CastTownPortal(ctx, hero, a.Town)
	}
	return fmt.Errorf("unsupported action %d: %w", a.Kind, ErrInvalidConfiguration)
}
