package game

import (
	"heroai-go/core"
)

// CalculateNeighbours enumerates the candidate nodes reachable in one step from source.
// Out-of-bounds and impassable tiles are filtered out here.
func (s *NodeStorage) CalculateNeighbours(source NodeRef) []PathNode {
	src := s.Get(source)
	if src == nil || src.Terminal || !src.Actor.Movable() {
		return nil
	}

	var result []PathNode
	for _, d := range core.Directions {
		pos := src.Coord.Add(d[0], d[1])
		tile, ok := s.world.tile(pos)
		if !ok || !tile.Passable() {
			continue
		}
		for _, layer := range s.destinationLayers(src, pos, tile) {
			cost := core.StepCost(src.Coord, pos, tile, s.config.DiagonalCost)
			node, ok := s.advance(src, pos, layer, cost)
			if !ok {
				continue
			}
			s.applyDestination(&node, tile)
			result = append(result, node)
		}
	}
	return result
}

// destinationLayers returns the layers the actor may occupy at pos when
// stepping from src. Boarding needs a boat, leaving the water is always allowed.
func (s *NodeStorage) destinationLayers(src *PathNode, pos core.Position, tile core.Tile) []core.Layer {
	actor := src.Actor
	water := tile.IsWater()

	switch src.Layer {
	case core.LayerSail:
		if water {
			return []core.Layer{core.LayerSail}
		}
		return []core.Layer{core.LayerLand}
	case core.LayerAir:
		if water {
			return []core.Layer{core.LayerAir}
		}
		return []core.Layer{core.LayerLand}
	}

	if !water {
		return []core.Layer{core.LayerLand}
	}
	var layers []core.Layer
	if obj, ok := s.world.object(pos); ok && obj.Kind == core.ObjectBoat {
		layers = append(layers, core.LayerSail)
	}
	if actor.WaterWalking {
		layers = append(layers, core.LayerLand)
	}
	if actor.Flying {
		layers = append(layers, core.LayerAir)
	}
	return layers
}

// advance builds the node reached from src by paying cost. Running out of
// movement ends the turn: the unspent points count as cost and the actor
// continues with a fresh budget.
func (s *NodeStorage) advance(src *PathNode, pos core.Position, layer core.Layer, cost int) (PathNode, bool) {
	actor := src.Actor
	budget := actor.Budget(layer)
	turns := src.Turns
	spent := float64(cost)

	left, ok := core.Spend(src.MovementLeft, budget, cost)
	if !ok {
		spent += float64(src.MovementLeft)
		turns++
		left, ok = core.Spend(budget, budget, cost)
		if !ok {
			return PathNode{}, false
		}
	}
	if turns > s.config.MaxTurns {
		return PathNode{}, false
	}

	return PathNode{
		Coord:        pos,
		Layer:        layer,
		Actor:        actor,
		Cost:         src.Cost + spent,
		Turns:        turns,
		MovementLeft: left,
		Danger:       src.Danger,
		ArmyLoss:     src.ArmyLoss,
		ManaCost:     src.ManaCost,
		ChainOther:   NoNode,
	}, true
}

// applyDestination accounts for what stands on the destination tile: guards,
// enemy heroes and objects that stop movement or need a special action.
func (s *NodeStorage) applyDestination(node *PathNode, tile core.Tile) {
	if enemy, ok := s.world.enemies[node.Coord]; ok {
		node.Danger += enemy.Army
		node.Terminal = true
		return
	}
	if tile.Guard > 0 {
		s.fight(node, tile.Guard)
	}

	obj, ok := s.world.object(node.Coord)
	if !ok {
		return
	}
	switch obj.Kind {
	case core.ObjectResource, core.ObjectArtifact, core.ObjectTeleporter, core.ObjectBoat:
	case core.ObjectBorderGate:
		node.SpecialAction = &SpecialAction{Kind: ActionOpenGate, Object: obj.ID, KeyColor: obj.KeyColor}
		if !node.SpecialAction.CanAct(s.world.world, node.Actor.Hero) {
			node.Terminal = true
		}
	case core.ObjectQuestGuard:
		node.SpecialAction = &SpecialAction{Kind: ActionCompleteQuest, Object: obj.ID, Quest: obj.Quest}
		if !node.SpecialAction.CanAct(s.world.world, node.Actor.Hero) {
			node.Terminal = true
		}
	default:
		node.Terminal = true
	}
}

// fight adds a guard to the node. A node that cannot beat the guard, or would
// lose more than the acceptable share of its army doing so, is terminal.
func (s *NodeStorage) fight(node *PathNode, guard uint64) {
	remaining := node.RemainingArmy()
	node.Danger += guard
	if !core.CanBeat(remaining, guard) {
		node.Terminal = true
		return
	}
	loss := core.BattleLoss(remaining, guard)
	if float64(loss) > float64(remaining)*s.danger.MaxLossRatio {
		node.Terminal = true
		return
	}
	node.ArmyLoss += loss
}

// CalculateTeleportations connects source to non-adjacent tiles: teleporters on
// the same channel and, for actors knowing the spell, owned towns by town portal.
func (s *NodeStorage) CalculateTeleportations(source NodeRef) []PathNode {
	src := s.Get(source)
	if src == nil || src.Terminal || !src.Actor.Movable() || src.Layer != core.LayerLand {
		return nil
	}

	var result []PathNode
	if obj, ok := s.world.object(src.Coord); ok && obj.Kind == core.ObjectTeleporter {
		for _, exit := range s.world.teleporters[obj.Channel] {
			if exit == src.Coord {
				continue
			}
			tile, ok := s.world.tile(exit)
			if !ok || !tile.Passable() {
				continue
			}
			node, ok := s.advance(src, exit, core.LayerLand, s.config.TeleportMovement)
			if !ok {
				continue
			}
			s.applyDestination(&node, tile)
			result = append(result, node)
		}
	}

	result = append(result, s.townPortals(src)...)
	return result
}

func (s *NodeStorage) townPortals(src *PathNode) []PathNode {
	actor := src.Actor
	manaCost := s.config.TownPortalMana
	if !actor.TownPortal || actor.Mana-src.ManaCost < manaCost {
		return nil
	}

	var result []PathNode
	for _, town := range s.world.towns {
		if town.Pos == src.Coord {
			continue
		}
		if town.VisitingHero != 0 && town.VisitingHero != actor.Hero {
			continue
		}
		tile, ok := s.world.tile(town.Pos)
		if !ok || !tile.Passable() {
			continue
		}
		node, ok := s.advance(src, town.Pos, core.LayerLand, s.config.TownPortalMovement)
		if !ok {
			continue
		}
		node.ManaCost += manaCost
		node.SpecialAction = &SpecialAction{Kind: ActionTownPortal, Town: town.ID}
		s.applyDestination(&node, tile)
		result = append(result, node)
	}
	return result
}
