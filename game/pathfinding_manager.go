package game

import (
	"go.uber.org/zap"

	"heroai-go/core"
)

// PathQuery is the read side of the planner used by behaviors and goal decomposition.
type PathQuery interface {
	World() core.WorldInterface
	GetPathsToTile(hero core.HeroID, tile core.Position) []Path
	GetPathsToObject(hero core.HeroID, object core.ObjectID) []Path
	IsTileReserved(hero core.HeroID, tile core.Position) bool
	EvaluateDanger(tile core.Position) uint64
	HowToVisitTile(hero core.HeroID, tile core.Position, allowGatherArmy bool) []Goal
	HowToVisitObject(hero core.HeroID, object core.ObjectID, allowGatherArmy bool) []Goal
	HeroRole(hero core.HeroID) HeroRole
	EnemyCanKillAlong(path *Path) bool
	Threat(tile core.Position) HitMapNode
	IsSafe(strength, danger uint64) bool
	SafeAttackRatio() float64
	GoldPressure() float64
	// ReservedGold is the gold already promised to pending buildings.
	ReservedGold() int
}

// PathfindingManager owns the path graph and the analyzers refreshed with it.
type PathfindingManager struct {
	world      core.WorldInterface
	pathfinder *Pathfinder
	hitMap     *DangerHitMap
	heroes     *HeroManager
	build      *BuildAnalyzer
	locks      *LockManager
	config     *core.Config
	logger     *zap.Logger
}

// NewPathfindingManager creates a new PathfindingManager.
func NewPathfindingManager(world core.WorldInterface, config *core.Config, locks *LockManager, logger *zap.Logger) *PathfindingManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PathfindingManager{
		world:      world,
		pathfinder: NewPathfinder(config.Pathfinding, config.Danger, logger.Named("pathfinder")),
		hitMap:     NewDangerHitMap(config.Danger, config.Pathfinding, logger.Named("dangermap")),
		heroes:     NewHeroManager(),
		build:      NewBuildAnalyzer(config.Priority.MaxGoldPressure),
		locks:      locks,
		config:     config,
		logger:     logger,
	}
}

// Update refreshes the analyzers and rebuilds the path graph from the current world state.
func (m *PathfindingManager) Update() SearchStats {
	heroes := m.world.Heroes()
	m.heroes.Update(heroes)
	m.hitMap.Update(m.world)
	m.build.Update(m.world)
	return m.pathfinder.UpdatePaths(m.world, heroes, m.config.Pathfinding.UseHeroChain)
}

// Pathfinder exposes the underlying search.
func (m *PathfindingManager) Pathfinder() *Pathfinder { return m.pathfinder }

func (m *PathfindingManager) World() core.WorldInterface { return m.world }

// GetPathsToTile returns the paths ending at tile; a non-zero hero restricts them to that hero.
func (m *PathfindingManager) GetPathsToTile(hero core.HeroID, tile core.Position) []Path {
	paths := m.pathfinder.GetPathInfo(tile)
	if hero == 0 {
		return paths
	}
	filtered := paths[:0]
	for _, path := range paths {
		if path.TargetHero == hero {
			filtered = append(filtered, path)
		}
	}
	return filtered
}

// GetPathsToObject returns the paths to the object's tile with the object's danger attached.
func (m *PathfindingManager) GetPathsToObject(hero core.HeroID, object core.ObjectID) []Path {
	obj, ok := m.world.Object(object)
	if !ok {
		return nil
	}
	paths := m.GetPathsToTile(hero, obj.Pos)
	danger := m.objectDanger(obj)
	for i := range paths {
		paths[i].TargetObjectDanger = danger
	}
	return paths
}

func (m *PathfindingManager) objectDanger(obj core.MapObject) uint64 {
	if obj.Owner == m.world.Player() {
		return 0
	}
	return obj.Guard
}

// IsTileReserved reports whether another hero has claimed tile this turn.
func (m *PathfindingManager) IsTileReserved(hero core.HeroID, tile core.Position) bool {
	return m.locks.IsReserved(hero, tile)
}

// EvaluateDanger is the danger of standing on tile: its guards, the object on
// it and any enemy hero occupying it.
func (m *PathfindingManager) EvaluateDanger(tile core.Position) uint64 {
	t, ok := m.world.Tile(tile)
	if !ok {
		return 0
	}
	danger := t.Guard
	if t.Object != 0 {
		if obj, ok := m.world.Object(t.Object); ok {
			danger += m.objectDanger(obj)
		}
	}
	for _, enemy := range m.world.EnemyHeroes() {
		if enemy.Pos == tile {
			danger += enemy.Army
		}
	}
	return danger
}

// HowToVisitTile returns the concrete goals reaching tile.
func (m *PathfindingManager) HowToVisitTile(hero core.HeroID, tile core.Position, allowGatherArmy bool) []Goal {
	return m.findPaths(tile, allowGatherArmy, hero, nil)
}

// HowToVisitObject returns the concrete goals visiting object.
func (m *PathfindingManager) HowToVisitObject(hero core.HeroID, object core.ObjectID, allowGatherArmy bool) []Goal {
	obj, ok := m.world.Object(object)
	if !ok {
		return nil
	}
	return m.findPaths(obj.Pos, allowGatherArmy, hero, &obj)
}

// findPaths turns every safe path into a chain goal, or into the goal that
// unblocks it. When none is safe it asks for the army the least dangerous
// path would need. Without a requested hero the strongest hero is the one
// to gather for if it reaches dest at all.
func (m *PathfindingManager) findPaths(dest core.Position, allowGatherArmy bool, hero core.HeroID, obj *core.MapObject) []Goal {
	var paths []Path
	if obj != nil {
		paths = m.GetPathsToObject(hero, obj.ID)
	} else {
		paths = m.GetPathsToTile(hero, dest)
	}

	var result []Goal
	var required, strongestRequired uint64
	var gatherHero core.HeroID
	strongest := m.heroes.Strongest()
	strongestReaches := false
	for i := range paths {
		path := &paths[i]
		if len(path.Nodes) == 0 {
			continue
		}
		if m.IsTileReserved(path.TargetHero, path.FirstTileToGet()) {
			continue
		}

		danger := path.TotalDanger()
		if m.IsSafe(path.HeroStrength(), danger) {
			var goal Goal
			if blocked := path.GetFirstBlockedAction(m.world); blocked != nil {
				goal = blocked.WhatToDo(path.TargetHero)
			} else {
				goal = NewExecuteChain(*path, obj)
			}
			if goal == nil || goal.Kind() == GoalInvalid {
				continue
			}
			result = append(result, goal)
			continue
		}

		if gatherHero == 0 || danger < required {
			required = danger
			gatherHero = path.TargetHero
		}
		if path.TargetHero == strongest && (!strongestReaches || danger < strongestRequired) {
			strongestReaches = true
			strongestRequired = danger
		}
	}

	if allowGatherArmy && len(result) == 0 && gatherHero != 0 {
		switch {
		case hero != 0:
			gatherHero = hero
		case strongestReaches:
			gatherHero = strongest
			required = strongestRequired
		}
		value := uint64(float64(required) * m.SafeAttackRatio())
		m.logger.Debug("no safe way, gathering army",
			zap.Stringer("target", dest), zap.Uint64("danger", required), zap.Uint64("value", value))
		result = append(result, NewGatherArmy(gatherHero, dest, value))
	}
	return result
}

// HeroRole returns the role of a hero.
func (m *PathfindingManager) HeroRole(hero core.HeroID) HeroRole { return m.heroes.Role(hero) }

// EnemyCanKillAlong reports whether an enemy hero can intercept the path's hero.
func (m *PathfindingManager) EnemyCanKillAlong(path *Path) bool {
	return m.hitMap.EnemyCanKillOurHeroesAlongThePath(path)
}

// Threat returns the enemy threats to tile.
func (m *PathfindingManager) Threat(tile core.Position) HitMapNode { return m.hitMap.At(tile) }

// IsSafe applies the configured safe attack ratio.
func (m *PathfindingManager) IsSafe(strength, danger uint64) bool {
	return IsSafeToVisit(strength, danger, m.config.Danger.SafeAttackRatio)
}

// SafeAttackRatio is how much stronger than a danger an army must be.
func (m *PathfindingManager) SafeAttackRatio() float64 { return m.config.Danger.SafeAttackRatio }

// GoldPressure returns the current gold pressure.
func (m *PathfindingManager) GoldPressure() float64 { return m.build.GoldPressure() }

func (m *PathfindingManager) ReservedGold() int { return m.build.PendingCost() }
