package game

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"heroai-go/core"
	"heroai-go/sim"
)

func buildWorld(t *testing.T, doc string) *sim.World {
	t.Helper()
	s, err := sim.ParseScenario([]byte(doc))
	require.NoError(t, err)
	w, err := s.Build(zaptest.NewLogger(t))
	require.NoError(t, err)
	return w
}

func updatedPathfinder(t *testing.T, world core.WorldInterface, cfg *core.Config) *Pathfinder {
	t.Helper()
	pf := NewPathfinder(cfg.Pathfinding, cfg.Danger, zaptest.NewLogger(t))
	pf.UpdatePaths(world, world.Heroes(), cfg.Pathfinding.UseHeroChain)
	return pf
}

func pathsFor(paths []Path, hero core.HeroID) []Path {
	var result []Path
	for _, p := range paths {
		if p.TargetHero == hero {
			result = append(result, p)
		}
	}
	return result
}

// corridorWorld is a walled corridor of unit cost tiles (100 points each)
// with a hero that has a budget of three tiles per turn.
const corridorWorld = `
name: corridor
rows:
  - "#########"
  - "#.......#"
  - "#########"
players:
  - {id: 1, name: red, gold: 1000, ai: true}
heroes:
  - {id: 1, name: Alice, owner: 1, pos: {x: 1, y: 1}, movement: 300, max_movement: 300, army: 100}
`

// exchangeWorld has a slow strong hero A and a fast weak hero B; the
// treasure behind the guard needs more than B's army.
const exchangeWorld = `
name: exchange
rows:
  - "#########"
  - "#.......#"
  - "#########"
players:
  - {id: 1, name: red, gold: 0, ai: true}
heroes:
  - {id: 1, name: Anna, owner: 1, pos: {x: 1, y: 1}, movement: 900, max_movement: 900, army: 100}
  - {id: 2, name: Bert, owner: 1, pos: {x: 4, y: 1}, movement: 1000, max_movement: 1000, army: 10}
guards:
  - {pos: {x: 5, y: 1}, strength: 50}
objects:
  - {id: 1, kind: resource, name: gold pile, pos: {x: 6, y: 1}, value: 1000}
`

// bankWorld has a creature bank too strong for the only hero.
const bankWorld = `
name: bank
rows:
  - "#######"
  - "#.....#"
  - "#######"
players:
  - {id: 1, name: red, gold: 0, ai: true}
heroes:
  - {id: 1, name: Alice, owner: 1, pos: {x: 1, y: 1}, movement: 1000, max_movement: 1000, army: 300}
objects:
  - {id: 1, kind: creature_bank, name: crypt, pos: {x: 4, y: 1}, guard: 500, value: 3000}
`
