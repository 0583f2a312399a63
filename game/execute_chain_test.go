package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"heroai-go/core"
	"heroai-go/sim"
)

func corridorChain(t *testing.T, world *sim.World, tile core.Position) *ExecuteChain {
	t.Helper()
	view := world.ForPlayer(1)
	pf := updatedPathfinder(t, view, core.DefaultConfig())
	paths := pf.GetPathInfo(tile)
	require.Len(t, paths, 1)
	return NewExecuteChain(paths[0], nil)
}

func TestExecuteChain_Execute(t *testing.T) {
	world := buildWorld(t, corridorWorld)
	view := world.ForPlayer(1)
	chain := corridorChain(t, world, core.Position{X: 4, Y: 1})
	locks := NewLockManager()
	ex := NewExecutor(view, locks, zaptest.NewLogger(t))

	result := chain.Execute(context.Background(), ex)
	require.True(t, result.Ok(), result.String())

	hero, ok := view.Hero(1)
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 4, Y: 1}, hero.Pos)
	assert.Equal(t, 0, hero.Movement)
	assert.False(t, ex.Held(1))
}

func TestExecuteChain_StopsAtTurnBoundary(t *testing.T) {
	world := buildWorld(t, corridorWorld)
	view := world.ForPlayer(1)
	chain := corridorChain(t, world, core.Position{X: 6, Y: 1})
	locks := NewLockManager()
	ex := NewExecutor(view, locks, zaptest.NewLogger(t))

	result := chain.Execute(context.Background(), ex)
	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.ErrorIs(t, result.Reason, errNotReached)
	assert.True(t, ex.Held(1))
	assert.Equal(t, LockHeroChain, locks.Reason(1))

	hero, _ := view.Hero(1)
	assert.Equal(t, core.Position{X: 4, Y: 1}, hero.Pos, "the first waypoint is still walked")
}

func TestExecuteChain_HeroLost(t *testing.T) {
	world := buildWorld(t, corridorWorld)
	view := world.ForPlayer(1)
	chain := corridorChain(t, world, core.Position{X: 6, Y: 1})
	require.NoError(t, world.SetGuard(core.Position{X: 3, Y: 1}, 10000))

	locks := NewLockManager()
	ex := NewExecutor(view, locks, zaptest.NewLogger(t))
	result := chain.Execute(context.Background(), ex)

	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.ErrorIs(t, result.Reason, ErrActorLost)
	assert.False(t, ex.Held(1), "a lost hero is released")
	assert.False(t, locks.IsLocked(1))
	_, ok := view.Hero(1)
	assert.False(t, ok)
}

func TestExecuteChain_ContributorLost(t *testing.T) {
	world := buildWorld(t, exchangeWorld)
	view := world.ForPlayer(1)
	pf := updatedPathfinder(t, view, core.DefaultConfig())

	var chained *Path
	for _, p := range pathsFor(pf.GetPathInfo(core.Position{X: 6, Y: 1}), 2) {
		if p.ExchangeCount > 0 && (chained == nil || p.MovementCost() < chained.MovementCost()) {
			chained = &p
		}
	}
	require.NotNil(t, chained)
	require.Equal(t, core.HeroID(1), chained.FirstNode().Hero, "Anna walks to the meeting first")

	// Anna dies on her way to Bert
	require.NoError(t, world.SetGuard(core.Position{X: 2, Y: 1}, 10000))

	locks := NewLockManager()
	ex := NewExecutor(view, locks, zaptest.NewLogger(t))
	result := NewExecuteChain(*chained, nil).Execute(context.Background(), ex)

	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.ErrorIs(t, result.Reason, ErrActorLost)
	for _, hero := range []core.HeroID{1, 2} {
		assert.False(t, ex.Held(hero), "hero %d", hero)
		assert.False(t, locks.IsLocked(hero), "hero %d", hero)
	}
	_, ok := view.Hero(1)
	assert.False(t, ok)
	bert, ok := view.Hero(2)
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 4, Y: 1}, bert.Pos, "Bert never leaves for the target")
	assert.Equal(t, uint64(10), bert.Army)
}

func TestExecuteChain_IllegalStepHoldsHero(t *testing.T) {
	world := buildWorld(t, corridorWorld)
	view := world.ForPlayer(1)
	chain := corridorChain(t, world, core.Position{X: 3, Y: 1})
	require.NoError(t, world.SetTile(core.Position{X: 2, Y: 1}, core.Tile{Terrain: core.TerrainRock}))

	locks := NewLockManager()
	ex := NewExecutor(view, locks, zaptest.NewLogger(t))
	result := chain.Execute(context.Background(), ex)

	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.ErrorIs(t, result.Reason, sim.ErrIllegalMove)
	assert.True(t, ex.Held(1))
}

func TestExecuteChain_VisitsObject(t *testing.T) {
	world := buildWorld(t, `
name: mine
rows:
  - "#####"
  - "#...#"
  - "#####"
players:
  - {id: 1, name: red, ai: true}
heroes:
  - {id: 1, name: Alice, owner: 1, pos: {x: 1, y: 1}, movement: 1000, max_movement: 1000, army: 100}
objects:
  - {id: 1, kind: mine, name: ore pit, pos: {x: 3, y: 1}, guard: 20}
`)
	view := world.ForPlayer(1)
	m := NewPathfindingManager(view, core.DefaultConfig(), NewLockManager(), zaptest.NewLogger(t))
	m.Update()

	goals := m.HowToVisitObject(1, 1, false)
	require.Len(t, goals, 1)
	result := goals[0].Execute(context.Background(), NewExecutor(view, NewLockManager(), zaptest.NewLogger(t)))
	require.True(t, result.Ok(), result.String())

	mine, ok := view.Object(1)
	require.True(t, ok)
	assert.Equal(t, core.PlayerID(1), mine.Owner)
	assert.Zero(t, mine.Guard)
}

func TestSwapGarrison_Execute(t *testing.T) {
	doc := `
name: garrison
rows:
  - "#####"
  - "#...#"
  - "#####"
players:
  - {id: 1, name: red, ai: true}
towns:
  - {id: 1, name: Castle, owner: 1, pos: {x: 2, y: 1}}
heroes:
  - {id: 1, name: Alice, owner: 1, pos: {x: 2, y: 1}, movement: 1000, max_movement: 1000, army: 100}
  - {id: 2, name: Bob, owner: 1, pos: {x: 1, y: 1}, movement: 1000, max_movement: 1000, army: 100}
`
	ctx := context.Background()

	t.Run("extract without garrison hero", func(t *testing.T) {
		view := buildWorld(t, doc).ForPlayer(1)
		ex := NewExecutor(view, NewLockManager(), zaptest.NewLogger(t))
		result := NewSwapGarrison(1, 0).Execute(ctx, ex)
		assert.ErrorIs(t, result.Reason, ErrInvalidConfiguration)
	})

	t.Run("hero not at the gate", func(t *testing.T) {
		view := buildWorld(t, doc).ForPlayer(1)
		ex := NewExecutor(view, NewLockManager(), zaptest.NewLogger(t))
		result := NewSwapGarrison(1, 2).Execute(ctx, ex)
		assert.ErrorIs(t, result.Reason, ErrInvalidConfiguration)
	})

	t.Run("put in and take out", func(t *testing.T) {
		view := buildWorld(t, doc).ForPlayer(1)
		locks := NewLockManager()
		ex := NewExecutor(view, locks, zaptest.NewLogger(t))

		result := NewSwapGarrison(1, 1).Execute(ctx, ex)
		require.True(t, result.Ok(), result.String())
		town, _ := view.Town(1)
		assert.Equal(t, core.HeroID(1), town.GarrisonHero)
		assert.Zero(t, town.VisitingHero)
		assert.True(t, ex.Held(1))
		assert.Equal(t, LockDefence, locks.Reason(1))

		result = NewSwapGarrison(1, 0).Execute(ctx, NewExecutor(view, locks, zaptest.NewLogger(t)))
		require.True(t, result.Ok(), result.String())
		town, _ = view.Town(1)
		assert.Zero(t, town.GarrisonHero)
		assert.Equal(t, core.HeroID(1), town.VisitingHero)
		assert.False(t, locks.IsLocked(1))
	})
}

func TestComposite_Execute(t *testing.T) {
	world := buildWorld(t, `
name: shop
rows:
  - "#####"
  - "#...#"
  - "#####"
players:
  - {id: 1, name: red, gold: 1500, ai: true}
towns:
  - {id: 1, name: Castle, owner: 1, pos: {x: 3, y: 1}, reinforcements: 200, reinforcements_cost: 1000}
heroes:
  - {id: 1, name: Alice, owner: 1, pos: {x: 1, y: 1}, movement: 1000, max_movement: 1000, army: 100}
`)
	view := world.ForPlayer(1)
	chain := corridorChain(t, world, core.Position{X: 3, Y: 1})
	town, _ := view.Town(1)
	goal := NewComposite(chain, NewBuyArmy(town, 1))

	assert.Equal(t, []core.HeroID{1}, goal.Heroes())
	assert.Equal(t, 200.0, goal.Evaluation().Reward)
	assert.Equal(t, 1000, goal.Evaluation().GoldCost)
	assert.Equal(t, 200.0, goal.Evaluation().MovementCost)

	result := goal.Execute(context.Background(), NewExecutor(view, NewLockManager(), zaptest.NewLogger(t)))
	require.True(t, result.Ok(), result.String())
	hero, _ := view.Hero(1)
	assert.Equal(t, uint64(300), hero.Army)
	assert.Equal(t, 500, view.Gold())

	failed := NewComposite(NewInvalid("nope"), NewBuyArmy(town, 1))
	result = failed.Execute(context.Background(), NewExecutor(view, NewLockManager(), zaptest.NewLogger(t)))
	assert.EqualError(t, result.Reason, "nope")
}

func TestRecruitHero_Execute(t *testing.T) {
	world := buildWorld(t, `
name: tavern
rows:
  - "#####"
  - "#...#"
  - "#####"
players:
  - {id: 1, name: red, gold: 3000, ai: true}
towns:
  - {id: 1, name: Castle, owner: 1, pos: {x: 2, y: 1}, can_recruit: true, recruit_cost: 2500}
`)
	view := world.ForPlayer(1)
	town, ok := view.Town(1)
	require.True(t, ok)
	goal := NewRecruitHero(town)
	assert.Equal(t, 2500, goal.Evaluation().GoldCost)
	assert.Empty(t, goal.Heroes())

	ex := NewExecutor(view, NewLockManager(), zaptest.NewLogger(t))
	result := goal.Execute(context.Background(), ex)
	require.True(t, result.Ok(), result.String())
	assert.Equal(t, 500, view.Gold())

	heroes := view.Heroes()
	require.Len(t, heroes, 1)
	assert.Equal(t, town.Pos, heroes[0].Pos)
	town, _ = view.Town(1)
	assert.Equal(t, heroes[0].ID, town.VisitingHero)

	result = goal.Execute(context.Background(), ex)
	assert.False(t, result.Ok())
	assert.ErrorIs(t, result.Reason, sim.ErrNotAllowed)
	assert.Equal(t, 500, view.Gold())
}
