package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"heroai-go/core"
)

const corridor = `
name: corridor
rows:
  - "#######"
  - "#.....#"
  - "#######"
players:
  - {id: 1, name: red, gold: 3000, ai: true}
heroes:
  - {id: 1, name: Alice, owner: 1, pos: {x: 1, y: 1}, movement: 300, max_movement: 300, army: 100}
`

func newCorridor(t *testing.T) *World {
	s, err := ParseScenario([]byte(corridor))
	require.NoError(t, err)
	w, err := s.Build(zaptest.NewLogger(t))
	require.NoError(t, err)
	return w
}

func TestMoveHeroStopsWhenOutOfMovement(t *testing.T) {
	w := newCorridor(t)
	view := w.ForPlayer(1)
	route := []core.Position{{X: 2, Y: 1}, {X: 3, Y: 1}, {X: 4, Y: 1}, {X: 5, Y: 1}}

	outcome, err := view.MoveHero(context.Background(), 1, route)
	require.NoError(t, err)
	assert.Equal(t, core.Position{X: 4, Y: 1}, outcome.Reached)
	assert.False(t, outcome.Lost)

	hero, ok := view.Hero(1)
	require.True(t, ok)
	assert.Equal(t, 0, hero.Movement)

	w.NextDay()
	outcome, err = view.MoveHero(context.Background(), 1, []core.Position{{X: 5, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, core.Position{X: 5, Y: 1}, outcome.Reached)
}

func TestMoveHeroRejectsIllegalSteps(t *testing.T) {
	w := newCorridor(t)
	view := w.ForPlayer(1)

	_, err := view.MoveHero(context.Background(), 1, []core.Position{{X: 1, Y: 0}})
	assert.ErrorIs(t, err, ErrIllegalMove)

	_, err = view.MoveHero(context.Background(), 1, []core.Position{{X: 3, Y: 1}})
	assert.ErrorIs(t, err, ErrIllegalMove)

	_, err = w.ForPlayer(2).MoveHero(context.Background(), 1, []core.Position{{X: 2, Y: 1}})
	assert.ErrorIs(t, err, ErrUnknownHero)
}

func TestGuardedTile(t *testing.T) {
	w := newCorridor(t)
	require.NoError(t, w.SetGuard(core.Position{X: 2, Y: 1}, 50))
	view := w.ForPlayer(1)

	outcome, err := view.MoveHero(context.Background(), 1, []core.Position{{X: 2, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, core.Position{X: 2, Y: 1}, outcome.Reached)

	hero, _ := view.Hero(1)
	assert.Equal(t, uint64(100-core.BattleLoss(100, 50)), hero.Army)

	require.NoError(t, w.SetGuard(core.Position{X: 3, Y: 1}, 500))
	outcome, err = view.MoveHero(context.Background(), 1, []core.Position{{X: 3, Y: 1}})
	require.NoError(t, err)
	assert.True(t, outcome.Lost)
	_, ok := view.Hero(1)
	assert.False(t, ok)
}

func TestBorderGateNeedsKey(t *testing.T) {
	w := newCorridor(t)
	require.NoError(t, w.AddObject(core.MapObject{ID: 7, Kind: core.ObjectBorderGate, Pos: core.Position{X: 2, Y: 1}, KeyColor: "blue"}))
	view := w.ForPlayer(1)

	outcome, err := view.MoveHero(context.Background(), 1, []core.Position{{X: 2, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, core.Position{X: 1, Y: 1}, outcome.Reached)

	w.GiveKey(1, "blue")
	assert.True(t, view.HasKey("blue"))
	outcome, err = view.MoveHero(context.Background(), 1, []core.Position{{X: 2, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, core.Position{X: 2, Y: 1}, outcome.Reached)
	require.NoError(t, view.Interact(context.Background(), 1, 7))
}

func TestResourcePickupCompletesQuest(t *testing.T) {
	w := newCorridor(t)
	require.NoError(t, w.AddObject(core.MapObject{ID: 1, Kind: core.ObjectResource, Pos: core.Position{X: 2, Y: 1}, Value: 500}))
	require.NoError(t, w.AddObject(core.MapObject{ID: 2, Kind: core.ObjectQuestGuard, Pos: core.Position{X: 4, Y: 1}, Quest: 1}))
	view := w.ForPlayer(1)
	assert.False(t, view.QuestCompleted(2))

	_, err := view.MoveHero(context.Background(), 1, []core.Position{{X: 2, Y: 1}})
	require.NoError(t, err)
	assert.Equal(t, 3500, view.Gold())
	_, ok := view.Object(1)
	assert.False(t, ok)
	assert.True(t, view.QuestCompleted(2))
}

func TestTownActions(t *testing.T) {
	w := newCorridor(t)
	require.NoError(t, w.AddTown(core.Town{
		ID: 1, Name: "Keep", Owner: 1, Pos: core.Position{X: 2, Y: 1},
		GarrisonArmy: 40, Reinforcements: 60, ReinforcementsCost: 1000,
		CanRecruit: true, RecruitCost: 1500,
	}))
	view := w.ForPlayer(1)
	ctx := context.Background()

	_, err := view.MoveHero(ctx, 1, []core.Position{{X: 2, Y: 1}})
	require.NoError(t, err)
	town, _ := view.Town(1)
	assert.Equal(t, core.HeroID(1), town.VisitingHero)

	require.NoError(t, view.TakeGarrison(ctx, 1, 1))
	require.NoError(t, view.Purchase(ctx, 1, 1))
	hero, _ := view.Hero(1)
	assert.Equal(t, uint64(200), hero.Army)
	assert.Equal(t, 2000, view.Gold())

	_, err = view.RecruitHero(ctx, 1)
	assert.ErrorIs(t, err, ErrNotAllowed, "gate is occupied")

	require.NoError(t, view.SwapGarrison(ctx, 1))
	town, _ = view.Town(1)
	assert.Equal(t, core.HeroID(1), town.GarrisonHero)
	assert.Zero(t, town.VisitingHero)

	id, err := view.RecruitHero(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 500, view.Gold())
	recruit, ok := view.Hero(id)
	require.True(t, ok)
	assert.Equal(t, town.Pos, recruit.Pos)
}

func TestExchangeArmy(t *testing.T) {
	w := newCorridor(t)
	_, err := w.AddHero(core.Hero{ID: 2, Name: "Bob", Owner: 1, Pos: core.Position{X: 2, Y: 1}, Movement: 300, MaxMovement: 300, Army: 50})
	require.NoError(t, err)
	view := w.ForPlayer(1)

	require.NoError(t, view.ExchangeArmy(context.Background(), 2, 1))
	alice, _ := view.Hero(1)
	bob, _ := view.Hero(2)
	assert.Equal(t, uint64(150), alice.Army)
	assert.Zero(t, bob.Army)
}

func TestEnemyHeroesAreSeparated(t *testing.T) {
	w := newCorridor(t)
	_, err := w.AddHero(core.Hero{ID: 9, Name: "Mordred", Owner: 2, Pos: core.Position{X: 5, Y: 1}, Army: 80})
	require.NoError(t, err)

	assert.Len(t, w.ForPlayer(1).Heroes(), 1)
	enemies := w.ForPlayer(1).EnemyHeroes()
	require.Len(t, enemies, 1)
	assert.Equal(t, core.HeroID(9), enemies[0].ID)
	_, ok := w.ForPlayer(1).Hero(9)
	assert.False(t, ok)
}
