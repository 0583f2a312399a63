package game

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"heroai-go/core"
)

// fieldPairWorld is an open 5x2 field with two fast heroes on different rows.
const fieldPairWorld = `
name: pair
rows:
  - "#######"
  - "#.....#"
  - "#.....#"
  - "#######"
players:
  - {id: 1, name: red, ai: true}
heroes:
  - {id: 1, name: Anna, owner: 1, pos: {x: 1, y: 1}, movement: 1000, max_movement: 1000, army: 100}
  - {id: 2, name: Bert, owner: 1, pos: {x: 1, y: 2}, movement: 1000, max_movement: 1000, army: 10}
`

// crowdedWorld has three heroes and a weak guard on an open map.
const crowdedWorld = `
name: crowded
rows:
  - "......."
  - "......."
  - "......."
  - "......."
players:
  - {id: 1, name: red, ai: true}
heroes:
  - {id: 1, name: Anna, owner: 1, pos: {x: 1, y: 1}, movement: 300, max_movement: 300, army: 100}
  - {id: 2, name: Bert, owner: 1, pos: {x: 5, y: 1}, movement: 500, max_movement: 500, army: 10}
  - {id: 3, name: Cleo, owner: 1, pos: {x: 3, y: 2}, movement: 400, max_movement: 400, army: 40}
guards:
  - {pos: {x: 4, y: 3}, strength: 5}
`

func newStorage(t *testing.T, world core.WorldInterface, cfg *core.Config) *NodeStorage {
	t.Helper()
	s := NewNodeStorage(cfg.Pathfinding, cfg.Danger, zaptest.NewLogger(t))
	s.Initialize(newActorSet(world.Heroes(), nil), newWorldCache(world))
	return s
}

func seedOf(t *testing.T, s *NodeStorage, seeds []NodeRef, hero core.HeroID) NodeRef {
	t.Helper()
	for _, ref := range seeds {
		if s.Get(ref).Actor.Hero == hero {
			return ref
		}
	}
	t.Fatalf("no seed for hero %d", hero)
	return NoNode
}

// step commits the land neighbour of from at to and returns its ref.
func step(t *testing.T, s *NodeStorage, from NodeRef, to core.Position) (NodeRef, bool) {
	t.Helper()
	for _, candidate := range s.CalculateNeighbours(from) {
		if candidate.Coord == to && candidate.Layer == core.LayerLand {
			return s.Commit(candidate, from)
		}
	}
	t.Fatalf("%s is not a neighbour", to)
	return NoNode, false
}

func TestNodeStorage_SlotBudget(t *testing.T) {
	world := buildWorld(t, crowdedWorld).ForPlayer(1)
	tests := []struct {
		name         string
		slotsPerHero int
		maxSlots     int
		want         int
	}{
		{"per hero", 2, 40, 6},
		{"capped", 5, 8, 8},
		{"single slot", 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := core.DefaultConfig()
			cfg.Pathfinding.SlotsPerHero = tt.slotsPerHero
			cfg.Pathfinding.MaxSlots = tt.maxSlots
			require.NoError(t, cfg.Validate())

			s := newStorage(t, world, cfg)
			assert.Equal(t, tt.want, s.Slots())
		})
	}
}

func TestNodeStorage_EvictsOldestWhenFull(t *testing.T) {
	world := buildWorld(t, fieldPairWorld).ForPlayer(1)
	cfg := core.DefaultConfig()
	cfg.Pathfinding.SlotsPerHero = 1
	cfg.Pathfinding.MaxSlots = 1
	s := newStorage(t, world, cfg)
	require.Equal(t, 1, s.Slots())

	seeds := s.InitialNodes()
	require.Len(t, seeds, 2)
	anna, bert := seedOf(t, s, seeds, 1), seedOf(t, s, seeds, 2)

	a1, ok := step(t, s, anna, core.Position{X: 2, Y: 1})
	require.True(t, ok)
	a2, ok := step(t, s, a1, core.Position{X: 3, Y: 1})
	require.True(t, ok)
	a3, ok := step(t, s, a2, core.Position{X: 4, Y: 1})
	require.True(t, ok)

	// Bert takes the only slot at (2,1); Anna's node there is the oldest
	b1, ok := step(t, s, bert, core.Position{X: 2, Y: 1})
	require.True(t, ok)
	assert.Equal(t, core.HeroID(2), s.Get(b1).Actor.Hero)
	assert.Nil(t, s.Get(a1))

	// every successor of the evicted node is gone, not only the direct child
	assert.Empty(t, s.NodesAt(core.Position{X: 3, Y: 1}, core.LayerLand))
	assert.Empty(t, s.NodesAt(core.Position{X: 4, Y: 1}, core.LayerLand))

	// a seed is never evicted, the candidate is dropped instead
	_, ok = step(t, s, bert, core.Position{X: 1, Y: 1})
	assert.False(t, ok)
	assert.Equal(t, []NodeRef{anna}, s.NodesAt(core.Position{X: 1, Y: 1}, core.LayerLand))

	// reusing the orphaned slot at (3,1) must not revive its old child at (4,1)
	p, ok := step(t, s, anna, core.Position{X: 2, Y: 2})
	require.True(t, ok)
	fresh, ok := step(t, s, p, core.Position{X: 3, Y: 1})
	require.True(t, ok)
	assert.Equal(t, a2.Index, fresh.Index)
	assert.NotEqual(t, a2.Version, fresh.Version)
	assert.Nil(t, s.Get(a2))
	assert.Empty(t, s.NodesAt(core.Position{X: 4, Y: 1}, core.LayerLand))
	assert.Equal(t, s.Get(a3).Previous, a2, "the old child still points at the old version")
}

func TestNodeStorage_CommitNeedsLiveParents(t *testing.T) {
	world := buildWorld(t, fieldPairWorld).ForPlayer(1)
	cfg := core.DefaultConfig()
	cfg.Pathfinding.SlotsPerHero = 1
	cfg.Pathfinding.MaxSlots = 1
	s := newStorage(t, world, cfg)
	seeds := s.InitialNodes()
	anna, bert := seedOf(t, s, seeds, 1), seedOf(t, s, seeds, 2)

	a1, ok := step(t, s, anna, core.Position{X: 2, Y: 1})
	require.True(t, ok)
	candidates := s.CalculateNeighbours(a1)
	require.NotEmpty(t, candidates)

	_, ok = step(t, s, bert, core.Position{X: 2, Y: 1})
	require.True(t, ok)

	for _, candidate := range candidates {
		_, ok := s.Commit(candidate, a1)
		assert.False(t, ok, "candidate from an evicted node at %s", candidate.Coord)
	}
}

// walkTerminates follows predecessor links from every stored node and fails
// on a node visited twice.
func walkTerminates(t *testing.T, s *NodeStorage) {
	t.Helper()
	for i := range s.nodes {
		if !s.nodes[i].used {
			continue
		}
		seen := make(map[int32]bool)
		ref := s.ref(i)
		for node := s.Get(ref); node != nil && !node.seed; node = s.Get(ref) {
			if seen[ref.Index] {
				t.Fatalf("predecessor links loop from node %d at %s (%s)", i, s.nodes[i].Coord, s.nodes[i].Actor)
			}
			seen[ref.Index] = true
			ref = node.Previous
		}
	}
}

func TestNodeStorage_PredecessorWalksTerminate(t *testing.T) {
	world := buildWorld(t, crowdedWorld).ForPlayer(1)
	rng := rand.New(rand.NewPCG(7, 42))

	configs := [][2]int{{1, 1}, {1, 2}, {2, 2}}
	for range 20 {
		perHero := 1 + rng.IntN(3)
		configs = append(configs, [2]int{perHero, perHero + rng.IntN(4)})
	}

	width, height, _ := world.Size()
	for _, c := range configs {
		cfg := core.DefaultConfig()
		cfg.Pathfinding.SlotsPerHero = c[0]
		cfg.Pathfinding.MaxSlots = c[1]
		require.NoError(t, cfg.Validate())

		pf := NewPathfinder(cfg.Pathfinding, cfg.Danger, zaptest.NewLogger(t))
		pf.UpdatePaths(world, world.Heroes(), true)
		walkTerminates(t, pf.Storage())

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				for _, path := range pf.GetPathInfo(core.Position{X: x, Y: y}) {
					require.NotEmpty(t, path.Nodes)
					for i, wp := range path.Nodes {
						assert.Less(t, wp.ParentIndex, i, "slots %v: waypoint parents come first", c)
					}
				}
			}
		}
	}
}

// meetWorld is a corridor where Anna, with a movement of %d, walks to Bert.
const meetWorld = `
name: meet
rows:
  - "#########"
  - "#.......#"
  - "#########"
players:
  - {id: 1, name: red, ai: true}
heroes:
  - {id: 1, name: Anna, owner: 1, pos: {x: 1, y: 1}, movement: %d, max_movement: %[1]d, army: 100}
  - {id: 2, name: Bert, owner: 1, pos: {x: 4, y: 1}, movement: 1000, max_movement: 1000, army: 10}
`

func TestNodeStorage_ExchangeCost(t *testing.T) {
	tests := []struct {
		name        string
		annaMove    int
		wantCost    float64
		wantTurns   int
		wantMoveOut int
	}{
		// Anna arrives at Bert's start on the same turn: Bert does not wait
		{"same turn", 900, 0.3, 0, 1000},
		// Anna arrives a turn later: Bert's unspent turn counts
		{"next turn", 200, 1000.3, 1, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			world := buildWorld(t, fmt.Sprintf(meetWorld, tt.annaMove)).ForPlayer(1)
			cfg := core.DefaultConfig()
			cfg.Pathfinding.UseHeroChain = false
			pf := updatedPathfinder(t, world, cfg)
			s := pf.Storage()

			var carrier, other NodeRef
			for _, ref := range s.NodesAt(core.Position{X: 4, Y: 1}, core.LayerLand) {
				switch s.Get(ref).Actor.Hero {
				case 1:
					other = ref
				case 2:
					carrier = ref
				}
			}
			require.True(t, carrier.Valid())
			require.True(t, other.Valid())
			require.Equal(t, tt.wantTurns, s.Get(other).Turns)

			candidate := s.calculateExchange(carrier, other)
			assert.InDelta(t, tt.wantCost, candidate.Node.Cost, 1e-9)
			assert.Equal(t, tt.wantTurns, candidate.Node.Turns)
			assert.Equal(t, tt.wantMoveOut, candidate.Node.MovementLeft)
			assert.Equal(t, uint64(110), candidate.Node.RemainingArmy())
			assert.Equal(t, other, candidate.Node.ChainOther)
		})
	}
}
