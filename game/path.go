package game

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"heroai-go/core"
)

// Exchange describes the army hand-off performed at a join waypoint.
type Exchange struct {
	// FromHero is the hero handing over its army, zero for a town garrison.
	FromHero core.HeroID
	// FromTown is the town whose garrison army is taken.
	FromTown core.TownID
}

// Waypoint is one compacted leg of a path: a hero walking Steps during one
// turn, ending at Coord.
type Waypoint struct {
	Coord    core.Position
	From     core.Position
	Steps    []core.Position
	Layer    core.Layer
	Hero     core.HeroID
	HeroName string
	Turns    int
	Cost     float64
	Danger   uint64
	// ParentIndex is the index of the waypoint that depends on this one, -1 for the target.
	ParentIndex   int
	SpecialAction *SpecialAction
	Join          *Exchange
}

func (w Waypoint) String() string {
	if w.Join != nil {
		if w.Join.FromTown != 0 {
			return fmt.Sprintf("%s takes garrison of town %d at %s", w.HeroName, w.Join.FromTown, w.Coord)
		}
		return fmt.Sprintf("%s takes army of hero %d at %s", w.HeroName, w.Join.FromHero, w.Coord)
	}
	return fmt.Sprintf("%s->%s[t%d]", w.HeroName, w.Coord, w.Turns)
}

// Path is the reconstruction of one node chain. Nodes are ordered target
// first, so executing a path walks Nodes backwards.
type Path struct {
	Nodes []Waypoint
	// Start is the target hero's seed position.
	Start              core.Position
	SpecialAction      *SpecialAction
	TargetObjectDanger uint64
	ArmyLoss           uint64
	TargetHero         core.HeroID
	TargetHeroName     string
	HeroArmy           uint64
	ChainMask          uint64
	ExchangeCount      int

	target core.Position
	cost   float64
	turns  int
	danger uint64
}

// PathDanger is the danger of travelling the path, excluding the target object.
func (p *Path) PathDanger() uint64 { return p.danger }

// TotalDanger is the path danger plus the danger of visiting the target object.
func (p *Path) TotalDanger() uint64 { return p.danger + p.TargetObjectDanger }

// FirstNode returns the waypoint executed first.
func (p *Path) FirstNode() Waypoint { return p.Nodes[len(p.Nodes)-1] }

// FirstTileToGet is where the first waypoint ends.
func (p *Path) FirstTileToGet() core.Position {
	if len(p.Nodes) == 0 {
		return p.target
	}
	return p.FirstNode().Coord
}

// TargetTile is where the path ends.
func (p *Path) TargetTile() core.Position { return p.target }

// MovementCost is the accumulated cost of reaching the target.
func (p *Path) MovementCost() float64 { return p.cost }

// Turn is the turn index the target is reached on, 0 being this turn.
func (p *Path) Turn() int { return p.turns }

// HeroStrength is the army the target hero arrives with.
func (p *Path) HeroStrength() uint64 { return p.HeroArmy }

// Heroes lists every hero taking part, the target hero first.
func (p *Path) Heroes() []core.HeroID {
	heroes := []core.HeroID{p.TargetHero}
	seen := map[core.HeroID]bool{p.TargetHero: true}
	for _, node := range p.Nodes {
		if !seen[node.Hero] {
			seen[node.Hero] = true
			heroes = append(heroes, node.Hero)
		}
		if node.Join != nil && node.Join.FromHero != 0 && !seen[node.Join.FromHero] {
			seen[node.Join.FromHero] = true
			heroes = append(heroes, node.Join.FromHero)
		}
	}
	return heroes
}

// GetFirstBlockedAction returns the first special action along the path, in
// execution order, that cannot be resolved now.
func (p *Path) GetFirstBlockedAction(world core.WorldInterface) *SpecialAction {
	for i := len(p.Nodes) - 1; i >= 0; i-- {
		node := p.Nodes[i]
		if node.SpecialAction != nil && !node.SpecialAction.CanAct(world, node.Hero) {
			return node.SpecialAction
		}
	}
	return nil
}

func (p *Path) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s to %s, cost %.0f, turn %d, danger %s, strength %s",
		p.TargetHeroName, p.target, p.cost, p.turns,
		humanize.Comma(int64(p.TotalDanger())), humanize.Comma(int64(p.HeroArmy)))
	if len(p.Nodes) > 0 {
		b.WriteString(": ")
		for i := len(p.Nodes) - 1; i >= 0; i-- {
			b.WriteString(p.Nodes[i].String())
			if i > 0 {
				b.WriteString("; ")
			}
		}
	}
	return b.String()
}

// GetChainInfo reconstructs one path per live node at pos. Water tiles are
// searched on every layer, land tiles only on the land layer.
func (s *NodeStorage) GetChainInfo(pos core.Position, onLand bool) []Path {
	layers := []core.Layer{core.LayerLand}
	if !onLand {
		layers = []core.Layer{core.LayerSail, core.LayerAir, core.LayerLand}
	}

	var paths []Path
	for _, layer := range layers {
		for _, ref := range s.NodesAt(pos, layer) {
			node := s.Get(ref)
			if node.Actor.Hero == 0 {
				continue
			}
			path := Path{
				Start:          node.Actor.Start,
				SpecialAction:  node.SpecialAction,
				ArmyLoss:       node.ArmyLoss,
				TargetHero:     node.Actor.Hero,
				TargetHeroName: node.Actor.HeroName,
				HeroArmy:       node.RemainingArmy(),
				ChainMask:      node.Actor.Mask,
				target:         node.Coord,
				cost:           node.Cost,
				turns:          node.Turns,
				danger:         node.Danger,
			}
			if !s.fillChainInfo(ref, &path, -1, make(map[int32]bool)) {
				continue
			}
			paths = append(paths, path)
		}
	}
	return paths
}

// fillChainInfo walks the lineage of ref backwards and appends compacted
// waypoints. Consecutive nodes of one hero within one turn merge into a
// single waypoint unless a node carries a special action. An exchange node
// becomes a join waypoint and the contributing lineage is filled with the
// join as its parent. It reports false when the lineage is broken or visits
// a node twice.
func (s *NodeStorage) fillChainInfo(ref NodeRef, path *Path, parentIndex int, visited map[int32]bool) bool {
	segment := -1
	for node := s.Get(ref); node != nil; {
		if visited[ref.Index] {
			return false
		}
		visited[ref.Index] = true
		if node.seed {
			return true
		}
		if node.Actor.Hero == 0 {
			return true
		}
		previous := s.Get(node.Previous)
		if previous == nil {
			return false
		}

		if node.IsExchange() {
			other := s.Get(node.ChainOther)
			if other == nil {
				return false
			}
			join := Waypoint{
				Coord:       node.Coord,
				From:        node.Coord,
				Layer:       node.Layer,
				Hero:        node.Actor.Hero,
				HeroName:    node.Actor.HeroName,
				Turns:       node.Turns,
				Cost:        node.Cost,
				Danger:      node.Danger,
				ParentIndex: parentIndex,
				Join:        exchangeOf(other.Actor),
			}
			path.Nodes = append(path.Nodes, join)
			parentIndex = len(path.Nodes) - 1
			path.ExchangeCount++
			if !s.fillChainInfo(node.ChainOther, path, parentIndex, visited) {
				return false
			}
			segment = -1
			ref = node.Previous
			node = previous
			continue
		}

		if segment >= 0 && node.SpecialAction == nil {
			wp := &path.Nodes[segment]
			portal := wp.SpecialAction != nil && wp.SpecialAction.Kind == ActionTownPortal
			if wp.Hero == node.Actor.Hero && wp.Turns == node.Turns && !portal {
				wp.Steps = append([]core.Position{node.Coord}, wp.Steps...)
				wp.From = previous.Coord
				ref = node.Previous
				node = previous
				continue
			}
		}

		path.Nodes = append(path.Nodes, Waypoint{
			Coord:         node.Coord,
			From:          previous.Coord,
			Steps:         []core.Position{node.Coord},
			Layer:         node.Layer,
			Hero:          node.Actor.Hero,
			HeroName:      node.Actor.HeroName,
			Turns:         node.Turns,
			Cost:          node.Cost,
			Danger:        node.Danger,
			ParentIndex:   parentIndex,
			SpecialAction: node.SpecialAction,
		})
		parentIndex = len(path.Nodes) - 1
		segment = parentIndex
		ref = node.Previous
		node = previous
	}
	return false
}

func exchangeOf(other *Actor) *Exchange {
	if other.Kind == ActorGarrison {
		return &Exchange{FromTown: other.Town}
	}
	return &Exchange{FromHero: other.Hero}
}
