package game

import (
	"fmt"

	"go.uber.org/zap"

	"heroai-go/core"
)

// NodeRef is a stable handle to a node in the storage arena. A ref goes stale
// when the slot it points at is released and reused.
type NodeRef struct {
	Index   int32
	Version uint32
}

// NoNode is the zero link.
var NoNode = NodeRef{Index: -1}

// Valid reports whether the ref points anywhere.
func (r NodeRef) Valid() bool { return r.Index >= 0 }

// PathNode is one (position, layer, slot) cell of the path graph.
type PathNode struct {
	Coord        core.Position
	Layer        core.Layer
	Actor        *Actor
	Cost         float64
	Turns        int
	MovementLeft int
	Danger       uint64
	ArmyLoss     uint64
	ManaCost     int
	// Previous is the node this one was reached from. For exchange nodes it is
	// the carrier's node at the same tile.
	Previous NodeRef
	// ChainOther is the contributing actor's node of an exchange.
	ChainOther    NodeRef
	SpecialAction *SpecialAction
	// Terminal nodes are reached but never expanded.
	Terminal bool

	seed    bool
	used    bool
	seq     uint64
	version uint32

	// liveness memo, valid while liveEpoch matches the storage epoch
	liveEpoch uint64
	live      bool
}

// RemainingArmy is the actor's army after the losses along the way.
func (n *PathNode) RemainingArmy() uint64 {
	if n.ArmyLoss >= n.Actor.Army {
		return 0
	}
	return n.Actor.Army - n.ArmyLoss
}

// IsExchange reports whether the node is an exchange candidate.
func (n *PathNode) IsExchange() bool { return n.ChainOther.Valid() }

// dominates reports whether a is at least as good as b on cost, danger and remaining army.
func dominates(a, b *PathNode) bool {
	return a.Cost <= b.Cost && a.Danger <= b.Danger && a.RemainingArmy() >= b.RemainingArmy()
}

// sameActorState reports whether two nodes describe the same actor state.
func sameActorState(a, b *PathNode) bool {
	return a.Actor == b.Actor
}

// NodeStorage is the path graph arena: a flat slice indexed by
// (level, y, x, layer, slot).
type NodeStorage struct {
	width, height, levels int
	slots                 int

	nodes  []PathNode
	actors *actorSet
	seq    uint64
	// epoch advances whenever a stored node's version changes.
	epoch uint64

	// chainFrom is the seq of the first node committed since the last chain pass.
	chainFrom     uint64
	heroChainPass bool

	config core.PathfindingConfig
	danger core.DangerConfig
	world  *worldCache
	logger *zap.Logger
}

// NewNodeStorage creates an empty storage. Initialize must be called before use.
func NewNodeStorage(config core.PathfindingConfig, danger core.DangerConfig, logger *zap.Logger) *NodeStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeStorage{config: config, danger: danger, logger: logger}
}

// Initialize sizes the arena for the given actors and map and seeds every actor's start.
func (s *NodeStorage) Initialize(actors *actorSet, world *worldCache) {
	s.world = world
	s.width, s.height, s.levels = world.width, world.height, world.levels
	s.actors = actors

	heroes := 0
	for _, a := range actors.actors {
		if a.Kind == ActorHero {
			heroes++
		}
	}
	s.slots = s.config.SlotsPerHero * max(heroes, 1)
	if s.config.MaxSlots > 0 && s.slots > s.config.MaxSlots {
		s.slots = s.config.MaxSlots
	}

	size := s.width * s.height * s.levels * core.NumLayers * s.slots
	if cap(s.nodes) >= size {
		s.nodes = s.nodes[:size]
		for i := range s.nodes {
			version := s.nodes[i].version
			s.nodes[i] = PathNode{version: version + 1}
		}
	} else {
		s.nodes = make([]PathNode, size)
	}
	s.seq = 0
	s.epoch++
	s.chainFrom = 0
	s.heroChainPass = false

	s.logger.Debug("node storage initialized",
		zap.Int("width", s.width), zap.Int("height", s.height), zap.Int("levels", s.levels),
		zap.Int("slots", s.slots), zap.Int("actors", len(actors.actors)))
}

// Slots returns the number of path variant slots per (position, layer).
func (s *NodeStorage) Slots() int { return s.slots }

// Actors returns the base actors of the current build.
func (s *NodeStorage) Actors() []*Actor { return s.actors.base() }

func (s *NodeStorage) inBounds(pos core.Position) bool {
	return pos.X >= 0 && pos.Y >= 0 && pos.Z >= 0 && pos.X < s.width && pos.Y < s.height && pos.Z < s.levels
}

func (s *NodeStorage) cellBase(pos core.Position, layer core.Layer) int {
	return ((((pos.Z*s.height+pos.Y)*s.width+pos.X)*core.NumLayers + int(layer)) * s.slots)
}

// Get resolves a ref. It returns nil for stale or empty refs.
func (s *NodeStorage) Get(ref NodeRef) *PathNode {
	if !ref.Valid() || int(ref.Index) >= len(s.nodes) {
		return nil
	}
	node := &s.nodes[ref.Index]
	if !node.used || node.version != ref.Version {
		return nil
	}
	return node
}

func (s *NodeStorage) ref(index int) NodeRef {
	return NodeRef{Index: int32(index), Version: s.nodes[index].version}
}

// alive reports whether the node's whole lineage still exists. Releasing a
// node kills every descendant, not only its direct children. A lineage that
// loops back onto itself counts as dead.
func (s *NodeStorage) alive(node *PathNode) bool {
	if node.seed {
		return true
	}
	if node.liveEpoch == s.epoch {
		return node.live
	}
	node.liveEpoch = s.epoch
	// in progress: a lineage reaching this node again reads it as dead
	node.live = false
	node.live = s.parentsAlive(node)
	return node.live
}

func (s *NodeStorage) parentsAlive(node *PathNode) bool {
	if !s.refAlive(node.Previous) {
		return false
	}
	return !node.ChainOther.Valid() || s.refAlive(node.ChainOther)
}

func (s *NodeStorage) refAlive(ref NodeRef) bool {
	node := s.Get(ref)
	return node != nil && s.alive(node)
}

// NodesAt returns refs to the live nodes at a position and layer.
func (s *NodeStorage) NodesAt(pos core.Position, layer core.Layer) []NodeRef {
	if !s.inBounds(pos) {
		return nil
	}
	base := s.cellBase(pos, layer)
	var refs []NodeRef
	for i := base; i < base+s.slots; i++ {
		if s.nodes[i].used && s.alive(&s.nodes[i]) {
			refs = append(refs, s.ref(i))
		}
	}
	return refs
}

// InitialNodes seeds every actor at its start position with a zero-cost node.
func (s *NodeStorage) InitialNodes() []NodeRef {
	var seeds []NodeRef
	for _, actor := range s.actors.base() {
		layer := core.LayerLand
		if actor.InBoat {
			layer = core.LayerSail
		}
		if !s.inBounds(actor.Start) {
			s.logger.Warn("actor starts outside the map", zap.Stringer("actor", actor), zap.Stringer("pos", actor.Start))
			continue
		}
		seed := PathNode{
			Coord:        actor.Start,
			Layer:        layer,
			Actor:        actor,
			MovementLeft: actor.Movement,
			Previous:     NoNode,
			ChainOther:   NoNode,
			seed:         true,
		}
		ref, ok := s.Commit(seed, NoNode)
		if ok {
			seeds = append(seeds, ref)
		}
	}
	return seeds
}

// Commit relaxes a candidate node reached from source into the arena. The
// candidate is rejected when its parents are gone or a stored node of the
// same actor is at least as good. A dominated node is replaced in place so
// its successors keep their parent. Any other slot reuse starts a new version
// and drops whatever still pointed at the slot. When every slot is taken the
// oldest replaceable node is evicted. It returns the ref of the stored node
// and whether anything changed.
func (s *NodeStorage) Commit(candidate PathNode, source NodeRef) (NodeRef, bool) {
	if !s.inBounds(candidate.Coord) {
		return NoNode, false
	}
	if !candidate.seed {
		candidate.Previous = source
		if !s.parentsAlive(&candidate) {
			return NoNode, false
		}
	}
	base := s.cellBase(candidate.Coord, candidate.Layer)

	replace, orphan, free := -1, -1, -1
	for i := base; i < base+s.slots; i++ {
		node := &s.nodes[i]
		if !node.used {
			if free < 0 {
				free = i
			}
			continue
		}
		if !sameActorState(node, &candidate) {
			continue
		}
		if !s.alive(node) {
			// orphaned by an earlier eviction upstream
			if orphan < 0 {
				orphan = i
			}
			continue
		}
		if dominates(node, &candidate) {
			return s.ref(i), false
		}
		if dominates(&candidate, node) {
			if s.passesThrough(source, i) {
				// a successor cannot take its own ancestor's slot
				return NoNode, false
			}
			if replace < 0 {
				replace = i
			} else {
				s.release(i)
				if free < 0 {
					free = i
				}
			}
		}
	}

	target := replace
	if target < 0 {
		target = orphan
	}
	if target < 0 {
		target = free
	}
	if target < 0 {
		target = s.evictionTarget(base, &candidate)
		if target < 0 {
			s.logger.Debug("slot budget exhausted, candidate dropped",
				zap.Stringer("pos", candidate.Coord), zap.Stringer("actor", candidate.Actor))
			return NoNode, false
		}
	}
	if target != replace {
		s.release(target)
		if !candidate.seed && !s.parentsAlive(&candidate) {
			return NoNode, false
		}
	}

	s.seq++
	candidate.used = true
	candidate.seq = s.seq
	candidate.version = s.nodes[target].version
	s.nodes[target] = candidate
	if candidate.Actor != nil && !candidate.seed {
		s.heroChainPass = true
	}
	return s.ref(target), true
}

// passesThrough reports whether the predecessor chain starting at ref visits
// the node stored at index.
func (s *NodeStorage) passesThrough(ref NodeRef, index int) bool {
	for steps := 0; steps <= len(s.nodes); steps++ {
		node := s.Get(ref)
		if node == nil {
			return false
		}
		if int(ref.Index) == index {
			return true
		}
		if node.seed {
			return false
		}
		ref = node.Previous
	}
	return true
}

// evictionTarget picks the oldest node at a cell that is neither a seed nor an
// ancestor of the candidate.
func (s *NodeStorage) evictionTarget(base int, candidate *PathNode) int {
	target := -1
	for i := base; i < base+s.slots; i++ {
		node := &s.nodes[i]
		if node.seed {
			continue
		}
		if s.passesThrough(candidate.Previous, i) || s.passesThrough(candidate.ChainOther, i) {
			continue
		}
		if target < 0 || node.seq < s.nodes[target].seq {
			target = i
		}
	}
	return target
}

func (s *NodeStorage) release(index int) {
	if s.nodes[index].used {
		s.epoch++
	}
	version := s.nodes[index].version
	s.nodes[index] = PathNode{version: version + 1}
}

// forEachNode calls fn for every live node.
func (s *NodeStorage) forEachNode(fn func(ref NodeRef, node *PathNode)) {
	for i := range s.nodes {
		node := &s.nodes[i]
		if node.used && s.alive(node) {
			fn(s.ref(i), node)
		}
	}
}

func (s *NodeStorage) String() string {
	used := 0
	for i := range s.nodes {
		if s.nodes[i].used {
			used++
		}
	}
	return fmt.Sprintf("NodeStorage{%dx%dx%d, slots=%d, used=%d}", s.width, s.height, s.levels, s.slots, used)
}
