package game

import (
	"go.uber.org/zap"
)

// ExchangeCandidate is a merged node where Other hands its army to Carrier.
type ExchangeCandidate struct {
	Node    PathNode
	Carrier NodeRef
	Other   NodeRef
}

// CalculateHeroChain looks at every cell where nodes of two or more actors
// meet and commits the exchange candidates no stored node dominates. Only
// pairs involving a node committed since the previous call are considered.
// It returns the refs of the inserted exchange nodes.
func (s *NodeStorage) CalculateHeroChain() []NodeRef {
	if !s.heroChainPass {
		return nil
	}
	from := s.chainFrom
	s.chainFrom = s.seq + 1
	s.heroChainPass = false

	var candidates []ExchangeCandidate
	variants := make([]NodeRef, 0, s.slots)
	for base := 0; base < len(s.nodes); base += s.slots {
		variants = variants[:0]
		fresh := false
		for i := base; i < base+s.slots; i++ {
			node := &s.nodes[i]
			if !node.used || node.Turns > s.config.HeroChainTurns || !s.alive(node) {
				continue
			}
			variants = append(variants, s.ref(i))
			if node.seq >= from {
				fresh = true
			}
		}
		if len(variants) < 2 || !fresh {
			continue
		}
		candidates = s.calculateCellChains(variants, from, candidates)
	}

	var added []NodeRef
	for _, candidate := range candidates {
		if ref, ok := s.Commit(candidate.Node, candidate.Carrier); ok {
			added = append(added, ref)
		}
	}
	if len(added) > 0 {
		s.logger.Debug("hero chain pass",
			zap.Int("candidates", len(candidates)), zap.Int("added", len(added)))
	}
	return added
}

func (s *NodeStorage) calculateCellChains(variants []NodeRef, from uint64, result []ExchangeCandidate) []ExchangeCandidate {
	for _, carrierRef := range variants {
		carrier := s.Get(carrierRef)
		for _, otherRef := range variants {
			if otherRef == carrierRef {
				continue
			}
			other := s.Get(otherRef)
			if carrier.seq < from && other.seq < from {
				continue
			}
			if !s.canExchange(carrier, other) {
				continue
			}
			result = append(result, s.calculateExchange(carrierRef, otherRef))
		}
	}
	return result
}

// canExchange reports whether carrier may continue with other's army.
func (s *NodeStorage) canExchange(carrier, other *PathNode) bool {
	if !carrier.Actor.Movable() || carrier.Terminal {
		return false
	}
	if carrier.Actor.Mask&other.Actor.Mask != 0 {
		return false
	}
	if other.RemainingArmy() == 0 {
		return false
	}
	if other.Actor.Movable() &&
		carrier.Actor.MaxMovement < other.Actor.MaxMovement &&
		carrier.Actor.Experience < other.Actor.Experience {
		// other is better at carrying in every respect
		return false
	}
	return true
}

// otherCostWeight scales the contributing actor's cost in an exchange node.
// Movement points are per hero, so the carrier does not pay for the other's
// travel. The small share only breaks ties between otherwise equal meetings.
const otherCostWeight = 0.001

// calculateExchange synthesizes the node for carrier taking other's army at
// their shared cell. A carrier that arrives on an earlier turn waits for the
// other: the rest of its turns count as cost and it starts the meeting turn
// with a full budget.
func (s *NodeStorage) calculateExchange(carrierRef, otherRef NodeRef) ExchangeCandidate {
	carrier := s.Get(carrierRef)
	other := s.Get(otherRef)
	actor := s.actors.exchange(carrier.Actor, other.Actor)

	node := PathNode{
		Coord:        carrier.Coord,
		Layer:        carrier.Layer,
		Actor:        actor,
		Cost:         carrier.Cost + other.Cost*otherCostWeight,
		Turns:        carrier.Turns,
		MovementLeft: carrier.MovementLeft,
		Danger:       carrier.Danger + other.Danger,
		ArmyLoss:     carrier.ArmyLoss + other.ArmyLoss,
		ManaCost:     carrier.ManaCost,
		ChainOther:   otherRef,
	}
	if carrier.Turns < other.Turns {
		budget := actor.Budget(carrier.Layer)
		node.Cost += float64((other.Turns-carrier.Turns-1)*budget + carrier.MovementLeft)
		node.Turns = other.Turns
		node.MovementLeft = budget
	}
	return ExchangeCandidate{Node: node, Carrier: carrierRef, Other: otherRef}
}
