package game

import (
	"fmt"
	"math/bits"

	"heroai-go/core"
)

// ActorKind distinguishes the different movers in the path graph.
type ActorKind uint8

const (
	// ActorHero is a live hero with its current army.
	ActorHero ActorKind = iota
	// ActorGarrison is the army standing in a town. It cannot move and only
	// takes part in chains as the contributing side of an exchange.
	ActorGarrison
	// ActorExchange is a hero carrying the combined army of several base actors.
	ActorExchange
)

func (k ActorKind) String() string {
	switch k {
	case ActorHero:
		return "hero"
	case ActorGarrison:
		return "garrison"
	case ActorExchange:
		return "exchange"
	}
	return fmt.Sprintf("actor(%d)", uint8(k))
}

// Actor is a capability set used as a key in the path graph. Actors are
// created at the start of a path graph build and are immutable until the next one.
type Actor struct {
	index int

	Kind     ActorKind
	Hero     core.HeroID
	HeroName string
	Town     core.TownID
	// Mask has one bit per base actor whose army this actor carries.
	Mask uint64
	Army uint64

	Experience      int
	Movement        int
	MaxMovement     int
	MaxSailMovement int
	Mana            int
	Flying          bool
	WaterWalking    bool
	TownPortal      bool
	InBoat          bool
	Start           core.Position

	// Carrier and Other are the actors merged into an exchange actor.
	Carrier *Actor
	Other   *Actor
}

// Movable reports whether the actor can walk on its own.
func (a *Actor) Movable() bool {
	return a.Kind != ActorGarrison
}

// Budget returns the movement points the actor gets at the start of a turn on the given layer.
func (a *Actor) Budget(layer core.Layer) int {
	if layer == core.LayerSail && a.MaxSailMovement > 0 {
		return a.MaxSailMovement
	}
	return a.MaxMovement
}

// ChainSize is the number of base actors merged into this one.
func (a *Actor) ChainSize() int {
	return bits.OnesCount64(a.Mask)
}

func (a *Actor) String() string {
	switch a.Kind {
	case ActorGarrison:
		return fmt.Sprintf("garrison of town %d", a.Town)
	case ActorExchange:
		return fmt.Sprintf("%s carrying %d armies", a.HeroName, a.ChainSize())
	}
	return a.HeroName
}

// NewHeroActor creates the base actor for a hero.
func NewHeroActor(hero core.Hero) *Actor {
	return &Actor{
		Kind:            ActorHero,
		Hero:            hero.ID,
		HeroName:        hero.Name,
		Army:            hero.Army,
		Experience:      hero.Experience,
		Movement:        hero.Movement,
		MaxMovement:     hero.MaxMovement,
		MaxSailMovement: hero.SailBudget(),
		Mana:            hero.Mana,
		Flying:          hero.Flying,
		WaterWalking:    hero.WaterWalking,
		TownPortal:      hero.TownPortal,
		InBoat:          hero.InBoat,
		Start:           hero.Pos,
	}
}

// NewGarrisonActor creates the immovable actor holding a town's garrison army.
func NewGarrisonActor(town core.Town) *Actor {
	return &Actor{
		Kind:  ActorGarrison,
		Town:  town.ID,
		Army:  town.GarrisonArmy,
		Start: town.Pos,
	}
}

// exchange derives the actor for carrier continuing with other's army added to its own.
// The result depends only on the carrier's hero and the union of masks.
func exchange(carrier, other *Actor) *Actor {
	return &Actor{
		Kind:            ActorExchange,
		Hero:            carrier.Hero,
		HeroName:        carrier.HeroName,
		Mask:            carrier.Mask | other.Mask,
		Army:            carrier.Army + other.Army,
		Experience:      carrier.Experience,
		Movement:        carrier.Movement,
		MaxMovement:     carrier.MaxMovement,
		MaxSailMovement: carrier.MaxSailMovement,
		Mana:            carrier.Mana,
		Flying:          carrier.Flying,
		WaterWalking:    carrier.WaterWalking,
		TownPortal:      carrier.TownPortal,
		InBoat:          carrier.InBoat,
		Start:           carrier.Start,
		Carrier:         carrier,
		Other:           other,
	}
}

type exchangeKey struct {
	hero core.HeroID
	mask uint64
}

// actorSet owns every actor of one path graph build.
type actorSet struct {
	actors    []*Actor
	exchanges map[exchangeKey]*Actor
}

func newActorSet(heroes []core.Hero, towns []core.Town) *actorSet {
	set := &actorSet{exchanges: make(map[exchangeKey]*Actor)}
	for _, hero := range heroes {
		set.add(NewHeroActor(hero))
	}
	for _, town := range towns {
		if town.GarrisonArmy == 0 {
			continue
		}
		set.add(NewGarrisonActor(town))
	}
	return set
}

// maxBaseActors is the number of distinct chain mask bits.
const maxBaseActors = 64

func (s *actorSet) add(actor *Actor) bool {
	if len(s.actors) >= maxBaseActors {
		return false
	}
	actor.index = len(s.actors)
	actor.Mask = 1 << uint(actor.index)
	s.actors = append(s.actors, actor)
	return true
}

// exchange returns the cached actor for carrier taking other's army, creating it on first use.
func (s *actorSet) exchange(carrier, other *Actor) *Actor {
	key := exchangeKey{hero: carrier.Hero, mask: carrier.Mask | other.Mask}
	if actor, ok := s.exchanges[key]; ok {
		return actor
	}
	actor := exchange(carrier, other)
	actor.index = len(s.actors)
	s.actors = append(s.actors, actor)
	s.exchanges[key] = actor
	return actor
}

func (s *actorSet) base() []*Actor {
	var base []*Actor
	for _, a := range s.actors {
		if a.Kind != ActorExchange {
			base = append(base, a)
		}
	}
	return base
}
