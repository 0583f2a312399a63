package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrHeroLost is returned by the rule engine when a hero does not survive an action.
var ErrHeroLost = errors.New("hero lost")

// PlayerID identifies a player in a match.
type PlayerID int

// HeroID identifies a hero. Zero means "no hero".
type HeroID int

// TownID identifies a town. Zero means "no town".
type TownID int

// ObjectID identifies a map object. Zero means "no object".
type ObjectID int

// Position is a tile coordinate. Z selects the map level (surface, underground).
type Position struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	Z int `yaml:"z" json:"z"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Add returns p shifted by dx, dy on the same level.
func (p Position) Add(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z}
}

// Layer is a movement domain with its own adjacency rules.
type Layer uint8

const (
	LayerLand Layer = iota
	LayerSail
	LayerAir

	// NumLayers is the number of movement layers.
	NumLayers = 3
)

func (l Layer) String() string {
	switch l {
	case LayerLand:
		return "land"
	case LayerSail:
		return "sail"
	case LayerAir:
		return "air"
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

// Terrain is the ground type of a tile.
type Terrain uint8

const (
	TerrainGrass Terrain = iota
	TerrainRough
	TerrainSwamp
	TerrainWater
	TerrainRock
)

// Tile is the rule engine's view of a single map cell.
type Tile struct {
	Terrain  Terrain  `yaml:"terrain" json:"terrain"`
	MoveCost int      `yaml:"move_cost" json:"move_cost"`
	Object   ObjectID `yaml:"object,omitempty" json:"object,omitempty"`
	// Guard is the strength of the creatures standing guard over this tile.
	Guard uint64 `yaml:"guard,omitempty" json:"guard,omitempty"`
}

// IsWater reports whether the tile can only be crossed by boat, flight or water walking.
func (t Tile) IsWater() bool { return t.Terrain == TerrainWater }

// Passable reports whether anything at all can stand on the tile.
func (t Tile) Passable() bool { return t.Terrain != TerrainRock }

// Hero is a controllable agent as reported by the rule engine.
type Hero struct {
	ID              HeroID   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Owner           PlayerID `yaml:"owner" json:"owner"`
	Pos             Position `yaml:"pos" json:"pos"`
	InBoat          bool     `yaml:"in_boat,omitempty" json:"in_boat,omitempty"`
	Movement        int      `yaml:"movement" json:"movement"`
	MaxMovement     int      `yaml:"max_movement" json:"max_movement"`
	MaxSailMovement int      `yaml:"max_sail_movement,omitempty" json:"max_sail_movement,omitempty"`
	Army            uint64   `yaml:"army" json:"army"`
	Experience      int      `yaml:"experience,omitempty" json:"experience,omitempty"`
	Mana            int      `yaml:"mana,omitempty" json:"mana,omitempty"`
	Flying          bool     `yaml:"flying,omitempty" json:"flying,omitempty"`
	WaterWalking    bool     `yaml:"water_walking,omitempty" json:"water_walking,omitempty"`
	TownPortal      bool     `yaml:"town_portal,omitempty" json:"town_portal,omitempty"`
}

// SailBudget returns the per-turn movement budget while in a boat.
func (h Hero) SailBudget() int {
	if h.MaxSailMovement > 0 {
		return h.MaxSailMovement
	}
	return h.MaxMovement
}

// Town is a player-owned settlement.
type Town struct {
	ID    TownID   `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Pos   Position `yaml:"pos" json:"pos"`
	Owner PlayerID `yaml:"owner" json:"owner"`
	// GarrisonHero is the hero stationed inside the walls, VisitingHero the one at the gate.
	GarrisonHero HeroID `yaml:"garrison_hero,omitempty" json:"garrison_hero,omitempty"`
	VisitingHero HeroID `yaml:"visiting_hero,omitempty" json:"visiting_hero,omitempty"`
	GarrisonArmy uint64 `yaml:"garrison_army,omitempty" json:"garrison_army,omitempty"`
	// Reinforcements is the army strength currently available for purchase.
	Reinforcements     uint64 `yaml:"reinforcements,omitempty" json:"reinforcements,omitempty"`
	ReinforcementsCost int    `yaml:"reinforcements_cost,omitempty" json:"reinforcements_cost,omitempty"`
	CanRecruit         bool   `yaml:"can_recruit,omitempty" json:"can_recruit,omitempty"`
	RecruitCost        int    `yaml:"recruit_cost,omitempty" json:"recruit_cost,omitempty"`
	PendingBuildCost   int    `yaml:"pending_build_cost,omitempty" json:"pending_build_cost,omitempty"`
}

// ObjectKind classifies visitable map objects.
type ObjectKind uint8

const (
	ObjectResource ObjectKind = iota
	ObjectMine
	ObjectDwelling
	ObjectCreatureBank
	ObjectArtifact
	ObjectMonster
	ObjectBorderGate
	ObjectQuestGuard
	ObjectTeleporter
	ObjectBoat
)

var objectKindNames = map[ObjectKind]string{
	ObjectResource:     "resource",
	ObjectMine:         "mine",
	ObjectDwelling:     "dwelling",
	ObjectCreatureBank: "creature_bank",
	ObjectArtifact:     "artifact",
	ObjectMonster:      "monster",
	ObjectBorderGate:   "border_gate",
	ObjectQuestGuard:   "quest_guard",
	ObjectTeleporter:   "teleporter",
	ObjectBoat:         "boat",
}

func (k ObjectKind) String() string {
	if name, ok := objectKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("object(%d)", uint8(k))
}

// ParseObjectKind converts a kind name back into an ObjectKind.
func ParseObjectKind(name string) (ObjectKind, error) {
	for k, n := range objectKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown object kind %q", name)
}

// MapObject is anything on the map a hero can visit.
type MapObject struct {
	ID    ObjectID   `yaml:"id" json:"id"`
	Kind  ObjectKind `yaml:"-" json:"kind"`
	Name  string     `yaml:"name" json:"name"`
	Pos   Position   `yaml:"pos" json:"pos"`
	Owner PlayerID   `yaml:"owner,omitempty" json:"owner,omitempty"`
	// Guard is the danger of fighting for the object itself (bank guards, the monster stack).
	Guard   uint64 `yaml:"guard,omitempty" json:"guard,omitempty"`
	Value   int    `yaml:"value,omitempty" json:"value,omitempty"`
	Visited bool   `yaml:"visited,omitempty" json:"visited,omitempty"`
	// Channel links teleporters: all teleporters on one channel are connected.
	Channel int `yaml:"channel,omitempty" json:"channel,omitempty"`
	// KeyColor names the key needed to pass a border gate.
	KeyColor string `yaml:"key_color,omitempty" json:"key_color,omitempty"`
	// Quest names the quest object a quest guard wants visited.
	Quest ObjectID `yaml:"quest,omitempty" json:"quest,omitempty"`
}

// MoveOutcome describes how far a move order got.
type MoveOutcome struct {
	Reached Position
	// Lost is set when the hero did not survive the move.
	Lost bool
}

// WorldInterface is the rule engine as seen by the AI. Query methods return copies
// and never mutate the world; the remaining methods are the mutating calls issued
// while executing a plan.
type WorldInterface interface {
	Player() PlayerID
	Day() int
	// Size returns the map width, height and number of levels.
	Size() (width, height, levels int)
	Tile(pos Position) (Tile, bool)
	Heroes() []Hero
	EnemyHeroes() []Hero
	Hero(id HeroID) (Hero, bool)
	Towns() []Town
	Town(id TownID) (Town, bool)
	Objects() []MapObject
	Object(id ObjectID) (MapObject, bool)
	Gold() int
	HasKey(color string) bool
	QuestCompleted(guard ObjectID) bool

	MoveHero(ctx context.Context, hero HeroID, route []Position) (MoveOutcome, error)
	Interact(ctx context.Context, hero HeroID, object ObjectID) error
	ExchangeArmy(ctx context.Context, from, to HeroID) error
	TakeGarrison(ctx context.Context, hero HeroID, town TownID) error
	SwapGarrison(ctx context.Context, town TownID) error
	Purchase(ctx context.Context, town TownID, hero HeroID) error
	RecruitHero(ctx context.Context, town TownID) (HeroID, error)
	CastTownPortal(ctx context.Context, hero HeroID, town TownID) error
}
