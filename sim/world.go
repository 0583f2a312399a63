// Package sim is an in-memory rule engine the planner can play against.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"heroai-go/core"
)

var (
	// ErrUnknownHero is returned for heroes the player does not own.
	ErrUnknownHero = errors.New("unknown hero")
	// ErrUnknownTown is returned for towns the player does not own.
	ErrUnknownTown = errors.New("unknown town")
	// ErrUnknownObject is returned for objects not on the map.
	ErrUnknownObject = errors.New("unknown object")
	// ErrIllegalMove is returned when a route step breaks the movement rules.
	ErrIllegalMove = errors.New("illegal move")
	// ErrNotEnoughGold is returned when a purchase cannot be paid for.
	ErrNotEnoughGold = errors.New("not enough gold")
	// ErrNotAllowed is returned when an action's preconditions do not hold.
	ErrNotAllowed = errors.New("not allowed")
)

// Rules are the tunable rules of the simulation.
type Rules struct {
	DiagonalCost       int    `yaml:"diagonal_cost"`
	TownPortalMovement int    `yaml:"town_portal_movement"`
	TownPortalMana     int    `yaml:"town_portal_mana"`
	RecruitMovement    int    `yaml:"recruit_movement"`
	RecruitArmy        uint64 `yaml:"recruit_army"`
}

// DefaultRules matches the planner's default configuration.
func DefaultRules() Rules {
	return Rules{
		DiagonalCost:       141,
		TownPortalMovement: 0,
		TownPortalMana:     16,
		RecruitMovement:    1500,
		RecruitArmy:        100,
	}
}

// PlayerState is what the simulation knows about a player.
type PlayerState struct {
	ID   core.PlayerID   `yaml:"id" json:"id"`
	Name string          `yaml:"name" json:"name"`
	Gold int             `yaml:"gold" json:"gold"`
	Keys map[string]bool `yaml:"keys,omitempty" json:"keys,omitempty"`
	AI   bool            `yaml:"ai" json:"ai"`
}

// World holds the full state of a match. It is safe for concurrent use by
// the per-player views it hands out.
type World struct {
	mu       sync.RWMutex
	width    int
	height   int
	levels   int
	day      int
	tiles    []core.Tile
	heroes   map[core.HeroID]*core.Hero
	towns    map[core.TownID]*core.Town
	objects  map[core.ObjectID]*core.MapObject
	players  map[core.PlayerID]*PlayerState
	quests   map[core.ObjectID]bool
	nextHero core.HeroID
	rules    Rules
	logger   *zap.Logger
}

// NewWorld creates a grass map of the given size.
func NewWorld(width, height, levels int, rules Rules, logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	tiles := make([]core.Tile, width*height*levels)
	for i := range tiles {
		tiles[i] = core.Tile{Terrain: core.TerrainGrass, MoveCost: core.DefaultMoveCost}
	}
	return &World{
		width:    width,
		height:   height,
		levels:   levels,
		day:      1,
		tiles:    tiles,
		heroes:   make(map[core.HeroID]*core.Hero),
		towns:    make(map[core.TownID]*core.Town),
		objects:  make(map[core.ObjectID]*core.MapObject),
		players:  make(map[core.PlayerID]*PlayerState),
		quests:   make(map[core.ObjectID]bool),
		nextHero: 1,
		rules:    rules,
		logger:   logger,
	}
}

func (w *World) index(pos core.Position) (int, bool) {
	if pos.X < 0 || pos.Y < 0 || pos.Z < 0 || pos.X >= w.width || pos.Y >= w.height || pos.Z >= w.levels {
		return 0, false
	}
	return (pos.Z*w.height+pos.Y)*w.width + pos.X, true
}

// Size returns the map dimensions.
func (w *World) Size() (int, int, int) { return w.width, w.height, w.levels }

// Day returns the current day, starting at 1.
func (w *World) Day() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.day
}

// Rules returns the simulation rules.
func (w *World) Rules() Rules { return w.rules }

// SetTile replaces a tile, keeping the object reference.
func (w *World) SetTile(pos core.Position, tile core.Tile) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.index(pos)
	if !ok {
		return fmt.Errorf("tile %s is outside the map", pos)
	}
	if tile.MoveCost <= 0 {
		tile.MoveCost = core.DefaultMoveCost
	}
	tile.Object = w.tiles[i].Object
	w.tiles[i] = tile
	return nil
}

// SetGuard places a guard on a tile.
func (w *World) SetGuard(pos core.Position, guard uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.index(pos)
	if !ok {
		return fmt.Errorf("tile %s is outside the map", pos)
	}
	w.tiles[i].Guard = guard
	return nil
}

// AddPlayer registers a player.
func (w *World) AddPlayer(player PlayerState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if player.Keys == nil {
		player.Keys = make(map[string]bool)
	}
	w.players[player.ID] = &player
}

// AddHero places a hero. A zero ID is assigned automatically.
func (w *World) AddHero(hero core.Hero) (core.HeroID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.index(hero.Pos); !ok {
		return 0, fmt.Errorf("hero %s at %s is outside the map", hero.Name, hero.Pos)
	}
	if hero.ID == 0 {
		hero.ID = w.nextHero
	}
	if _, exists := w.heroes[hero.ID]; exists {
		return 0, fmt.Errorf("hero %d already exists", hero.ID)
	}
	w.nextHero = max(w.nextHero, hero.ID+1)
	h := hero
	w.heroes[h.ID] = &h
	if town := w.townAt(h.Pos); town != nil && town.VisitingHero == 0 && town.GarrisonHero != h.ID {
		town.VisitingHero = h.ID
	}
	return h.ID, nil
}

// AddTown places a town.
func (w *World) AddTown(town core.Town) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.index(town.Pos); !ok {
		return fmt.Errorf("town %s at %s is outside the map", town.Name, town.Pos)
	}
	if _, exists := w.towns[town.ID]; exists || town.ID == 0 {
		return fmt.Errorf("invalid town id %d", town.ID)
	}
	t := town
	w.towns[t.ID] = &t
	return nil
}

// AddObject places an object and links it to its tile.
func (w *World) AddObject(obj core.MapObject) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.index(obj.Pos)
	if !ok {
		return fmt.Errorf("object %s at %s is outside the map", obj.Name, obj.Pos)
	}
	if _, exists := w.objects[obj.ID]; exists || obj.ID == 0 {
		return fmt.Errorf("invalid object id %d", obj.ID)
	}
	o := obj
	w.objects[o.ID] = &o
	w.tiles[i].Object = o.ID
	return nil
}

// GiveKey hands a gate key to a player.
func (w *World) GiveKey(player core.PlayerID, color string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[player]; ok {
		p.Keys[color] = true
	}
}

// CompleteQuest marks the quest of a quest guard as done.
func (w *World) CompleteQuest(guard core.ObjectID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quests[guard] = true
}

// Players returns all players sorted by ID.
func (w *World) Players() []PlayerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	players := make([]PlayerState, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, *p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// AllHeroes returns every hero on the map sorted by ID.
func (w *World) AllHeroes() []core.Hero {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.heroesWhere(func(*core.Hero) bool { return true })
}

// NextDay advances the calendar and restores movement.
func (w *World) NextDay() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.day++
	for _, hero := range w.heroes {
		if hero.InBoat {
			hero.Movement = hero.SailBudget()
		} else {
			hero.Movement = hero.MaxMovement
		}
	}
	for _, town := range w.towns {
		if town.RecruitCost > 0 {
			town.CanRecruit = true
		}
	}
	w.logger.Debug("new day", zap.Int("day", w.day))
}

// ForPlayer returns the view of the world a player's planner works with.
func (w *World) ForPlayer(player core.PlayerID) *PlayerView {
	return &PlayerView{world: w, player: player}
}

func (w *World) heroesWhere(keep func(*core.Hero) bool) []core.Hero {
	var heroes []core.Hero
	for _, h := range w.heroes {
		if keep(h) {
			heroes = append(heroes, *h)
		}
	}
	sort.Slice(heroes, func(i, j int) bool { return heroes[i].ID < heroes[j].ID })
	return heroes
}

func (w *World) townAt(pos core.Position) *core.Town {
	for _, town := range w.towns {
		if town.Pos == pos {
			return town
		}
	}
	return nil
}

func (w *World) objectAt(pos core.Position) *core.MapObject {
	i, ok := w.index(pos)
	if !ok || w.tiles[i].Object == 0 {
		return nil
	}
	return w.objects[w.tiles[i].Object]
}

func (w *World) removeObject(obj *core.MapObject) {
	if i, ok := w.index(obj.Pos); ok && w.tiles[i].Object == obj.ID {
		w.tiles[i].Object = 0
	}
	delete(w.objects, obj.ID)
}

func (w *World) removeHero(hero *core.Hero) {
	for _, town := range w.towns {
		if town.VisitingHero == hero.ID {
			town.VisitingHero = 0
		}
		if town.GarrisonHero == hero.ID {
			town.GarrisonHero = 0
		}
	}
	delete(w.heroes, hero.ID)
	w.logger.Info("hero lost", zap.String("hero", hero.Name), zap.Int("owner", int(hero.Owner)))
}

// fight resolves a battle of hero against danger. A losing hero is removed.
func (w *World) fight(hero *core.Hero, danger uint64) error {
	if danger == 0 {
		return nil
	}
	if !core.CanBeat(hero.Army, danger) {
		w.removeHero(hero)
		return fmt.Errorf("%s lost against %d: %w", hero.Name, danger, core.ErrHeroLost)
	}
	hero.Army -= core.BattleLoss(hero.Army, danger)
	hero.Experience += int(danger)
	return nil
}

// visited completes the quests asking for obj.
func (w *World) visited(obj core.ObjectID) {
	for _, guard := range w.objects {
		if guard.Kind == core.ObjectQuestGuard && guard.Quest == obj {
			w.quests[guard.ID] = true
		}
	}
}
