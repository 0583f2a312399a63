package sim

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"heroai-go/core"
)

// PlayerView is one player's window on the world. It implements core.WorldInterface.
type PlayerView struct {
	world  *World
	player core.PlayerID
}

var _ core.WorldInterface = (*PlayerView)(nil)

func (v *PlayerView) Player() core.PlayerID { return v.player }

func (v *PlayerView) Day() int { return v.world.Day() }

func (v *PlayerView) Size() (int, int, int) { return v.world.Size() }

func (v *PlayerView) Tile(pos core.Position) (core.Tile, bool) {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.index(pos)
	if !ok {
		return core.Tile{}, false
	}
	return w.tiles[i], true
}

func (v *PlayerView) Heroes() []core.Hero {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.heroesWhere(func(h *core.Hero) bool { return h.Owner == v.player })
}

func (v *PlayerView) EnemyHeroes() []core.Hero {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.heroesWhere(func(h *core.Hero) bool { return h.Owner != v.player })
}

func (v *PlayerView) Hero(id core.HeroID) (core.Hero, bool) {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.heroes[id]
	if !ok || h.Owner != v.player {
		return core.Hero{}, false
	}
	return *h, true
}

func (v *PlayerView) Towns() []core.Town {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	var towns []core.Town
	for _, t := range w.towns {
		if t.Owner == v.player {
			towns = append(towns, *t)
		}
	}
	sort.Slice(towns, func(i, j int) bool { return towns[i].ID < towns[j].ID })
	return towns
}

func (v *PlayerView) Town(id core.TownID) (core.Town, bool) {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.towns[id]
	if !ok || t.Owner != v.player {
		return core.Town{}, false
	}
	return *t, true
}

func (v *PlayerView) Objects() []core.MapObject {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	objects := make([]core.MapObject, 0, len(w.objects))
	for _, o := range w.objects {
		objects = append(objects, *o)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
	return objects
}

func (v *PlayerView) Object(id core.ObjectID) (core.MapObject, bool) {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	o, ok := w.objects[id]
	if !ok {
		return core.MapObject{}, false
	}
	return *o, true
}

func (v *PlayerView) Gold() int {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	if p, ok := w.players[v.player]; ok {
		return p.Gold
	}
	return 0
}

func (v *PlayerView) HasKey(color string) bool {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[v.player]
	return ok && p.Keys[color]
}

func (v *PlayerView) QuestCompleted(guard core.ObjectID) bool {
	w := v.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.quests[guard]
}

// ownHero must be called with the lock held.
func (v *PlayerView) ownHero(id core.HeroID) (*core.Hero, error) {
	h, ok := v.world.heroes[id]
	if !ok || h.Owner != v.player {
		return nil, fmt.Errorf("hero %d: %w", id, ErrUnknownHero)
	}
	return h, nil
}

// ownTown must be called with the lock held.
func (v *PlayerView) ownTown(id core.TownID) (*core.Town, error) {
	t, ok := v.world.towns[id]
	if !ok || t.Owner != v.player {
		return nil, fmt.Errorf("town %d: %w", id, ErrUnknownTown)
	}
	return t, nil
}

// state must be called with the lock held.
func (v *PlayerView) state() *PlayerState {
	p, ok := v.world.players[v.player]
	if !ok {
		p = &PlayerState{ID: v.player, Keys: make(map[string]bool)}
		v.world.players[v.player] = p
	}
	return p
}

// MoveHero walks the route step by step. The hero stops early when it runs
// out of movement or meets a gate it cannot open. Losing a battle on the way
// reports Lost.
func (v *PlayerView) MoveHero(ctx context.Context, id core.HeroID, route []core.Position) (core.MoveOutcome, error) {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	hero, err := v.ownHero(id)
	if err != nil {
		return core.MoveOutcome{}, err
	}
	for _, step := range route {
		if err := ctx.Err(); err != nil {
			return core.MoveOutcome{Reached: hero.Pos}, err
		}
		stop, err := v.step(hero, step)
		if err != nil {
			if _, alive := w.heroes[id]; !alive {
				return core.MoveOutcome{Reached: hero.Pos, Lost: true}, nil
			}
			return core.MoveOutcome{Reached: hero.Pos}, err
		}
		if stop {
			break
		}
	}
	return core.MoveOutcome{Reached: hero.Pos}, nil
}

// step moves hero onto next. It reports stop when the hero cannot continue.
func (v *PlayerView) step(hero *core.Hero, next core.Position) (bool, error) {
	w := v.world
	i, ok := w.index(next)
	if !ok || !w.tiles[i].Passable() {
		return false, fmt.Errorf("%s cannot enter %s: %w", hero.Name, next, ErrIllegalMove)
	}
	tile := w.tiles[i]

	cost := 0
	if !core.Adjacent(hero.Pos, next) {
		from, to := w.objectAt(hero.Pos), w.objectAt(next)
		if from == nil || to == nil || from.Kind != core.ObjectTeleporter || to.Kind != core.ObjectTeleporter || from.Channel != to.Channel {
			return false, fmt.Errorf("%s cannot jump from %s to %s: %w", hero.Name, hero.Pos, next, ErrIllegalMove)
		}
	} else {
		cost = core.StepCost(hero.Pos, next, tile, w.rules.DiagonalCost)
	}

	boarding := false
	if tile.IsWater() && !hero.InBoat {
		boat := w.objectAt(next)
		switch {
		case boat != nil && boat.Kind == core.ObjectBoat:
			boarding = true
		case hero.WaterWalking, hero.Flying:
		default:
			return false, fmt.Errorf("%s cannot cross water at %s: %w", hero.Name, next, ErrIllegalMove)
		}
	}

	budget := hero.MaxMovement
	if hero.InBoat || boarding {
		budget = hero.SailBudget()
	}
	left, ok := core.Spend(hero.Movement, budget, cost)
	if !ok {
		return true, nil
	}

	if obj := w.objectAt(next); obj != nil {
		switch obj.Kind {
		case core.ObjectBorderGate:
			if !v.state().Keys[obj.KeyColor] {
				return true, nil
			}
		case core.ObjectQuestGuard:
			if !w.quests[obj.ID] {
				return true, nil
			}
		}
	}

	for _, enemy := range w.heroes {
		if enemy.Owner != hero.Owner && enemy.Pos == next {
			if err := w.fight(hero, enemy.Army); err != nil {
				return true, err
			}
			w.removeHero(enemy)
			break
		}
	}
	if tile.Guard > 0 {
		if err := w.fight(hero, tile.Guard); err != nil {
			return true, err
		}
		w.tiles[i].Guard = 0
	}

	if town := w.townAt(hero.Pos); town != nil && town.VisitingHero == hero.ID {
		town.VisitingHero = 0
	}
	if hero.InBoat && !tile.IsWater() {
		hero.InBoat = false
	}
	if boarding {
		hero.InBoat = true
		w.removeObject(w.objectAt(next))
	}
	hero.Pos = next
	hero.Movement = left

	if town := w.townAt(next); town != nil && town.Owner == hero.Owner && town.VisitingHero == 0 {
		town.VisitingHero = hero.ID
	}
	if obj := w.objectAt(next); obj != nil {
		switch obj.Kind {
		case core.ObjectResource:
			v.state().Gold += obj.Value
			w.visited(obj.ID)
			w.removeObject(obj)
		case core.ObjectArtifact:
			hero.Experience += obj.Value
			w.visited(obj.ID)
			w.removeObject(obj)
		}
	}
	return false, nil
}

// Interact visits the object the hero stands on or next to.
func (v *PlayerView) Interact(ctx context.Context, id core.HeroID, objectID core.ObjectID) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	hero, err := v.ownHero(id)
	if err != nil {
		return err
	}
	obj, ok := w.objects[objectID]
	if !ok {
		return fmt.Errorf("object %d: %w", objectID, ErrUnknownObject)
	}
	if hero.Pos != obj.Pos && !core.Adjacent(hero.Pos, obj.Pos) {
		return fmt.Errorf("%s is not at %s: %w", hero.Name, obj.Pos, ErrNotAllowed)
	}

	switch obj.Kind {
	case core.ObjectMine, core.ObjectDwelling:
		if obj.Owner != v.player {
			if err := w.fight(hero, obj.Guard); err != nil {
				return err
			}
			obj.Guard = 0
			obj.Owner = v.player
		}
	case core.ObjectCreatureBank:
		if obj.Visited {
			return nil
		}
		if err := w.fight(hero, obj.Guard); err != nil {
			return err
		}
		obj.Guard = 0
		obj.Visited = true
		v.state().Gold += obj.Value
	case core.ObjectMonster:
		if err := w.fight(hero, obj.Guard); err != nil {
			return err
		}
		w.removeObject(obj)
	case core.ObjectResource:
		v.state().Gold += obj.Value
		w.removeObject(obj)
	case core.ObjectArtifact:
		hero.Experience += obj.Value
		w.removeObject(obj)
	case core.ObjectBorderGate:
		if !v.state().Keys[obj.KeyColor] {
			return fmt.Errorf("no %s key: %w", obj.KeyColor, ErrNotAllowed)
		}
	case core.ObjectQuestGuard:
		if !w.quests[obj.ID] {
			return fmt.Errorf("quest of %s not completed: %w", obj.Name, ErrNotAllowed)
		}
		w.removeObject(obj)
	}
	w.visited(obj.ID)
	w.logger.Debug("object visited", zap.String("hero", hero.Name), zap.Stringer("object", obj.Kind), zap.Int("id", int(obj.ID)))
	return nil
}

// ExchangeArmy moves the whole army of from to to.
func (v *PlayerView) ExchangeArmy(ctx context.Context, fromID, toID core.HeroID) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	from, err := v.ownHero(fromID)
	if err != nil {
		return err
	}
	to, err := v.ownHero(toID)
	if err != nil {
		return err
	}
	if from.Pos != to.Pos && !core.Adjacent(from.Pos, to.Pos) {
		return fmt.Errorf("%s and %s are not together: %w", from.Name, to.Name, ErrNotAllowed)
	}
	to.Army += from.Army
	from.Army = 0
	return nil
}

// TakeGarrison moves a town's garrison army to a hero standing in the town.
func (v *PlayerView) TakeGarrison(ctx context.Context, heroID core.HeroID, townID core.TownID) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	hero, err := v.ownHero(heroID)
	if err != nil {
		return err
	}
	town, err := v.ownTown(townID)
	if err != nil {
		return err
	}
	if hero.Pos != town.Pos {
		return fmt.Errorf("%s is not in %s: %w", hero.Name, town.Name, ErrNotAllowed)
	}
	hero.Army += town.GarrisonArmy
	town.GarrisonArmy = 0
	return nil
}

// SwapGarrison swaps the garrison and visiting heroes of a town.
func (v *PlayerView) SwapGarrison(ctx context.Context, townID core.TownID) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	town, err := v.ownTown(townID)
	if err != nil {
		return err
	}
	if town.GarrisonHero == 0 && town.VisitingHero == 0 {
		return fmt.Errorf("no hero in %s: %w", town.Name, ErrNotAllowed)
	}
	town.GarrisonHero, town.VisitingHero = town.VisitingHero, town.GarrisonHero
	return nil
}

// Purchase buys a town's reinforcements for a hero in the town, or for the
// garrison when hero is zero.
func (v *PlayerView) Purchase(ctx context.Context, townID core.TownID, heroID core.HeroID) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	town, err := v.ownTown(townID)
	if err != nil {
		return err
	}
	if town.Reinforcements == 0 {
		return fmt.Errorf("nothing to buy in %s: %w", town.Name, ErrNotAllowed)
	}
	player := v.state()
	if player.Gold < town.ReinforcementsCost {
		return fmt.Errorf("%d needed, %d available: %w", town.ReinforcementsCost, player.Gold, ErrNotEnoughGold)
	}

	switch {
	case heroID != 0:
		hero, err := v.ownHero(heroID)
		if err != nil {
			return err
		}
		if hero.Pos != town.Pos {
			return fmt.Errorf("%s is not in %s: %w", hero.Name, town.Name, ErrNotAllowed)
		}
		hero.Army += town.Reinforcements
	case town.GarrisonHero != 0:
		w.heroes[town.GarrisonHero].Army += town.Reinforcements
	default:
		town.GarrisonArmy += town.Reinforcements
	}
	player.Gold -= town.ReinforcementsCost
	town.Reinforcements = 0
	return nil
}

// RecruitHero hires a hero who appears at the town gate.
func (v *PlayerView) RecruitHero(ctx context.Context, townID core.TownID) (core.HeroID, error) {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	town, err := v.ownTown(townID)
	if err != nil {
		return 0, err
	}
	if !town.CanRecruit || town.VisitingHero != 0 {
		return 0, fmt.Errorf("cannot recruit in %s: %w", town.Name, ErrNotAllowed)
	}
	player := v.state()
	if player.Gold < town.RecruitCost {
		return 0, fmt.Errorf("%d needed, %d available: %w", town.RecruitCost, player.Gold, ErrNotEnoughGold)
	}

	id := w.nextHero
	w.nextHero++
	w.heroes[id] = &core.Hero{
		ID:          id,
		Name:        fmt.Sprintf("%s recruit %d", town.Name, id),
		Owner:       v.player,
		Pos:         town.Pos,
		Movement:    w.rules.RecruitMovement,
		MaxMovement: w.rules.RecruitMovement,
		Army:        w.rules.RecruitArmy,
	}
	player.Gold -= town.RecruitCost
	town.VisitingHero = id
	town.CanRecruit = false
	return id, nil
}

// CastTownPortal moves a hero knowing the spell to an owned town.
func (v *PlayerView) CastTownPortal(ctx context.Context, heroID core.HeroID, townID core.TownID) error {
	w := v.world
	w.mu.Lock()
	defer w.mu.Unlock()

	hero, err := v.ownHero(heroID)
	if err != nil {
		return err
	}
	town, err := v.ownTown(townID)
	if err != nil {
		return err
	}
	if !hero.TownPortal || hero.Mana < w.rules.TownPortalMana {
		return fmt.Errorf("%s cannot cast town portal: %w", hero.Name, ErrNotAllowed)
	}
	if town.VisitingHero != 0 && town.VisitingHero != hero.ID {
		return fmt.Errorf("gate of %s is occupied: %w", town.Name, ErrNotAllowed)
	}
	left, ok := core.Spend(hero.Movement, hero.MaxMovement, w.rules.TownPortalMovement)
	if !ok {
		return fmt.Errorf("%s has no movement left: %w", hero.Name, ErrNotAllowed)
	}
	if old := w.townAt(hero.Pos); old != nil && old.VisitingHero == hero.ID {
		old.VisitingHero = 0
	}
	hero.Mana -= w.rules.TownPortalMana
	hero.Movement = left
	hero.Pos = town.Pos
	town.VisitingHero = hero.ID
	return nil
}
