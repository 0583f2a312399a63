package game

import (
	"heroai-go/core"
)

// worldCache is a read-only snapshot of the rule engine taken once per path graph build.
type worldCache struct {
	world  core.WorldInterface
	player core.PlayerID

	width, height, levels int
	tiles                 []core.Tile

	objects     map[core.ObjectID]core.MapObject
	objectAt    map[core.Position]core.MapObject
	teleporters map[int][]core.Position
	towns       []core.Town
	enemies     map[core.Position]core.Hero
}

func newWorldCache(world core.WorldInterface) *worldCache {
	w := &worldCache{
		world:       world,
		player:      world.Player(),
		objects:     make(map[core.ObjectID]core.MapObject),
		objectAt:    make(map[core.Position]core.MapObject),
		teleporters: make(map[int][]core.Position),
		enemies:     make(map[core.Position]core.Hero),
	}
	w.width, w.height, w.levels = world.Size()
	w.tiles = make([]core.Tile, w.width*w.height*w.levels)
	for z := 0; z < w.levels; z++ {
		for y := 0; y < w.height; y++ {
			for x := 0; x < w.width; x++ {
				pos := core.Position{X: x, Y: y, Z: z}
				if tile, ok := world.Tile(pos); ok {
					w.tiles[w.index(pos)] = tile
				} else {
					w.tiles[w.index(pos)] = core.Tile{Terrain: core.TerrainRock}
				}
			}
		}
	}
	for _, obj := range world.Objects() {
		w.objects[obj.ID] = obj
		w.objectAt[obj.Pos] = obj
		if obj.Kind == core.ObjectTeleporter {
			w.teleporters[obj.Channel] = append(w.teleporters[obj.Channel], obj.Pos)
		}
	}
	w.towns = world.Towns()
	for _, hero := range world.EnemyHeroes() {
		w.enemies[hero.Pos] = hero
	}
	return w
}

func (w *worldCache) index(pos core.Position) int {
	return (pos.Z*w.height+pos.Y)*w.width + pos.X
}

func (w *worldCache) inBounds(pos core.Position) bool {
	return pos.X >= 0 && pos.Y >= 0 && pos.Z >= 0 && pos.X < w.width && pos.Y < w.height && pos.Z < w.levels
}

func (w *worldCache) tile(pos core.Position) (core.Tile, bool) {
	if !w.inBounds(pos) {
		return core.Tile{}, false
	}
	return w.tiles[w.index(pos)], true
}

func (w *worldCache) object(pos core.Position) (core.MapObject, bool) {
	obj, ok := w.objectAt[pos]
	return obj, ok
}

// isLand reports whether pos is a passable non-water tile.
func (w *worldCache) isLand(pos core.Position) bool {
	tile, ok := w.tile(pos)
	return ok && tile.Passable() && !tile.IsWater()
}
