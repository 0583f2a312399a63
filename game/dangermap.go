package game

import (
	"container/heap"

	"go.uber.org/zap"

	"heroai-go/core"
)

// Threat is an enemy hero able to reach a tile.
type Threat struct {
	Danger uint64
	Turn   int
	Hero   core.HeroID
}

// HitMapNode holds the fastest and the strongest threat to one tile.
type HitMapNode struct {
	Fastest Threat
	Maximum Threat
}

// DangerHitMap records for every tile which enemy heroes can reach it and when.
type DangerHitMap struct {
	width, height, levels int
	nodes                 []HitMapNode
	safeAttackRatio       float64
	diagonalCost          int
	maxTurns              int
	logger                *zap.Logger
}

// NewDangerHitMap creates an empty hit map.
func NewDangerHitMap(danger core.DangerConfig, pathfinding core.PathfindingConfig, logger *zap.Logger) *DangerHitMap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DangerHitMap{
		safeAttackRatio: danger.SafeAttackRatio,
		diagonalCost:    pathfinding.DiagonalCost,
		maxTurns:        min(pathfinding.MaxTurns, 3),
		logger:          logger,
	}
}

type hitItem struct {
	pos   core.Position
	cost  int
	left  int
	turns int
}

type hitQueue []hitItem

func (q hitQueue) Len() int           { return len(q) }
func (q hitQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q hitQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *hitQueue) Push(x any)        { *q = append(*q, x.(hitItem)) }
func (q *hitQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// Update recomputes the map from the enemy heroes' current positions.
func (m *DangerHitMap) Update(world core.WorldInterface) {
	m.width, m.height, m.levels = world.Size()
	size := m.width * m.height * m.levels
	if cap(m.nodes) >= size {
		m.nodes = m.nodes[:size]
		clear(m.nodes)
	} else {
		m.nodes = make([]HitMapNode, size)
	}

	enemies := world.EnemyHeroes()
	for _, enemy := range enemies {
		m.spread(world, enemy)
	}
	m.logger.Debug("danger hit map updated", zap.Int("enemies", len(enemies)))
}

// spread runs a plain Dijkstra over land for one enemy hero.
func (m *DangerHitMap) spread(world core.WorldInterface, enemy core.Hero) {
	budget := max(enemy.MaxMovement, 1)
	best := make(map[core.Position]int)
	queue := &hitQueue{{pos: enemy.Pos, left: enemy.Movement}}
	best[enemy.Pos] = 0

	for queue.Len() > 0 {
		item := heap.Pop(queue).(hitItem)
		if cost, ok := best[item.pos]; ok && cost < item.cost {
			continue
		}
		m.record(item.pos, Threat{Danger: enemy.Army, Turn: item.turns, Hero: enemy.ID})

		for _, d := range core.Directions {
			next := item.pos.Add(d[0], d[1])
			tile, ok := world.Tile(next)
			if !ok || !tile.Passable() || (tile.IsWater() && !enemy.Flying && !enemy.WaterWalking) {
				continue
			}
			step := core.StepCost(item.pos, next, tile, m.diagonalCost)
			left, turns, spent := item.left, item.turns, step
			if l, ok := core.Spend(left, budget, step); ok {
				left = l
			} else {
				spent += left
				turns++
				left, _ = core.Spend(budget, budget, step)
			}
			if turns > m.maxTurns {
				continue
			}
			cost := item.cost + spent
			if prev, ok := best[next]; ok && prev <= cost {
				continue
			}
			best[next] = cost
			heap.Push(queue, hitItem{pos: next, cost: cost, left: left, turns: turns})
		}
	}
}

func (m *DangerHitMap) record(pos core.Position, threat Threat) {
	node := &m.nodes[(pos.Z*m.height+pos.Y)*m.width+pos.X]
	if node.Fastest.Danger == 0 || threat.Turn < node.Fastest.Turn ||
		threat.Turn == node.Fastest.Turn && threat.Danger > node.Fastest.Danger {
		node.Fastest = threat
	}
	if threat.Danger > node.Maximum.Danger ||
		threat.Danger == node.Maximum.Danger && threat.Turn < node.Maximum.Turn {
		node.Maximum = threat
	}
}

// At returns the threats to a tile.
func (m *DangerHitMap) At(pos core.Position) HitMapNode {
	if pos.X < 0 || pos.Y < 0 || pos.Z < 0 || pos.X >= m.width || pos.Y >= m.height || pos.Z >= m.levels {
		return HitMapNode{}
	}
	return m.nodes[(pos.Z*m.height+pos.Y)*m.width+pos.X]
}

// EnemyCanKillOurHeroesAlongThePath reports whether an enemy reaches the
// path's target no later than our hero and is too strong to face there.
func (m *DangerHitMap) EnemyCanKillOurHeroesAlongThePath(path *Path) bool {
	info := m.At(path.TargetTile())
	turn := path.Turn()
	strength := path.HeroStrength()
	return info.Fastest.Danger > 0 && info.Fastest.Turn <= turn && !IsSafeToVisit(strength, info.Fastest.Danger, m.safeAttackRatio) ||
		info.Maximum.Danger > 0 && info.Maximum.Turn <= turn && !IsSafeToVisit(strength, info.Maximum.Danger, m.safeAttackRatio)
}

// IsSafeToVisit reports whether strength can take on danger with the safety margin.
func IsSafeToVisit(strength, danger uint64, safeAttackRatio float64) bool {
	if danger == 0 {
		return true
	}
	return float64(strength)/safeAttackRatio > float64(danger)
}
