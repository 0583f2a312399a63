package game

import (
	"container/heap"

	"go.uber.org/zap"

	"heroai-go/core"
)

// SearchStats summarizes one path graph build.
type SearchStats struct {
	Expanded    int
	Committed   int
	ChainPasses int
	Exchanges   int
}

// Pathfinder builds the path graph: a label-correcting search from every
// actor's seed alternated with hero chain passes until no new exchange
// survives.
type Pathfinder struct {
	storage *NodeStorage
	config  core.PathfindingConfig
	world   *worldCache
	logger  *zap.Logger
}

// NewPathfinder creates a new Pathfinder.
func NewPathfinder(config core.PathfindingConfig, danger core.DangerConfig, logger *zap.Logger) *Pathfinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pathfinder{
		storage: NewNodeStorage(config, danger, logger),
		config:  config,
		logger:  logger,
	}
}

// Storage exposes the underlying node storage.
func (p *Pathfinder) Storage() *NodeStorage { return p.storage }

// UpdatePaths rebuilds the graph for the given heroes. With useHeroChain the
// garrisons of owned towns join as actors and exchanges are computed.
func (p *Pathfinder) UpdatePaths(world core.WorldInterface, heroes []core.Hero, useHeroChain bool) SearchStats {
	p.world = newWorldCache(world)

	var towns []core.Town
	if useHeroChain {
		towns = p.world.towns
	}
	actors := newActorSet(heroes, towns)
	p.storage.Initialize(actors, p.world)

	var stats SearchStats
	p.search(p.storage.InitialNodes(), &stats)

	if useHeroChain {
		limit := p.storage.Slots()
		if p.config.MaxChainPasses > 0 && p.config.MaxChainPasses < limit {
			limit = p.config.MaxChainPasses
		}
		for pass := 0; pass < limit; pass++ {
			added := p.storage.CalculateHeroChain()
			if len(added) == 0 {
				break
			}
			stats.ChainPasses++
			stats.Exchanges += len(added)
			p.search(added, &stats)
		}
	}

	p.logger.Debug("paths updated",
		zap.Int("heroes", len(heroes)),
		zap.Int("expanded", stats.Expanded),
		zap.Int("committed", stats.Committed),
		zap.Int("chain_passes", stats.ChainPasses),
		zap.Int("exchanges", stats.Exchanges))
	return stats
}

func (p *Pathfinder) search(seeds []NodeRef, stats *SearchStats) {
	frontier := &Frontier{}
	heap.Init(frontier)
	for _, ref := range seeds {
		p.storage.push(frontier, ref)
	}

	limit := len(p.storage.nodes) * 4
	for expanded := 0; ; expanded++ {
		ref, ok := p.storage.pop(frontier)
		if !ok {
			return
		}
		stats.Expanded++
		if expanded > limit {
			p.logger.Warn("search expansion limit reached", zap.Int("limit", limit))
			return
		}

		candidates := p.storage.CalculateNeighbours(ref)
		candidates = append(candidates, p.storage.CalculateTeleportations(ref)...)
		for _, candidate := range candidates {
			if dst, ok := p.storage.Commit(candidate, ref); ok {
				stats.Committed++
				p.storage.push(frontier, dst)
			}
		}
	}
}

// GetPathInfo returns every path ending at tile.
func (p *Pathfinder) GetPathInfo(tile core.Position) []Path {
	if p.world == nil {
		return nil
	}
	return p.storage.GetChainInfo(tile, p.world.isLand(tile))
}
