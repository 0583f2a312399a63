package game

import (
	"heroai-go/core"
)

// BuildAnalyzer tracks how much gold is already promised to town development.
type BuildAnalyzer struct {
	maxGoldPressure float64
	goldPressure    float64
	pending         int
}

// NewBuildAnalyzer creates a new BuildAnalyzer.
func NewBuildAnalyzer(maxGoldPressure float64) *BuildAnalyzer {
	return &BuildAnalyzer{maxGoldPressure: maxGoldPressure}
}

// Update recomputes gold pressure as the share of available gold promised to pending buildings.
func (b *BuildAnalyzer) Update(world core.WorldInterface) {
	b.pending = 0
	for _, town := range world.Towns() {
		b.pending += town.PendingBuildCost
	}
	gold := world.Gold()
	if b.pending == 0 {
		b.goldPressure = 0
		return
	}
	pressure := float64(b.pending) / float64(b.pending+max(gold, 0))
	b.goldPressure = min(pressure, b.maxGoldPressure)
}

// GoldPressure is in [0, max_gold_pressure]; higher means gold is scarce.
func (b *BuildAnalyzer) GoldPressure() float64 { return b.goldPressure }

// PendingCost is the total cost of the buildings waiting for gold.
func (b *BuildAnalyzer) PendingCost() int { return b.pending }
