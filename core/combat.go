package core

import "math"

// CanBeat reports whether an army of the given strength wins against danger.
func CanBeat(army, danger uint64) bool {
	return army > danger
}

// BattleLoss estimates the army strength lost when army fights danger and wins.
// The loss grows with the cube of the strength ratio and never exceeds the army.
func BattleLoss(army, danger uint64) uint64 {
	if danger == 0 || army == 0 {
		return 0
	}
	if danger >= army {
		return army
	}
	ratio := float64(danger) / float64(army)
	loss := uint64(math.Round(float64(army) * ratio * ratio * ratio))
	return min(loss, army)
}
