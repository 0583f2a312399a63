package core

// DefaultMoveCost is the cost of entering a tile whose move cost is unset.
const DefaultMoveCost = 100

// Directions lists the eight neighbour offsets, straight moves first.
var Directions = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// IsDiagonal reports whether the step from a to b changes both coordinates.
func IsDiagonal(a, b Position) bool {
	return a.X != b.X && a.Y != b.Y
}

// Adjacent reports whether b is one of the eight neighbours of a on the same level.
func Adjacent(a, b Position) bool {
	if a.Z != b.Z || a == b {
		return false
	}
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}

// StepCost is the movement cost of entering tile to from an adjacent tile.
// diagonalPercent scales diagonal steps (141 means 1.41 times the straight cost).
func StepCost(from, to Position, tile Tile, diagonalPercent int) int {
	cost := tile.MoveCost
	if cost <= 0 {
		cost = DefaultMoveCost
	}
	if IsDiagonal(from, to) && diagonalPercent > 0 {
		cost = cost * diagonalPercent / 100
	}
	return cost
}

// Spend applies a step of the given cost to a hero's movement. A hero that
// cannot afford the step but has its full budget may still take it. It
// returns the movement left and whether the step was taken.
func Spend(movementLeft, budget, cost int) (int, bool) {
	if cost <= movementLeft {
		return movementLeft - cost, true
	}
	if movementLeft >= budget && movementLeft > 0 {
		return 0, true
	}
	return movementLeft, false
}
