package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"heroai-go/core"
)

func TestLockManager_Lock(t *testing.T) {
	m := NewLockManager()
	assert.False(t, m.IsLocked(1))

	m.Lock(1, LockDefence)
	m.Lock(0, LockHeroChain)
	m.Lock(2, NotLocked)
	assert.Equal(t, LockDefence, m.Reason(1))
	assert.True(t, m.AnyLocked([]core.HeroID{3, 1}))
	assert.False(t, m.AnyLocked([]core.HeroID{0, 2}))
	assert.Equal(t, "defence", m.Reason(1).String())

	m.Lock(1, LockHeroChain)
	assert.Equal(t, map[core.HeroID]HeroLockReason{1: LockHeroChain}, m.Snapshot())

	m.Unlock(1)
	assert.False(t, m.IsLocked(1))
}

func TestLockManager_Reserve(t *testing.T) {
	m := NewLockManager()
	tile := core.Position{X: 3, Y: 4}

	m.Reserve(tile, 1)
	assert.True(t, m.IsReserved(2, tile))
	assert.False(t, m.IsReserved(1, tile), "a hero never blocks itself")

	m.Unlock(1)
	assert.False(t, m.IsReserved(2, tile), "unlocking releases reservations")

	m.Reserve(tile, 1)
	m.Lock(1, LockStartup)
	m.Reset()
	assert.False(t, m.IsReserved(2, tile))
	assert.Empty(t, m.Snapshot())
}
