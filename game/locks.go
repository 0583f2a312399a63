package game

import (
	"fmt"
	"sync"

	"heroai-go/core"
)

// HeroLockReason tells why a hero is unavailable for new goals.
type HeroLockReason uint8

const (
	NotLocked HeroLockReason = iota
	// LockStartup is set at the start of a turn for heroes that must stay put.
	LockStartup
	// LockDefence is set for heroes assigned to defend a town.
	LockDefence
	// LockHeroChain is set for heroes taking part in an unfinished chain.
	LockHeroChain
)

func (r HeroLockReason) String() string {
	switch r {
	case NotLocked:
		return "not_locked"
	case LockStartup:
		return "startup"
	case LockDefence:
		return "defence"
	case LockHeroChain:
		return "hero_chain"
	}
	return fmt.Sprintf("lock(%d)", uint8(r))
}

// LockManager holds the per-turn lock state. It is safe for concurrent
// readers such as the diagnostics page.
type LockManager struct {
	mu       sync.RWMutex
	locked   map[core.HeroID]HeroLockReason
	reserved map[core.Position]core.HeroID
}

// NewLockManager creates a new LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		locked:   make(map[core.HeroID]HeroLockReason),
		reserved: make(map[core.Position]core.HeroID),
	}
}

// Lock sets the lock reason of a hero.
func (m *LockManager) Lock(hero core.HeroID, reason HeroLockReason) {
	if hero == 0 || reason == NotLocked {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked[hero] = reason
}

// Unlock releases a hero and any tiles it reserved.
func (m *LockManager) Unlock(hero core.HeroID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, hero)
	for pos, owner := range m.reserved {
		if owner == hero {
			delete(m.reserved, pos)
		}
	}
}

// IsLocked reports whether a hero has any lock.
func (m *LockManager) IsLocked(hero core.HeroID) bool {
	return m.Reason(hero) != NotLocked
}

// Reason returns why a hero is locked.
func (m *LockManager) Reason(hero core.HeroID) HeroLockReason {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked[hero]
}

// AnyLocked reports whether any of the heroes is locked.
func (m *LockManager) AnyLocked(heroes []core.HeroID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, hero := range heroes {
		if m.locked[hero] != NotLocked {
			return true
		}
	}
	return false
}

// Reserve marks a tile as the target of a hero's chain.
func (m *LockManager) Reserve(pos core.Position, hero core.HeroID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved[pos] = hero
}

// IsReserved reports whether pos is reserved by a hero other than hero.
func (m *LockManager) IsReserved(hero core.HeroID, pos core.Position) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.reserved[pos]
	return ok && owner != hero
}

// Snapshot returns a copy of the lock map.
func (m *LockManager) Snapshot() map[core.HeroID]HeroLockReason {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[core.HeroID]HeroLockReason, len(m.locked))
	for hero, reason := range m.locked {
		out[hero] = reason
	}
	return out
}

// Reset drops every lock and reservation.
func (m *LockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.locked)
	clear(m.reserved)
}
