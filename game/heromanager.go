package game

import (
	"sort"

	"heroai-go/core"
)

// HeroRole tells main armies apart from scouts.
type HeroRole uint8

const (
	RoleScout HeroRole = iota
	RoleMain
)

func (r HeroRole) String() string {
	if r == RoleMain {
		return "main"
	}
	return "scout"
}

// HeroManager assigns roles to the player's heroes.
type HeroManager struct {
	roles     map[core.HeroID]HeroRole
	strongest core.HeroID
}

// NewHeroManager creates a new HeroManager.
func NewHeroManager() *HeroManager {
	return &HeroManager{roles: make(map[core.HeroID]HeroRole)}
}

// Update recomputes roles: the strongest hero and every hero with at least half its army are main.
func (m *HeroManager) Update(heroes []core.Hero) {
	clear(m.roles)
	m.strongest = 0
	if len(heroes) == 0 {
		return
	}
	sorted := append([]core.Hero(nil), heroes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Army != sorted[j].Army {
			return sorted[i].Army > sorted[j].Army
		}
		return sorted[i].ID < sorted[j].ID
	})
	m.strongest = sorted[0].ID
	top := sorted[0].Army
	for _, hero := range sorted {
		if hero.Army*2 >= top {
			m.roles[hero.ID] = RoleMain
		} else {
			m.roles[hero.ID] = RoleScout
		}
	}
}

// Role returns the role of a hero. Unknown heroes are scouts.
func (m *HeroManager) Role(hero core.HeroID) HeroRole {
	return m.roles[hero]
}

// Strongest returns the hero with the largest army.
func (m *HeroManager) Strongest() core.HeroID {
	return m.strongest
}
