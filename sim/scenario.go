package sim

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"heroai-go/core"
)

var terrainGlyphs = map[rune]core.Tile{
	'.': {Terrain: core.TerrainGrass, MoveCost: 100},
	',': {Terrain: core.TerrainRough, MoveCost: 125},
	'%': {Terrain: core.TerrainSwamp, MoveCost: 175},
	'~': {Terrain: core.TerrainWater, MoveCost: 100},
	'#': {Terrain: core.TerrainRock, MoveCost: 100},
}

func glyphOf(tile core.Tile) rune {
	switch tile.Terrain {
	case core.TerrainRough:
		return ','
	case core.TerrainSwamp:
		return '%'
	case core.TerrainWater:
		return '~'
	case core.TerrainRock:
		return '#'
	}
	return '.'
}

// PlayerSpec describes a player in a scenario file.
type PlayerSpec struct {
	ID   core.PlayerID `yaml:"id"`
	Name string        `yaml:"name"`
	Gold int           `yaml:"gold"`
	AI   bool          `yaml:"ai"`
	Keys []string      `yaml:"keys,omitempty"`
}

// ObjectSpec is a map object with its kind spelled out.
type ObjectSpec struct {
	Kind           string `yaml:"kind"`
	core.MapObject `yaml:",inline"`
}

// GuardSpec places creatures guarding a tile.
type GuardSpec struct {
	Pos      core.Position `yaml:"pos"`
	Strength uint64        `yaml:"strength"`
}

// Scenario is the YAML description of a match. Each row is one line of the
// map, one glyph per tile: '.' grass, ',' rough, '%' swamp, '~' water, '#' rock.
type Scenario struct {
	Name            string          `yaml:"name"`
	Day             int             `yaml:"day,omitempty"`
	Rules           *Rules          `yaml:"rules,omitempty"`
	Rows            []string        `yaml:"rows"`
	Underground     []string        `yaml:"underground,omitempty"`
	Players         []PlayerSpec    `yaml:"players"`
	Heroes          []core.Hero     `yaml:"heroes,omitempty"`
	Towns           []core.Town     `yaml:"towns,omitempty"`
	Objects         []ObjectSpec    `yaml:"objects,omitempty"`
	Guards          []GuardSpec     `yaml:"guards,omitempty"`
	QuestsCompleted []core.ObjectID `yaml:"quests_completed,omitempty"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if len(s.Rows) == 0 {
		return nil, fmt.Errorf("scenario %q has no rows", s.Name)
	}
	return &s, nil
}

// WriteScenario writes a scenario file.
func WriteScenario(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario: %w", err)
	}
	return nil
}

// Build creates the world the scenario describes.
func (s *Scenario) Build(logger *zap.Logger) (*World, error) {
	width := 0
	for _, row := range append(append([]string(nil), s.Rows...), s.Underground...) {
		width = max(width, len([]rune(row)))
	}
	height := max(len(s.Rows), len(s.Underground))
	levels := 1
	if len(s.Underground) > 0 {
		levels = 2
	}

	rules := DefaultRules()
	if s.Rules != nil {
		rules = *s.Rules
	}
	w := NewWorld(width, height, levels, rules, logger)
	if s.Day > 0 {
		w.day = s.Day
	}

	for z, rows := range [][]string{s.Rows, s.Underground} {
		for y, row := range rows {
			for x, glyph := range []rune(row) {
				tile, ok := terrainGlyphs[glyph]
				if !ok {
					return nil, fmt.Errorf("unknown glyph %q at (%d,%d,%d)", glyph, x, y, z)
				}
				if err := w.SetTile(core.Position{X: x, Y: y, Z: z}, tile); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, p := range s.Players {
		keys := make(map[string]bool, len(p.Keys))
		for _, k := range p.Keys {
			keys[k] = true
		}
		w.AddPlayer(PlayerState{ID: p.ID, Name: p.Name, Gold: p.Gold, AI: p.AI, Keys: keys})
	}
	for _, t := range s.Towns {
		if err := w.AddTown(t); err != nil {
			return nil, err
		}
	}
	for _, h := range s.Heroes {
		if _, err := w.AddHero(h); err != nil {
			return nil, err
		}
	}
	for _, o := range s.Objects {
		kind, err := core.ParseObjectKind(o.Kind)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", o.ID, err)
		}
		obj := o.MapObject
		obj.Kind = kind
		if err := w.AddObject(obj); err != nil {
			return nil, err
		}
	}
	for _, g := range s.Guards {
		if err := w.SetGuard(g.Pos, g.Strength); err != nil {
			return nil, err
		}
	}
	for _, q := range s.QuestsCompleted {
		w.CompleteQuest(q)
	}
	return w, nil
}

// Snapshot captures the world as a scenario.
func (w *World) Snapshot(name string) *Scenario {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := &Scenario{Name: name, Day: w.day, Rules: &w.rules}
	for z := 0; z < w.levels && z < 2; z++ {
		rows := make([]string, w.height)
		for y := 0; y < w.height; y++ {
			var b strings.Builder
			for x := 0; x < w.width; x++ {
				i, _ := w.index(core.Position{X: x, Y: y, Z: z})
				b.WriteRune(glyphOf(w.tiles[i]))
				if g := w.tiles[i].Guard; g > 0 {
					s.Guards = append(s.Guards, GuardSpec{Pos: core.Position{X: x, Y: y, Z: z}, Strength: g})
				}
			}
			rows[y] = b.String()
		}
		if z == 0 {
			s.Rows = rows
		} else {
			s.Underground = rows
		}
	}

	for _, p := range w.players {
		spec := PlayerSpec{ID: p.ID, Name: p.Name, Gold: p.Gold, AI: p.AI}
		for k, ok := range p.Keys {
			if ok {
				spec.Keys = append(spec.Keys, k)
			}
		}
		s.Players = append(s.Players, spec)
	}
	s.Heroes = w.heroesWhere(func(*core.Hero) bool { return true })
	for _, t := range w.towns {
		s.Towns = append(s.Towns, *t)
	}
	for _, o := range w.objects {
		obj := *o
		obj.Kind = 0
		s.Objects = append(s.Objects, ObjectSpec{Kind: o.Kind.String(), MapObject: obj})
	}
	for q, done := range w.quests {
		if done {
			s.QuestsCompleted = append(s.QuestsCompleted, q)
		}
	}
	s.sort()
	return s
}

func (s *Scenario) sort() {
	sort.Slice(s.Players, func(i, j int) bool { return s.Players[i].ID < s.Players[j].ID })
	for i := range s.Players {
		sort.Strings(s.Players[i].Keys)
	}
	sort.Slice(s.Towns, func(i, j int) bool { return s.Towns[i].ID < s.Towns[j].ID })
	sort.Slice(s.Objects, func(i, j int) bool { return s.Objects[i].ID < s.Objects[j].ID })
	sort.Slice(s.QuestsCompleted, func(i, j int) bool { return s.QuestsCompleted[i] < s.QuestsCompleted[j] })
}
