package sim

import (
	"fmt"
	"math/rand"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"

	"heroai-go/core"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Seed       int64   `yaml:"seed"` // 0 picks a random seed
	Players    int     `yaml:"players"`
	Objects    int     `yaml:"objects"`
	WaterLevel float64 `yaml:"water_level"`
	RockLevel  float64 `yaml:"rock_level"`
}

// DefaultGenConfig returns a small two player map.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:      36,
		Height:     36,
		Players:    2,
		Objects:    24,
		WaterLevel: 0.28,
		RockLevel:  0.74,
	}
}

var generatedObjects = []struct {
	kind  core.ObjectKind
	value int
	guard uint64
}{
	{core.ObjectResource, 750, 0},
	{core.ObjectMine, 1500, 150},
	{core.ObjectDwelling, 1200, 100},
	{core.ObjectCreatureBank, 2500, 400},
	{core.ObjectArtifact, 1000, 0},
	{core.ObjectMonster, 300, 200},
}

// Generate creates a random scenario from layered simplex noise.
func Generate(cfg GenConfig) (*Scenario, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid map size %dx%d", cfg.Width, cfg.Height)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	elevNoise := opensimplex.NewNormalized(seed)
	roughNoise := opensimplex.NewNormalized(seed + 1)

	grid := make([][]rune, cfg.Height)
	var open []core.Position
	for y := 0; y < cfg.Height; y++ {
		grid[y] = make([]rune, cfg.Width)
		for x := 0; x < cfg.Width; x++ {
			elev := octaveNoise(elevNoise, float64(x), float64(y), 4, 0.08, 0.5)
			rough := octaveNoise(roughNoise, float64(x), float64(y), 3, 0.12, 0.5)
			glyph := '.'
			switch {
			case elev < cfg.WaterLevel:
				glyph = '~'
			case elev > cfg.RockLevel:
				glyph = '#'
			case rough > 0.66:
				glyph = '%'
			case rough > 0.55:
				glyph = ','
			}
			grid[y][x] = glyph
			if glyph == '.' {
				open = append(open, core.Position{X: x, Y: y})
			}
		}
	}
	rng.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })

	take := func() (core.Position, bool) {
		if len(open) == 0 {
			return core.Position{}, false
		}
		pos := open[0]
		open = open[1:]
		return pos, true
	}

	s := &Scenario{Name: fmt.Sprintf("generated-%d", seed), Day: 1}
	rows := make([]string, cfg.Height)
	for y, row := range grid {
		rows[y] = string(row)
	}
	s.Rows = rows

	for p := 1; p <= cfg.Players; p++ {
		pos, ok := take()
		if !ok {
			return nil, fmt.Errorf("no room for player %d", p)
		}
		id := core.PlayerID(p)
		s.Players = append(s.Players, PlayerSpec{ID: id, Name: fmt.Sprintf("player %d", p), Gold: 5000, AI: true})
		s.Towns = append(s.Towns, core.Town{
			ID: core.TownID(p), Name: fmt.Sprintf("town %d", p), Pos: pos, Owner: id,
			GarrisonArmy: 200, Reinforcements: 300, ReinforcementsCost: 1500,
			CanRecruit: true, RecruitCost: 2500,
		})
		s.Heroes = append(s.Heroes, core.Hero{
			ID: core.HeroID(p), Name: fmt.Sprintf("hero %d", p), Owner: id, Pos: pos,
			Movement: 1500, MaxMovement: 1500, Army: 400 + uint64(rng.Intn(200)),
		})
	}

	for i := 0; i < cfg.Objects; i++ {
		pos, ok := take()
		if !ok {
			break
		}
		template := generatedObjects[rng.Intn(len(generatedObjects))]
		s.Objects = append(s.Objects, ObjectSpec{
			Kind: template.kind.String(),
			MapObject: core.MapObject{
				ID:    core.ObjectID(i + 1),
				Name:  strings.ReplaceAll(template.kind.String(), "_", " "),
				Pos:   pos,
				Value: template.value,
				Guard: template.guard,
			},
		})
	}
	return s, nil
}

// octaveNoise sums several octaves of noise, normalized to [0,1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total, amplitude, maxValue := 0.0, 1.0, 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxValue
}
