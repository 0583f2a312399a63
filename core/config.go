package core

import (
	"fmt"
	"os"
	"sync"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"
)

// EngineConfig holds the configuration for the turn engine.
type EngineConfig struct {
	// MaxPasses caps the number of Planning passes in one turn.
	MaxPasses   int     `yaml:"max_passes"`
	MinPriority float64 `yaml:"min_priority"`
}

// PathfindingConfig holds the configuration for the path graph and chain search.
type PathfindingConfig struct {
	SlotsPerHero   int  `yaml:"slots_per_hero"`
	MaxSlots       int  `yaml:"max_slots"`
	MaxTurns       int  `yaml:"max_turns"`
	HeroChainTurns int  `yaml:"hero_chain_turns"`
	MaxChainPasses int  `yaml:"max_chain_passes"`
	UseHeroChain   bool `yaml:"use_hero_chain"`
	// DiagonalCost is the percentage of the terrain cost paid for a diagonal step.
	DiagonalCost       int `yaml:"diagonal_cost"`
	TownPortalMovement int `yaml:"town_portal_movement"`
	TownPortalMana     int `yaml:"town_portal_mana"`
	// TeleportMovement is the movement a teleporter jump costs.
	TeleportMovement int `yaml:"teleport_movement"`
}

// DangerConfig holds settings for danger evaluation.
type DangerConfig struct {
	// SafeAttackRatio is how much stronger an army must be than a threat to engage it.
	SafeAttackRatio float64 `yaml:"safe_attack_ratio"`
	// MaxLossRatio is the largest share of its army a hero may lose to a guard
	// on the way. A costlier guard ends the path there.
	MaxLossRatio float64 `yaml:"max_loss_ratio"`
}

// PriorityConfig holds the weights of the priority evaluator.
type PriorityConfig struct {
	DangerWeight      float64 `yaml:"danger_weight"`
	CostWeight        float64 `yaml:"cost_weight"`
	CostScale         float64 `yaml:"cost_scale"`
	ClosestWayWeight  float64 `yaml:"closest_way_weight"`
	ArmyLossWeight    float64 `yaml:"army_loss_weight"`
	ScoutPenalty      float64 `yaml:"scout_penalty"`
	ChainScoutPenalty float64 `yaml:"chain_scout_penalty"`
	MaxGoldPressure   float64 `yaml:"max_gold_pressure"`
	// Formula optionally replaces the built-in weighting. It is an expr-lang
	// expression over the evaluation context returning a number.
	Formula string `yaml:"formula,omitempty"`
}

// BehaviorConfig holds thresholds used by the candidate generators.
type BehaviorConfig struct {
	RecruitGoldThreshold int  `yaml:"recruit_gold_threshold"`
	BuyArmyFromDay       int  `yaml:"buy_army_from_day"`
	CaptureObjects       bool `yaml:"capture_objects"`
	RecruitHeroes        bool `yaml:"recruit_heroes"`
	BuyArmy              bool `yaml:"buy_army"`
	Defence              bool `yaml:"defence"`
}

// JournalConfig holds settings for the decision journal.
type JournalConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// WebManagerConfig holds web UI related settings.
type WebManagerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config corresponds to the structure of the YAML config file.
type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	Pathfinding PathfindingConfig `yaml:"pathfinding"`
	Danger      DangerConfig      `yaml:"danger"`
	Priority    PriorityConfig    `yaml:"priority"`
	Behaviors   BehaviorConfig    `yaml:"behaviors"`
	Journal     JournalConfig     `yaml:"journal"`
	WebManager  WebManagerConfig  `yaml:"webmanager"`
	Log         LogConfig         `yaml:"log"`
}

// DefaultConfig returns the configuration written on first start.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxPasses:   64,
			MinPriority: 0.01,
		},
		Pathfinding: PathfindingConfig{
			SlotsPerHero:       5,
			MaxSlots:           40,
			MaxTurns:           6,
			HeroChainTurns:     1,
			MaxChainPasses:     8,
			UseHeroChain:       true,
			DiagonalCost:       141,
			TownPortalMovement: 0,
			TownPortalMana:     16,
		},
		Danger: DangerConfig{
			SafeAttackRatio: 1.5,
			MaxLossRatio:    0.5,
		},
		Priority: PriorityConfig{
			DangerWeight:      1.0,
			CostWeight:        1.0,
			CostScale:         1000,
			ClosestWayWeight:  1.0,
			ArmyLossWeight:    1.0,
			ScoutPenalty:      0.5,
			ChainScoutPenalty: 0.1,
			MaxGoldPressure:   0.3,
		},
		Behaviors: BehaviorConfig{
			RecruitGoldThreshold: 10000,
			BuyArmyFromDay:       2,
			CaptureObjects:       true,
			RecruitHeroes:        true,
			BuyArmy:              true,
			Defence:              true,
		},
		Journal: JournalConfig{
			Path:    "journal.db",
			Enabled: false,
		},
		WebManager: WebManagerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigManager handles loading and saving of the engine's configuration.
type ConfigManager struct {
	configPath string
	config     *Config
	lock       sync.Mutex
}

// NewConfigManager creates and initializes a new ConfigManager. A missing file
// is created with the default configuration.
func NewConfigManager(path string) (*ConfigManager, error) {
	cm := &ConfigManager{
		configPath: path,
	}

	exists, err := cm.LoadConfig()
	if err != nil {
		return nil, err
	}
	if !exists {
		cm.config = DefaultConfig()
		if err := cm.SaveConfig(); err != nil {
			return nil, fmt.Errorf("failed to save config: %w", err)
		}
	}
	if err := cm.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cm, nil
}

// Validate checks that the configuration values make sense.
func (cm *ConfigManager) Validate() error {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.config.Validate()
}

// Validate checks that the configuration values make sense.
func (c *Config) Validate() error {
	if c.Engine.MaxPasses < 1 {
		return fmt.Errorf("engine.max_passes must be positive, got %d", c.Engine.MaxPasses)
	}
	if c.Engine.MinPriority < 0 {
		return fmt.Errorf("engine.min_priority must not be negative, got %v", c.Engine.MinPriority)
	}
	if c.Pathfinding.SlotsPerHero < 1 {
		return fmt.Errorf("pathfinding.slots_per_hero must be positive, got %d", c.Pathfinding.SlotsPerHero)
	}
	if c.Pathfinding.MaxSlots < c.Pathfinding.SlotsPerHero {
		return fmt.Errorf("pathfinding.max_slots (%d) is below slots_per_hero (%d)", c.Pathfinding.MaxSlots, c.Pathfinding.SlotsPerHero)
	}
	if c.Pathfinding.MaxTurns < 1 {
		return fmt.Errorf("pathfinding.max_turns must be positive, got %d", c.Pathfinding.MaxTurns)
	}
	if c.Pathfinding.DiagonalCost < 100 {
		return fmt.Errorf("pathfinding.diagonal_cost must be at least 100, got %d", c.Pathfinding.DiagonalCost)
	}
	if c.Pathfinding.TeleportMovement < 0 {
		return fmt.Errorf("pathfinding.teleport_movement must not be negative, got %d", c.Pathfinding.TeleportMovement)
	}
	if c.Danger.SafeAttackRatio < 1 {
		return fmt.Errorf("danger.safe_attack_ratio must be at least 1, got %v", c.Danger.SafeAttackRatio)
	}
	if c.Danger.MaxLossRatio <= 0 || c.Danger.MaxLossRatio > 1 {
		return fmt.Errorf("danger.max_loss_ratio must be in (0, 1], got %v", c.Danger.MaxLossRatio)
	}
	if c.Priority.Formula != "" {
		if _, err := expr.Compile(c.Priority.Formula, expr.Env(FormulaEnv{}), expr.AsFloat64()); err != nil {
			return fmt.Errorf("priority.formula does not compile: %w", err)
		}
	}
	return nil
}

// FormulaEnv is the environment a priority formula is evaluated in.
type FormulaEnv struct {
	Danger          float64 `expr:"danger"`
	Strength        float64 `expr:"strength"`
	Cost            float64 `expr:"cost"`
	ArmyLoss        float64 `expr:"army_loss"`
	ClosestWayRatio float64 `expr:"closest_way_ratio"`
	Reward          float64 `expr:"reward"`
	GoldCost        float64 `expr:"gold_cost"`
	GoldPressure    float64 `expr:"gold_pressure"`
	Scout           bool    `expr:"scout"`
	Exchanges       int     `expr:"exchanges"`
	Turns           int     `expr:"turns"`
}

// LoadConfig loads the configuration from the specified YAML file.
func (cm *ConfigManager) LoadConfig() (bool, error) {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	file, err := os.ReadFile(cm.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(file, config); err != nil {
		return false, fmt.Errorf("failed to decode YAML from config file: %w", err)
	}
	cm.config = config
	return true, nil
}

// saveConfig is the internal, non-locking implementation of saving the configuration.
func (cm *ConfigManager) saveConfig() error {
	data, err := yaml.Marshal(cm.config)
	if err != nil {
		return fmt.Errorf("failed to encode config to YAML: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write to config file: %w", err)
	}
	return nil
}

// SaveConfig saves the current configuration to the YAML file.
func (cm *ConfigManager) SaveConfig() error {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.saveConfig()
}

// GetConfig returns the entire configuration.
func (cm *ConfigManager) GetConfig() *Config {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	return cm.config
}

// SetConfig sets the configuration for testing purposes.
func (cm *ConfigManager) SetConfig(config *Config) {
	cm.lock.Lock()
	defer cm.lock.Unlock()
	cm.config = config
}

// UpdatePriority replaces the priority weights and saves the config.
func (cm *ConfigManager) UpdatePriority(priority PriorityConfig) error {
	cm.lock.Lock()
	defer cm.lock.Unlock()

	updated := *cm.config
	updated.Priority = priority
	if err := updated.Validate(); err != nil {
		return err
	}
	cm.config = &updated
	return cm.saveConfig()
}
