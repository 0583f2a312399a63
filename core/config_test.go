package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigManager_CreatesDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)
	assert.FileExists(t, configPath)
	assert.Equal(t, DefaultConfig(), cm.GetConfig())
}

func TestConfigManager_LoadOverridesDefaults(t *testing.T) {
	configContent := `
engine:
  max_passes: 10
pathfinding:
  slots_per_hero: 3
  max_slots: 12
danger:
  safe_attack_ratio: 2
priority:
  formula: "reward / (1 + danger / strength)"
webmanager:
  port: 9090
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)

	config := cm.GetConfig()
	assert.Equal(t, 10, config.Engine.MaxPasses)
	assert.Equal(t, 0.01, config.Engine.MinPriority, "unset keys keep their defaults")
	assert.Equal(t, 3, config.Pathfinding.SlotsPerHero)
	assert.Equal(t, 2.0, config.Danger.SafeAttackRatio)
	assert.Equal(t, 9090, config.WebManager.Port)
	assert.Equal(t, "127.0.0.1", config.WebManager.Host)
}

func TestConfigManager_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero slots", "pathfinding:\n  slots_per_hero: 0\n"},
		{"reckless attack ratio", "danger:\n  safe_attack_ratio: 0.5\n"},
		{"broken formula", "priority:\n  formula: \"reward +\"\n"},
		{"negative threshold", "engine:\n  min_priority: -1\n"},
		{"no acceptable loss", "danger:\n  max_loss_ratio: 0\n"},
		{"loss above the army", "danger:\n  max_loss_ratio: 1.5\n"},
		{"negative teleport movement", "pathfinding:\n  teleport_movement: -100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.content), 0644))
			_, err := NewConfigManager(configPath)
			assert.Error(t, err)
		})
	}
}

func TestConfigManager_UpdatePriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	cm, err := NewConfigManager(configPath)
	require.NoError(t, err)

	priority := cm.GetConfig().Priority
	priority.DangerWeight = 3
	require.NoError(t, cm.UpdatePriority(priority))

	cm2, err := NewConfigManager(configPath)
	require.NoError(t, err)
	assert.Equal(t, 3.0, cm2.GetConfig().Priority.DangerWeight)

	priority.Formula = "not valid ("
	assert.Error(t, cm.UpdatePriority(priority))
	assert.Equal(t, "", cm.GetConfig().Priority.Formula)
}
