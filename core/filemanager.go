package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileManager reads and writes the engine's files (scenarios, turn reports)
// relative to a root directory.
type FileManager struct {
	rootDir string
}

// NewFileManager creates a new FileManager with the given root directory.
func NewFileManager(rootDir string) *FileManager {
	return &FileManager{rootDir: rootDir}
}

// GetPath returns the full path of a file or directory under the root.
func (fm *FileManager) GetPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(fm.rootDir, path)
}

// PathExists returns true if the path exists, false otherwise.
func (fm *FileManager) PathExists(path string) bool {
	_, err := os.Stat(fm.GetPath(path))
	return !os.IsNotExist(err)
}

// CreateDirectory creates a directory if it does not exist.
func (fm *FileManager) CreateDirectory(directory string) error {
	if fm.PathExists(directory) {
		return nil
	}
	return os.MkdirAll(fm.GetPath(directory), os.ModePerm)
}

// ReadFile reads the contents of a file and returns the data.
func (fm *FileManager) ReadFile(path string) ([]byte, error) {
	if !fm.PathExists(path) {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(fm.GetPath(path))
}

// LoadJSONFile loads a JSON file and unmarshals it into v.
func (fm *FileManager) LoadJSONFile(path string, v any) error {
	data, err := fm.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", path, err)
	}
	return nil
}

// SaveJSONFile marshals data and saves it to a JSON file, creating parent directories.
func (fm *FileManager) SaveJSONFile(data any, path string) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode data to JSON for %s: %w", path, err)
	}
	return fm.write(path, jsonData)
}

// LoadYAMLFile loads a YAML file and unmarshals it into v.
func (fm *FileManager) LoadYAMLFile(path string, v any) error {
	data, err := fm.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode YAML from %s: %w", path, err)
	}
	return nil
}

// SaveYAMLFile marshals data and saves it to a YAML file, creating parent directories.
func (fm *FileManager) SaveYAMLFile(data any, path string) error {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data to YAML for %s: %w", path, err)
	}
	return fm.write(path, yamlData)
}

// SaveReport writes a per-player, per-day JSON report under reports/.
func (fm *FileManager) SaveReport(player PlayerID, day int, report any) (string, error) {
	path := filepath.Join("reports", fmt.Sprintf("player-%d", player), fmt.Sprintf("day-%03d.json", day))
	if err := fm.SaveJSONFile(report, path); err != nil {
		return "", err
	}
	return fm.GetPath(path), nil
}

func (fm *FileManager) write(path string, data []byte) error {
	if err := fm.CreateDirectory(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(fm.GetPath(path), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
