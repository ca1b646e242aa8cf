package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptPack overrides the built-in system prompts. Empty fields keep the
// default. Templates use Go text/template syntax; see the orchestrator
// package for the available fields.
type PromptPack struct {
	ToolSelection string `yaml:"tool_selection,omitempty"`
	Gameplay      string `yaml:"gameplay,omitempty"`
	Vision        string `yaml:"vision,omitempty"`
	DirectVision  string `yaml:"direct_vision,omitempty"`
	MemoryCleanup string `yaml:"memory_cleanup,omitempty"`
}

// LoadPromptPack reads a prompt override file. An empty path yields an
// empty pack.
func LoadPromptPack(path string) (*PromptPack, error) {
	if path == "" {
		return &PromptPack{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("prompt pack '%s' not found", path)
		}
		return nil, err
	}

	var pack PromptPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("prompt pack '%s': %w", path, err)
	}
	return &pack, nil
}

// SavePromptPack writes pack as YAML, used by `gbagent prompts export`.
func SavePromptPack(path string, pack PromptPack) error {
	data, err := yaml.Marshal(pack)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
