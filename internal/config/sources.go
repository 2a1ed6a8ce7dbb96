package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kovalyov-valentin/trend-radar/internal/model"
)

// Файл с начальным набором источников для команды seed
type sourcesFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	Name   string         `yaml:"name"`
	Icon   string         `yaml:"icon"`
	Kind   string         `yaml:"source_type"`
	Config map[string]any `yaml:"config"`
	// Не указан - источник активен
	IsActive *bool `yaml:"is_active"`
}

// LoadSources читает источники из yaml файла
func LoadSources(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseSources(data)
}

func ParseSources(data []byte) ([]model.Source, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	sources := make([]model.Source, 0, len(file.Sources))
	for i, entry := range file.Sources {
		if entry.Name == "" || entry.Kind == "" {
			return nil, fmt.Errorf("source #%d: name and source_type are required", i+1)
		}

		cfg, err := json.Marshal(entry.Config)
		if err != nil {
			return nil, fmt.Errorf("source %q config: %w", entry.Name, err)
		}
		if entry.Config == nil {
			cfg = []byte("{}")
		}

		sources = append(sources, model.Source{
			Name:     entry.Name,
			Icon:     entry.Icon,
			Kind:     entry.Kind,
			Config:   cfg,
			IsActive: entry.IsActive == nil || *entry.IsActive,
		})
	}

	return sources, nil
}
