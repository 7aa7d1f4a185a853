package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/usecase"
	"gopkg.in/yaml.v3"
)

// PromptsConfig contains all prompt configurations loaded from YAML
type PromptsConfig struct {
	RAG     RAGPrompts    `yaml:"rag"`
	History HistoryWindow `yaml:"history"`
}

// RAGPrompts contains answer chain prompts
type RAGPrompts struct {
	SystemPrompt        string `yaml:"system_prompt"`
	ContextualizePrompt string `yaml:"contextualize_prompt"`
	Apology             string `yaml:"apology"`
}

// HistoryWindow contains history truncation settings
type HistoryWindow struct {
	MaxCount   int `yaml:"max_count"`
	MaxMinutes int `yaml:"max_minutes"`
}

// LoadPromptsConfig loads prompts configuration from YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"/etc/wa-rag-bridge/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
		if configPath != "" {
			return nil, &ConfigError{Field: "PROMPTS_CONFIG_PATH", Message: err.Error()}
		}
	}

	if data == nil {
		slog.Debug("no prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	slog.Info("loading prompts", "path", loadedPath)

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}

	config.fillDefaults()
	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()

	if c.RAG.SystemPrompt == "" {
		c.RAG.SystemPrompt = defaults.RAG.SystemPrompt
	}
	if c.RAG.ContextualizePrompt == "" {
		c.RAG.ContextualizePrompt = defaults.RAG.ContextualizePrompt
	}
	if c.RAG.Apology == "" {
		c.RAG.Apology = defaults.RAG.Apology
	}

	if c.History.MaxCount == 0 {
		c.History.MaxCount = defaults.History.MaxCount
	}
	if c.History.MaxMinutes == 0 {
		c.History.MaxMinutes = defaults.History.MaxMinutes
	}
}

// DefaultPromptsConfig returns the default prompts configuration
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		RAG: RAGPrompts{
			SystemPrompt:        usecase.DefaultSystemPrompt,
			ContextualizePrompt: usecase.DefaultContextualizePrompt,
			Apology:             domain.DefaultApologyText,
		},
		History: HistoryWindow{
			MaxCount:   10,
			MaxMinutes: 120,
		},
	}
}
