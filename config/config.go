// Package config defines the AgentHub application configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level AgentHub configuration.
type Config struct {
	Server    ServerConfig  `json:"server" yaml:"server"`
	Auth      AuthConfig    `json:"auth" yaml:"auth"`
	AI        AIConfig      `json:"ai" yaml:"ai"`
	Agents    []AgentConfig `json:"agents" yaml:"agents"`
	DataDir   string        `json:"data_dir" yaml:"data_dir"`
	UploadDir string        `json:"upload_dir" yaml:"upload_dir"`
	Archive   string        `json:"archive" yaml:"archive"` // sqlite path, empty disables archiving
	LogLevel  string        `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":8080"
}

// AuthConfig controls API authentication.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass"` // bcrypt hash
}

// AIConfig selects and configures the text-generation provider.
type AIConfig struct {
	Provider string `json:"provider" yaml:"provider"` // "mock", "openai", "ollama"
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key"`
	Model    string `json:"model,omitempty" yaml:"model"`
}

// AgentConfig defines a single agent's configuration.
type AgentConfig struct {
	Type        string         `json:"type" yaml:"type"` // factory type, e.g. "document_processor"
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Settings    map[string]any `json:"settings,omitempty" yaml:"settings"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Auth: AuthConfig{
			AdminUser: "admin",
		},
		AI: AIConfig{
			Provider: "mock",
		},
		DataDir:   "./data",
		UploadDir: "./data/uploads",
		Archive:   "./data/archive.db",
		LogLevel:  "info",
		Agents: []AgentConfig{
			{
				Type:        "document_processor",
				Name:        "DocumentProcessor",
				Description: "Procesador de documentos con IA",
				Settings: map[string]any{
					"supported_formats": []string{"pdf", "docx", "txt", "jpg", "png"},
					"max_file_size":     50 * 1024 * 1024,
				},
			},
		},
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
