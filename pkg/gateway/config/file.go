package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v2"

	"github.com/lumina-press/lumina/pkg/core/assistant"
)

// File is the optional on-disk configuration.
//
//	addr: ":8080"
//	models:
//	  text: gemini-3-pro-preview
//	  live: gemini-2.5-flash-native-audio-preview-09-2025
//	voice: Charon
//	prompts:
//	  critique: "..."
type File struct {
	Addr   string `yaml:"addr" json:"addr"`
	Models struct {
		Text string `yaml:"text" json:"text"`
		Live string `yaml:"live" json:"live"`
	} `yaml:"models" json:"models"`
	Voice       string            `yaml:"voice" json:"voice"`
	Prompts     assistant.Prompts `yaml:"prompts" json:"prompts"`
	CORSOrigins []string          `yaml:"cors_origins" json:"cors_origins"`
}

// LoadFile reads a YAML or JSON configuration file. An empty path yields an
// empty File.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &File{}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
		return cfg, nil
	}
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err == nil {
		return cfg, nil
	}
	cfg = &File{}
	if err := json.Unmarshal(data, cfg); err == nil {
		return cfg, nil
	}

	return nil, fmt.Errorf("unsupported config format: %s", ext)
}

func (f *File) addrOr(def string) string      { return orDefault(f.Addr, def) }
func (f *File) textModelOr(def string) string { return orDefault(f.Models.Text, def) }
func (f *File) liveModelOr(def string) string { return orDefault(f.Models.Live, def) }
func (f *File) voiceOr(def string) string     { return orDefault(f.Voice, def) }

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
