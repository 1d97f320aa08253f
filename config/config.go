package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// ServerConfig defines the inference server endpoint.
type ServerConfig struct {
	URL      string `koanf:"url"`
	Protocol string `koanf:"protocol"`
}

// ModelConfig selects the inference target and how many class results to
// request per image.
type ModelConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
	Classes int    `koanf:"classes"`
}

// RequestConfig related to per-call deadlines
type RequestConfig struct {
	MetadataTimeout time.Duration `koanf:"metadatatimeout"`
	InferTimeout    time.Duration `koanf:"infertimeout"`
}

// AppConfig defines
type AppConfig struct {
	Server  ServerConfig  `koanf:"server"`
	Model   ModelConfig   `koanf:"model"`
	Request RequestConfig `koanf:"request"`
	Debug   bool          `koanf:"debug"`
}

// Config - Global variable to export
var Config AppConfig

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(map[string]any{
		"server.url":              "localhost:8000",
		"server.protocol":         "HTTP",
		"model.name":              "preprocess_resnet50_ensemble",
		"model.classes":           1,
		"request.metadatatimeout": "30s",
		"request.infertimeout":    "60s",
	}, "."), nil); err != nil {
		return err
	}

	// The config file is optional so the binary can run from anywhere with
	// its built-in defaults.
	if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
		if err := k.Load(file.Provider(filePath), parser); err != nil {
			return err
		}
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return err
	}

	if err := k.Unmarshal("", &Config); err != nil {
		return err
	}

	return ValidateConfig(&Config)
}

// ValidateConfig is for custom validation rules for the configuration
// for future use
func ValidateConfig(_ *AppConfig) error {
	return nil
}
