// Package config holds the run configuration: which label file, image and
// models to benchmark, and how.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

//go:embed schema.json
var schemaSource string

const schemaURL = "parrot.schema.json"

// Config is the YAML configuration file.
type Config struct {
	Labels         string   `yaml:"labels" json:"labels"`
	LabelsEncoding string   `yaml:"labels_encoding" json:"labels_encoding"`
	Image          string   `yaml:"image" json:"image"`
	Models         []string `yaml:"models" json:"models"` // "path[@device]"
	Iterations     int      `yaml:"iterations" json:"iterations"`
	TopK           int      `yaml:"top_k" json:"top_k"`
	Threshold      float32  `yaml:"threshold" json:"threshold"`
	Threads        int      `yaml:"threads" json:"threads"`

	ONNXRuntimeLibrary string `yaml:"onnxruntime_library,omitempty" json:"onnxruntime_library,omitempty"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	// File enables the rotating JSON log when non-empty.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// Default returns the bird classifier demo: the quantized iNaturalist bird
// model on the CPU, then its Edge TPU build.
func Default() *Config {
	return &Config{
		Labels:         "inat_bird_labels.txt",
		LabelsEncoding: "utf-8",
		Image:          "Mandarin_duck_(Aix_galericulata)_Franconville_01.jpg",
		Models: []string{
			"mobilenet_v2_1.0_224_inat_bird_quant.tflite",
			"mobilenet_v2_1.0_224_inat_bird_quant_edgetpu.tflite",
		},
		Iterations: 5,
		TopK:       1,
		Threshold:  0.0,
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path, validates it against the embedded schema
// and overlays it on Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	schema, err := jsonschema.CompileString(schemaURL, schemaSource)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}
	return cfg, nil
}
