//go:build !tinygo

package config

import (
	"encoding/json"
	"os"
)

// LoadConfig parses a JSON configuration. Missing fields keep the values
// from Default.
func LoadConfig(jsonData []byte) (*ADCConfig, error) {
	config := Default()

	err := json.Unmarshal(jsonData, config)
	if err != nil {
		return nil, err
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFile reads and parses a JSON configuration file.
func LoadFile(path string) (*ADCConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadConfig(data)
}
