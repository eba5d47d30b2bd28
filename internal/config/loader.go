package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"medchat/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/medchat"
	configFileName = "config.yaml"

	// EnvBaseURL overrides api.baseURL when set.
	EnvBaseURL = "MEDCHAT_API_BASE"

	// EnvAPIKey overrides api.apiKey when set.
	EnvAPIKey = "MEDCHAT_API_KEY"
)

// GetDefaultConfigPathOrPanic returns the user-level config directory,
// typically ~/.config/medchat.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the specified directory. A missing
// config.yaml is not an error: defaults (plus environment overrides)
// apply. A malformed config.yaml is an error so a typo never silently
// reverts the user to defaults.
func LoadConfig(configPath string) (MedchatConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
			applyEnvOverrides(&config)
			return config, nil
		}
		return MedchatConfig{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return MedchatConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	applyEnvOverrides(&config)
	logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// applyEnvOverrides layers environment variables over file values.
// Environment wins: it is the conventional escape hatch in CI and for
// pointing a development build at a scratch server.
func applyEnvOverrides(config *MedchatConfig) {
	if base := os.Getenv(EnvBaseURL); base != "" {
		config.API.BaseURL = base
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		config.API.APIKey = key
	}
}
