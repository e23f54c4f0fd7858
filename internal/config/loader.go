package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"assay/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/assay"
	configFileName = "config.yaml"
	dataDirName    = "data"
)

// GetDefaultConfigPath returns ~/.config/assay.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// GetDefaultConfigPathOrPanic is GetDefaultConfigPath for flag defaults.
func GetDefaultConfigPathOrPanic() string {
	path, err := GetDefaultConfigPath()
	if err != nil {
		panic(err)
	}
	return path
}

// LoadConfig reads config.yaml from configPath on top of the defaults. A
// missing file yields the defaults. The result is validated.
func LoadConfig(configPath string) (AppConfig, error) {
	config := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			config.Storage.Path = filepath.Join(configPath, dataDirName)
			return config, nil
		}
		return AppConfig{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return AppConfig{}, &ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			ErrorType: "parse",
			Message:   err.Error(),
		}
	}

	if config.Storage.Path == "" {
		config.Storage.Path = filepath.Join(configPath, dataDirName)
	} else if !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(configPath, config.Storage.Path)
	}

	if err := config.Validate(); err != nil {
		return AppConfig{}, &ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			ErrorType: "validation",
			Message:   err.Error(),
			Cause:     err,
		}
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// WriteConfig stores config as config.yaml under configPath.
func WriteConfig(configPath string, config AppConfig) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", configPath, err)
	}
	path := filepath.Join(configPath, configFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
