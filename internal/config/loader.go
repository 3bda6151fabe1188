package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/podlab"
	projectConfigDir = ".podlab"
	configFileName   = "config.yaml"
)

// EnvConfigFilePath names the environment variable that overrides the config
// search path entirely.
const EnvConfigFilePath = "PODLAB_CONFIG_FILE_PATH"

// LoadConfig loads the podlab configuration by layering default, user, and
// project settings. An explicitPath (from the --config flag or the
// PODLAB_CONFIG_FILE_PATH variable) replaces the search and must exist.
func LoadConfig(explicitPath string) (PodlabConfig, error) {
	config := GetDefaultConfig()

	if explicitPath != "" {
		fileConfig, err := loadConfigFromFile(explicitPath)
		if err != nil {
			return PodlabConfig{}, fmt.Errorf("error loading config from %s: %w", explicitPath, err)
		}
		return mergeConfigs(config, fileConfig), nil
	}

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional; keep going with defaults.
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return PodlabConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return PodlabConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
		}
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a PodlabConfig from a YAML file.
func loadConfigFromFile(filePath string) (PodlabConfig, error) {
	var config PodlabConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return PodlabConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return PodlabConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config.
func mergeConfigs(base, overlay PodlabConfig) PodlabConfig {
	merged := base

	if overlay.DefaultPodName != "" {
		merged.DefaultPodName = overlay.DefaultPodName
	}
	if overlay.DefaultNamespace != "" {
		merged.DefaultNamespace = overlay.DefaultNamespace
	}
	if overlay.LogLevel != "" {
		merged.LogLevel = overlay.LogLevel
	}
	if overlay.SSHPrivateKeyFilePath != "" {
		merged.SSHPrivateKeyFilePath = overlay.SSHPrivateKeyFilePath
	}

	// Specs merge by name: overlay replaces or adds, base order is kept.
	specIndex := make(map[string]int, len(merged.Specs))
	for i, s := range merged.Specs {
		specIndex[s.Name] = i
	}
	for _, s := range overlay.Specs {
		if i, ok := specIndex[s.Name]; ok {
			merged.Specs[i] = s
		} else {
			merged.Specs = append(merged.Specs, s)
		}
	}

	return merged
}

// TemplateBasic renders the default configuration as YAML, used by the
// `default-config` command so users can bootstrap a config file.
func TemplateBasic() ([]byte, error) {
	cfg := GetDefaultConfig()
	cfg.Specs = []Spec{DefaultSpec()}
	return yaml.Marshal(cfg)
}
