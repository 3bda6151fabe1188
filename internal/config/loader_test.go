package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, dir string, content PodlabConfig) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	tempFilePath := filepath.Join(dir, configFileName)
	data, err := yaml.Marshal(&content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tempFilePath, data, 0644))
	return tempFilePath
}

func mockConfigPaths(t *testing.T, userPath, projectPath string) {
	t.Helper()
	originalUser := getUserConfigPath
	originalProject := getProjectConfigPath
	t.Cleanup(func() {
		getUserConfigPath = originalUser
		getProjectConfigPath = originalProject
	})
	getUserConfigPath = func() (string, error) { return userPath, nil }
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()
	mockConfigPaths(t,
		filepath.Join(tempDir, "missing-user", configFileName),
		filepath.Join(tempDir, "missing-project", configFileName))

	loaded, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(), loaded)
	assert.Equal(t, DefaultPodName, loaded.DefaultPodName)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()
	userPath := createTempConfigFile(t, filepath.Join(tempDir, userConfigDir), PodlabConfig{
		DefaultPodName: "scratch",
		LogLevel:       "debug",
	})
	mockConfigPaths(t, userPath, filepath.Join(tempDir, "missing-project", configFileName))

	loaded, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "scratch", loaded.DefaultPodName)
	assert.Equal(t, "debug", loaded.LogLevel)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()
	userPath := createTempConfigFile(t, filepath.Join(tempDir, "user"), PodlabConfig{
		DefaultPodName: "from-user",
		Specs: []Spec{
			{Name: "shared", Image: "alpine:3.20"},
			{Name: "user-only", Image: "debian:12"},
		},
	})
	projectPath := createTempConfigFile(t, filepath.Join(tempDir, "project"), PodlabConfig{
		DefaultPodName: "from-project",
		Specs: []Spec{
			{Name: "shared", Image: "alpine:3.21"},
		},
	})
	mockConfigPaths(t, userPath, projectPath)

	loaded, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "from-project", loaded.DefaultPodName)

	shared := loaded.FindSpecByName("shared")
	require.NotNil(t, shared)
	assert.Equal(t, "alpine:3.21", shared.Image, "project spec should replace user spec of the same name")
	assert.NotNil(t, loaded.FindSpecByName("user-only"))
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	tempDir := t.TempDir()
	explicit := createTempConfigFile(t, tempDir, PodlabConfig{DefaultPodName: "explicit"})

	loaded, err := LoadConfig(explicit)
	require.NoError(t, err)
	assert.Equal(t, "explicit", loaded.DefaultPodName)
}

func TestLoadConfig_ExplicitPathMissingFails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAMLFails(t *testing.T) {
	tempDir := t.TempDir()
	badPath := filepath.Join(tempDir, configFileName)
	require.NoError(t, os.WriteFile(badPath, []byte("specs: [unclosed"), 0644))

	_, err := LoadConfig(badPath)
	assert.Error(t, err)
}

func TestFindDefaultSpecFallsBack(t *testing.T) {
	cfg := PodlabConfig{}
	spec := cfg.FindDefaultSpec()
	assert.Equal(t, DefaultImage, spec.Image)

	cfg.Specs = []Spec{{Name: "default", Image: "custom:latest"}}
	assert.Equal(t, "custom:latest", cfg.FindDefaultSpec().Image)
}
