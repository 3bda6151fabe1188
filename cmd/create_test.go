package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podlab/internal/config"
)

func withTestConfig(t *testing.T, cfg config.PodlabConfig) {
	t.Helper()
	original := loadedConfig
	t.Cleanup(func() { loadedConfig = original })
	loadedConfig = cfg
}

func TestResolveSpecDefaultPreset(t *testing.T) {
	withTestConfig(t, config.PodlabConfig{})

	spec, err := resolveSpec("", &createOptions{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultImage, spec.Image)
	assert.NotEmpty(t, spec.Command, "pod must be kept alive")
}

func TestResolveSpecNamedPreset(t *testing.T) {
	withTestConfig(t, config.PodlabConfig{
		Specs: []config.Spec{
			{Name: "builder", Image: "golang:1.24", Command: []string{"sleep", "infinity"}},
		},
	})

	spec, err := resolveSpec("builder", &createOptions{})
	require.NoError(t, err)
	assert.Equal(t, "golang:1.24", spec.Image)
	assert.Equal(t, []string{"sleep", "infinity"}, spec.Command)
}

func TestResolveSpecUnknownPresetFails(t *testing.T) {
	withTestConfig(t, config.PodlabConfig{})

	_, err := resolveSpec("nope", &createOptions{})
	assert.ErrorContains(t, err, "no preset named")
}

func TestResolveSpecImageOverrideAndPorts(t *testing.T) {
	withTestConfig(t, config.PodlabConfig{})

	spec, err := resolveSpec("", &createOptions{
		image:   "debian:12",
		ports:   []string{"127.0.0.1:2222:22"},
		sshPort: 22,
	})
	require.NoError(t, err)

	assert.Equal(t, "debian:12", spec.Image)
	require.Len(t, spec.PortMappings, 1)
	assert.Equal(t, uint16(22), spec.PortMappings[0].ContainerPort)
	require.NotNil(t, spec.ServicePorts.SSH)
	assert.Equal(t, uint16(22), *spec.ServicePorts.SSH)
}

func TestResolveSpecBadPortMappingFails(t *testing.T) {
	withTestConfig(t, config.PodlabConfig{})

	_, err := resolveSpec("", &createOptions{ports: []string{"nonsense"}})
	assert.Error(t, err)
}
