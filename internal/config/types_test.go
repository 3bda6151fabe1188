package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortMapping(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    PortMapping
		wantErr bool
	}{
		{
			name:  "ipv4",
			input: "127.0.0.1:7070:8080",
			want:  PortMapping{Address: "127.0.0.1", LocalPort: 7070, ContainerPort: 8080},
		},
		{
			name:  "ipv6 keeps its colons",
			input: "::1:7070:8080",
			want:  PortMapping{Address: "::1", LocalPort: 7070, ContainerPort: 8080},
		},
		{
			name:  "ephemeral local port",
			input: "127.0.0.1:0:22",
			want:  PortMapping{Address: "127.0.0.1", LocalPort: 0, ContainerPort: 22},
		},
		{name: "missing container port", input: "127.0.0.1:8080", wantErr: true},
		{name: "not an address", input: "localhost:1:2", wantErr: true},
		{name: "port overflow", input: "127.0.0.1:70000:80", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePortMapping(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortMappingLocalAddr(t *testing.T) {
	m := PortMapping{Address: "127.0.0.1", LocalPort: 2222, ContainerPort: 22}
	assert.Equal(t, "127.0.0.1:2222", m.LocalAddr())

	v6 := PortMapping{Address: "::1", LocalPort: 2222, ContainerPort: 22}
	assert.Equal(t, "[::1]:2222", v6.LocalAddr())
}

func TestServicePortsMerge(t *testing.T) {
	ssh := uint16(22)
	http := uint16(80)
	customSSH := uint16(2022)

	ports := ServicePorts{SSH: &ssh, HTTP: &http}
	ports.Merge(ServicePorts{SSH: &customSSH})

	require.NotNil(t, ports.SSH)
	assert.Equal(t, customSSH, *ports.SSH)
	require.NotNil(t, ports.HTTP)
	assert.Equal(t, http, *ports.HTTP)
	assert.Nil(t, ports.HTTPS)
}

func TestImagePullPolicyDefault(t *testing.T) {
	var p ImagePullPolicy
	assert.Equal(t, "IfNotPresent", p.String())
	assert.Equal(t, "Always", PullAlways.String())
}
