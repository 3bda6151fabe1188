package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// PodlabConfig is the top-level configuration structure for podlab.
type PodlabConfig struct {
	// DefaultPodName is used when a command is invoked without an explicit
	// pod name.
	DefaultPodName string `yaml:"defaultPodName,omitempty"`
	// DefaultNamespace overrides the kubeconfig context's namespace when set.
	DefaultNamespace string `yaml:"defaultNamespace,omitempty"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"logLevel,omitempty"`
	// SSHPrivateKeyFilePath is the key used by the ssh subcommands when no
	// -i flag is given.
	SSHPrivateKeyFilePath string `yaml:"sshPrivateKeyFilePath,omitempty"`
	// Specs are the named pod presets available to `podlab create <name>`.
	Specs []Spec `yaml:"specs,omitempty"`
}

// Spec describes one throwaway pod preset: which image to run, how to keep it
// alive, and which ports to expose locally.
type Spec struct {
	Name             string          `yaml:"name"`
	Image            string          `yaml:"image"`
	ImagePullPolicy  ImagePullPolicy `yaml:"imagePullPolicy,omitempty"`
	PortMappings     []PortMapping   `yaml:"portMappings,omitempty"`
	ServicePorts     ServicePorts    `yaml:"servicePorts,omitempty"`
	Command          []string        `yaml:"command,omitempty"`
	Args             []string        `yaml:"args,omitempty"`
	InteractiveShell []string        `yaml:"interactiveShell,omitempty"`
}

// ImagePullPolicy mirrors the Kubernetes container field.
type ImagePullPolicy string

const (
	PullAlways       ImagePullPolicy = "Always"
	PullIfNotPresent ImagePullPolicy = "IfNotPresent"
	PullNever        ImagePullPolicy = "Never"
)

// String returns the policy, defaulting to IfNotPresent when unset.
func (p ImagePullPolicy) String() string {
	if p == "" {
		return string(PullIfNotPresent)
	}
	return string(p)
}

// PortMapping exposes one container port on a local address.
type PortMapping struct {
	ContainerPort uint16 `yaml:"containerPort"`
	LocalPort     uint16 `yaml:"localPort"`
	// Address is the local IP to bind, e.g. "127.0.0.1".
	Address string `yaml:"address"`
}

// LocalAddr returns the "host:port" bind address for the mapping.
func (m PortMapping) LocalAddr() string {
	return net.JoinHostPort(m.Address, strconv.Itoa(int(m.LocalPort)))
}

// ParsePortMapping parses the CLI form "ADDRESS:LOCAL_PORT:CONTAINER_PORT",
// splitting from the right so IPv6 addresses keep their colons.
func ParsePortMapping(input string) (PortMapping, error) {
	idxContainer := strings.LastIndex(input, ":")
	if idxContainer <= 0 {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: expected ADDRESS:LOCAL_PORT:CONTAINER_PORT", input)
	}
	idxLocal := strings.LastIndex(input[:idxContainer], ":")
	if idxLocal <= 0 {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: expected ADDRESS:LOCAL_PORT:CONTAINER_PORT", input)
	}

	address := input[:idxLocal]
	if net.ParseIP(address) == nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %q is not an IP address", input, address)
	}

	localPort, err := parsePort(input[idxLocal+1 : idxContainer])
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %w", input, err)
	}
	containerPort, err := parsePort(input[idxContainer+1:])
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %w", input, err)
	}

	return PortMapping{ContainerPort: containerPort, LocalPort: localPort, Address: address}, nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(p), nil
}

// ServicePorts is the set of well-known service ports a pod advertises. The
// ssh port is what the ssh subcommands tunnel to.
type ServicePorts struct {
	SSH   *uint16 `yaml:"ssh,omitempty"`
	HTTP  *uint16 `yaml:"http,omitempty"`
	HTTPS *uint16 `yaml:"https,omitempty"`
}

// Merge overlays other's set ports onto s.
func (s *ServicePorts) Merge(other ServicePorts) {
	if other.SSH != nil {
		s.SSH = other.SSH
	}
	if other.HTTP != nil {
		s.HTTP = other.HTTP
	}
	if other.HTTPS != nil {
		s.HTTPS = other.HTTPS
	}
}

// FindSpecByName returns the named preset, or nil when absent.
func (c PodlabConfig) FindSpecByName(name string) *Spec {
	for i := range c.Specs {
		if c.Specs[i].Name == name {
			return &c.Specs[i]
		}
	}
	return nil
}

// FindDefaultSpec returns the preset named "default" if present, else the
// built-in default spec.
func (c PodlabConfig) FindDefaultSpec() Spec {
	if s := c.FindSpecByName("default"); s != nil {
		return *s
	}
	return DefaultSpec()
}
