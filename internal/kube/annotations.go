package kube

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"podlab/internal/config"
)

const (
	// LabelManagedBy marks pods created by podlab so list and delete only
	// touch our own pods.
	LabelManagedBy = "app.kubernetes.io/managed-by"
	// ManagedByValue is the value stored under LabelManagedBy.
	ManagedByValue = "podlab"
	// LabelDefaultContainer tells kubectl which container to target.
	LabelDefaultContainer = "kubectl.kubernetes.io/default-container"

	// AnnotationInteractiveShell holds the shell argv as a JSON array.
	AnnotationInteractiveShell = "podlab.shell/interactive"
	// AnnotationVersion records the podlab version that created the pod.
	AnnotationVersion = "podlab.version"

	// PortMappingPrefix prefixes one annotation per exposed container port,
	// "podlab.port-mappings/<containerPort>" = "<address>:<localPort>".
	PortMappingPrefix = "podlab.port-mappings"
	// ServicePortPrefix prefixes the well-known service port annotations,
	// "podlab.service-port/<name>" = "<containerPort>".
	ServicePortPrefix = "podlab.service-port"
)

// PortMappingAnnotation returns the key/value pair persisting one mapping.
func PortMappingAnnotation(m config.PortMapping) (string, string) {
	key := fmt.Sprintf("%s/%d", PortMappingPrefix, m.ContainerPort)
	value := fmt.Sprintf("%s:%d", m.Address, m.LocalPort)
	return key, value
}

// PortMappings reads the mappings a pod was created with back out of its
// annotations.
func PortMappings(pod *corev1.Pod) ([]config.PortMapping, error) {
	var mappings []config.PortMapping
	for key, value := range pod.Annotations {
		if !strings.HasPrefix(key, PortMappingPrefix+"/") {
			continue
		}
		containerPort, err := strconv.ParseUint(strings.TrimPrefix(key, PortMappingPrefix+"/"), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid annotation %s on pod %s: %w", key, pod.Name, err)
		}
		idx := strings.LastIndex(value, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid annotation %s=%q on pod %s: expected ADDRESS:LOCAL_PORT", key, value, pod.Name)
		}
		localPort, err := strconv.ParseUint(value[idx+1:], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid annotation %s=%q on pod %s: %w", key, value, pod.Name, err)
		}
		mappings = append(mappings, config.PortMapping{
			ContainerPort: uint16(containerPort),
			LocalPort:     uint16(localPort),
			Address:       value[:idx],
		})
	}
	return mappings, nil
}

// ServicePortAnnotations returns the annotation pairs for the set ports.
func ServicePortAnnotations(ports config.ServicePorts) map[string]string {
	out := map[string]string{}
	put := func(name string, p *uint16) {
		if p != nil {
			out[ServicePortPrefix+"/"+name] = strconv.Itoa(int(*p))
		}
	}
	put("ssh", ports.SSH)
	put("http", ports.HTTP)
	put("https", ports.HTTPS)
	return out
}

// ServicePortsOf reads the well-known service ports from a pod's annotations.
func ServicePortsOf(pod *corev1.Pod) (config.ServicePorts, error) {
	var ports config.ServicePorts
	get := func(name string, dst **uint16) error {
		value, ok := pod.Annotations[ServicePortPrefix+"/"+name]
		if !ok {
			return nil
		}
		p, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid annotation %s/%s=%q on pod %s: %w", ServicePortPrefix, name, value, pod.Name, err)
		}
		port := uint16(p)
		*dst = &port
		return nil
	}
	if err := get("ssh", &ports.SSH); err != nil {
		return config.ServicePorts{}, err
	}
	if err := get("http", &ports.HTTP); err != nil {
		return config.ServicePorts{}, err
	}
	if err := get("https", &ports.HTTPS); err != nil {
		return config.ServicePorts{}, err
	}
	return ports, nil
}

// InteractiveShell returns the shell argv a pod was annotated with, falling
// back to the built-in default for pods without the annotation.
func InteractiveShell(pod *corev1.Pod) []string {
	raw, ok := pod.Annotations[AnnotationInteractiveShell]
	if !ok || raw == "" {
		return append([]string(nil), config.DefaultInteractiveShell...)
	}
	var argv []string
	if err := json.Unmarshal([]byte(raw), &argv); err != nil || len(argv) == 0 {
		return append([]string(nil), config.DefaultInteractiveShell...)
	}
	return argv
}
