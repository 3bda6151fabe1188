package config

// DefaultPodName is the pod name used when neither the command line nor the
// configuration provides one.
const DefaultPodName = "podlab"

// DefaultImage is the image for the built-in default spec.
const DefaultImage = "docker.io/alpine:3.21"

// DefaultInteractiveShell is the shell used when a pod carries no shell
// annotation.
var DefaultInteractiveShell = []string{"/bin/sh"}

// GetDefaultConfig returns the built-in configuration used as the base layer
// for merging.
func GetDefaultConfig() PodlabConfig {
	return PodlabConfig{
		DefaultPodName: DefaultPodName,
		LogLevel:       "info",
	}
}

// DefaultSpec returns the built-in pod preset: a small image kept alive by a
// sleep loop so the user can attach and exec at will.
func DefaultSpec() Spec {
	return Spec{
		Name:             DefaultPodName,
		Image:            DefaultImage,
		ImagePullPolicy:  PullIfNotPresent,
		Command:          []string{"sh"},
		Args:             []string{"-c", "while true; do sleep 1; done"},
		InteractiveShell: append([]string(nil), DefaultInteractiveShell...),
	}
}
