package kube

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"podlab/internal/config"
	"podlab/pkg/logging"
)

// DefaultContainerName is the single container every podlab pod runs.
const DefaultContainerName = "podlab-container"

const runningPollInterval = 500 * time.Millisecond

// BuildPodManifest turns a preset into the pod we submit to the API server.
// The manifest carries everything later commands need as labels and
// annotations, so attach, ssh and port-forward work without re-reading the
// config file.
func BuildPodManifest(podName, namespace string, spec config.Spec, version string) (*corev1.Pod, error) {
	shell := spec.InteractiveShell
	if len(shell) == 0 {
		shell = config.DefaultInteractiveShell
	}
	shellJSON, err := json.Marshal(shell)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shell annotation: %w", err)
	}

	annotations := map[string]string{
		AnnotationInteractiveShell: string(shellJSON),
		AnnotationVersion:          version,
	}
	for _, m := range spec.PortMappings {
		key, value := PortMappingAnnotation(m)
		annotations[key] = value
	}
	for key, value := range ServicePortAnnotations(spec.ServicePorts) {
		annotations[key] = value
	}

	var containerPorts []corev1.ContainerPort
	for _, m := range spec.PortMappings {
		containerPorts = append(containerPorts, corev1.ContainerPort{
			ContainerPort: int32(m.ContainerPort),
		})
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName,
			Namespace: namespace,
			Labels: map[string]string{
				LabelManagedBy:        ManagedByValue,
				LabelDefaultContainer: DefaultContainerName,
			},
			Annotations: annotations,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:            DefaultContainerName,
					Image:           spec.Image,
					ImagePullPolicy: corev1.PullPolicy(spec.ImagePullPolicy.String()),
					Command:         spec.Command,
					Args:            spec.Args,
					Ports:           containerPorts,
					Stdin:           true,
					TTY:             true,
				},
			},
		},
	}
	return pod, nil
}

// CreatePod submits the manifest and returns the created pod.
func (c *Client) CreatePod(ctx context.Context, pod *corev1.Pod) (*corev1.Pod, error) {
	logging.Debug("Kube", "Creating pod %s/%s", pod.Namespace, pod.Name)
	created, err := c.Clientset.CoreV1().Pods(pod.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil, fmt.Errorf("pod %s already exists in namespace %s", pod.Name, pod.Namespace)
		}
		return nil, fmt.Errorf("failed to create pod %s: %w", pod.Name, err)
	}
	return created, nil
}

// GetPod fetches a pod by name and verifies it is managed by podlab.
func (c *Client) GetPod(ctx context.Context, name string) (*corev1.Pod, error) {
	pod, err := c.Clientset.CoreV1().Pods(c.Namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("pod %s not found in namespace %s", name, c.Namespace)
		}
		return nil, fmt.Errorf("failed to get pod %s: %w", name, err)
	}
	if pod.Labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf("pod %s exists but is not managed by podlab", name)
	}
	return pod, nil
}

// DeletePod deletes a managed pod. Deleting a pod podlab does not manage is
// refused.
func (c *Client) DeletePod(ctx context.Context, name string) error {
	if _, err := c.GetPod(ctx, name); err != nil {
		return err
	}
	logging.Debug("Kube", "Deleting pod %s/%s", c.Namespace, name)
	err := c.Clientset.CoreV1().Pods(c.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete pod %s: %w", name, err)
	}
	return nil
}

// ListManagedPods lists the pods podlab created in the current namespace.
func (c *Client) ListManagedPods(ctx context.Context) ([]corev1.Pod, error) {
	list, err := c.Clientset.CoreV1().Pods(c.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", LabelManagedBy, ManagedByValue),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return list.Items, nil
}

// WaitUntilRunning polls until the pod reaches the Running phase. Terminal
// phases fail immediately instead of waiting out the timeout.
func (c *Client) WaitUntilRunning(ctx context.Context, name string, timeout time.Duration) (*corev1.Pod, error) {
	var pod *corev1.Pod
	err := wait.PollUntilContextTimeout(ctx, runningPollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			var err error
			pod, err = c.Clientset.CoreV1().Pods(c.Namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return false, err
			}
			switch pod.Status.Phase {
			case corev1.PodRunning:
				return true, nil
			case corev1.PodFailed, corev1.PodSucceeded:
				return false, fmt.Errorf("pod %s reached terminal phase %s", name, pod.Status.Phase)
			}
			return false, nil
		})
	if err != nil {
		return nil, fmt.Errorf("waiting for pod %s to run: %w", name, err)
	}
	return pod, nil
}
