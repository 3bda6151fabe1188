package kube

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"

	"podlab/internal/config"
	"podlab/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.Init(logging.LevelError, io.Discard)
	os.Exit(m.Run())
}

func newFakeClient(objects ...*corev1.Pod) *Client {
	clientset := fake.NewSimpleClientset()
	for _, pod := range objects {
		_, _ = clientset.CoreV1().Pods(pod.Namespace).Create(context.Background(), pod, metav1.CreateOptions{})
	}
	return &Client{
		Clientset:  clientset,
		RESTConfig: &rest.Config{},
		Namespace:  "default",
	}
}

func managedPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{LabelManagedBy: ManagedByValue},
		},
	}
}

func TestBuildPodManifest(t *testing.T) {
	ssh := uint16(22)
	spec := config.Spec{
		Name:            "dev",
		Image:           "docker.io/alpine:3.21",
		ImagePullPolicy: config.PullAlways,
		Command:         []string{"sh"},
		Args:            []string{"-c", "while true; do sleep 1; done"},
		PortMappings: []config.PortMapping{
			{Address: "127.0.0.1", LocalPort: 2222, ContainerPort: 22},
		},
		ServicePorts:     config.ServicePorts{SSH: &ssh},
		InteractiveShell: []string{"/bin/ash"},
	}

	pod, err := BuildPodManifest("scratch", "default", spec, "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "scratch", pod.Name)
	assert.Equal(t, "default", pod.Namespace)
	assert.Equal(t, ManagedByValue, pod.Labels[LabelManagedBy])
	assert.Equal(t, DefaultContainerName, pod.Labels[LabelDefaultContainer])

	assert.Equal(t, `["/bin/ash"]`, pod.Annotations[AnnotationInteractiveShell])
	assert.Equal(t, "1.2.3", pod.Annotations[AnnotationVersion])
	assert.Equal(t, "127.0.0.1:2222", pod.Annotations["podlab.port-mappings/22"])
	assert.Equal(t, "22", pod.Annotations["podlab.service-port/ssh"])

	require.Len(t, pod.Spec.Containers, 1)
	container := pod.Spec.Containers[0]
	assert.Equal(t, DefaultContainerName, container.Name)
	assert.Equal(t, "docker.io/alpine:3.21", container.Image)
	assert.Equal(t, corev1.PullAlways, container.ImagePullPolicy)
	assert.True(t, container.TTY)
	assert.True(t, container.Stdin)
	require.Len(t, container.Ports, 1)
	assert.Equal(t, int32(22), container.Ports[0].ContainerPort)
	assert.Equal(t, corev1.RestartPolicyNever, pod.Spec.RestartPolicy)
}

func TestBuildPodManifestDefaultsShell(t *testing.T) {
	pod, err := BuildPodManifest("p1", "default", config.Spec{Image: "alpine"}, "dev")
	require.NoError(t, err)
	assert.Equal(t, `["/bin/sh"]`, pod.Annotations[AnnotationInteractiveShell])
}

func TestCreateAndGetPod(t *testing.T) {
	client := newFakeClient()
	manifest, err := BuildPodManifest("p1", "default", config.DefaultSpec(), "dev")
	require.NoError(t, err)

	_, err = client.CreatePod(context.Background(), manifest)
	require.NoError(t, err)

	pod, err := client.GetPod(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", pod.Name)

	_, err = client.CreatePod(context.Background(), manifest)
	assert.ErrorContains(t, err, "already exists")
}

func TestGetPodRefusesUnmanaged(t *testing.T) {
	unmanaged := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "foreign", Namespace: "default"},
	}
	client := newFakeClient(unmanaged)

	_, err := client.GetPod(context.Background(), "foreign")
	assert.ErrorContains(t, err, "not managed by podlab")
}

func TestDeletePod(t *testing.T) {
	client := newFakeClient(managedPod("p1"))

	require.NoError(t, client.DeletePod(context.Background(), "p1"))

	_, err := client.GetPod(context.Background(), "p1")
	assert.ErrorContains(t, err, "not found")

	assert.Error(t, client.DeletePod(context.Background(), "p1"))
}

func TestListManagedPodsFiltersByLabel(t *testing.T) {
	unmanaged := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "foreign", Namespace: "default"},
	}
	client := newFakeClient(managedPod("a"), managedPod("b"), unmanaged)

	pods, err := client.ListManagedPods(context.Background())
	require.NoError(t, err)
	require.Len(t, pods, 2)
}

func TestWaitUntilRunningFailsOnTerminalPhase(t *testing.T) {
	failed := managedPod("p1")
	failed.Status.Phase = corev1.PodFailed
	client := newFakeClient(failed)

	_, err := client.WaitUntilRunning(context.Background(), "p1", 2*time.Second)
	assert.ErrorContains(t, err, "terminal phase")
}

func TestWaitUntilRunningSucceeds(t *testing.T) {
	running := managedPod("p1")
	running.Status.Phase = corev1.PodRunning
	client := newFakeClient(running)

	pod, err := client.WaitUntilRunning(context.Background(), "p1", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, corev1.PodRunning, pod.Status.Phase)
}
