package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"podlab/internal/kube"
)

func testPod(name, image string, phase corev1.PodPhase) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			CreationTimestamp: metav1.NewTime(time.Now().Add(-90 * time.Minute)),
			Annotations:       map[string]string{kube.AnnotationVersion: "1.2.3"},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: kube.DefaultContainerName, Image: image}},
		},
		Status: corev1.PodStatus{Phase: phase},
	}
}

func TestRenderPodTable(t *testing.T) {
	out := RenderPodTable([]corev1.Pod{
		testPod("scratch", "alpine:3.21", corev1.PodRunning),
		testPod("builder", "debian:12", corev1.PodPending),
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[0], "AGE")
	assert.Contains(t, lines[1], "scratch")
	assert.Contains(t, lines[1], "alpine:3.21")
	assert.Contains(t, lines[1], "1.2.3")
	assert.Contains(t, lines[2], "builder")
}

func TestRenderPodTableEmpty(t *testing.T) {
	out := RenderPodTable(nil)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 1, "only the header row")
}

func TestPickPodShortCircuits(t *testing.T) {
	name, err := PickPod([]corev1.Pod{testPod("only", "alpine", corev1.PodRunning)})
	require.NoError(t, err)
	assert.Equal(t, "only", name)

	_, err = PickPod(nil)
	assert.Error(t, err)
}

func TestPodItemDescription(t *testing.T) {
	item := podItem{name: "p1", image: "alpine", status: "Running", age: "2 hours"}
	assert.Equal(t, "p1", item.Title())
	assert.Equal(t, "p1", item.FilterValue())
	assert.Contains(t, item.Description(), "alpine")
}
