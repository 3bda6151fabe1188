package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	units "github.com/docker/go-units"
	corev1 "k8s.io/api/core/v1"

	"podlab/internal/kube"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	runningStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	notRunningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// RenderPodTable renders the managed pods as an aligned table for `podlab
// list`.
func RenderPodTable(pods []corev1.Pod) string {
	headers := []string{"NAME", "STATUS", "AGE", "IMAGE", "VERSION"}
	rows := make([][]string, 0, len(pods))
	for _, pod := range pods {
		image := ""
		if len(pod.Spec.Containers) > 0 {
			image = pod.Spec.Containers[0].Image
		}
		rows = append(rows, []string{
			pod.Name,
			string(pod.Status.Phase),
			units.HumanDuration(time.Since(pod.CreationTimestamp.Time)),
			image,
			pod.Annotations[kube.AnnotationVersion],
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(tableHeaderStyle.Render(pad(h, widths[i])))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			rendered := pad(cell, widths[i])
			if i == 1 {
				if cell == string(corev1.PodRunning) {
					rendered = runningStyle.Render(rendered)
				} else {
					rendered = notRunningStyle.Render(rendered)
				}
			}
			b.WriteString(rendered)
			if i < len(row)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pad(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}
