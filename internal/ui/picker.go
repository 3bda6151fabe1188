package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	units "github.com/docker/go-units"
	corev1 "k8s.io/api/core/v1"

	"podlab/internal/kube"
)

// ErrPickerAborted is returned when the user quits the picker without
// choosing a pod.
var ErrPickerAborted = fmt.Errorf("no pod selected")

var pickerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))

type podItem struct {
	name   string
	image  string
	status string
	age    string
}

func (i podItem) Title() string { return i.name }
func (i podItem) Description() string {
	return fmt.Sprintf("%s, %s, up %s", i.image, i.status, i.age)
}
func (i podItem) FilterValue() string { return i.name }

type pickerModel struct {
	list   list.Model
	choice string
}

func newPickerModel(pods []corev1.Pod) pickerModel {
	items := make([]list.Item, 0, len(pods))
	for _, pod := range pods {
		item := podItem{
			name:   pod.Name,
			status: string(pod.Status.Phase),
			age:    units.HumanDuration(time.Since(pod.CreationTimestamp.Time)),
		}
		if len(pod.Spec.Containers) > 0 {
			item.image = pod.Spec.Containers[0].Image
		}
		items = append(items, item)
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select a pod"
	l.Styles.Title = pickerTitleStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		// Don't intercept keys while the user is typing a filter.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(podItem); ok {
				m.choice = item.name
			}
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	return m.list.View()
}

// PickPod shows an interactive fuzzy-filterable picker over the managed pods
// and returns the chosen pod's name. With exactly one pod it is returned
// without any UI.
func PickPod(pods []corev1.Pod) (string, error) {
	if len(pods) == 0 {
		return "", fmt.Errorf("no pods found, create one with `%s create`", kube.ManagedByValue)
	}
	if len(pods) == 1 {
		return pods[0].Name, nil
	}

	program := tea.NewProgram(newPickerModel(pods), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("pod picker failed: %w", err)
	}

	model, ok := final.(pickerModel)
	if !ok || model.choice == "" {
		return "", ErrPickerAborted
	}
	return model.choice, nil
}
