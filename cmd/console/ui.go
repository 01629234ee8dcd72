package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
	"github.com/muesli/reflow/wordwrap"
)

const (
	refreshInterval     = 100 * time.Millisecond
	allCompletedMessage = "ALL LEVELS COMPLETED!"
	allCompletedFor     = 5 * time.Second
)

// ConsoleUI is the BubbleTea model for the local player.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config     *ConsoleConfig
	catalog    *level.Catalog
	controller *engine.Controller
	events     <-chan tea.Msg
	progress   *progressClient

	levelIndex int
	level      *level.LevelConfig
	state      engine.RunState
	phase      engine.Phase

	editor  textarea.Model
	logView viewport.Model

	toast    string
	toastSeq int
	status   string
	err      error

	width, height int
	ready         bool
	showQuitModal bool
}

type changedMsg struct{}

type wonMsg struct {
	levelID int
}

type toastMsg struct {
	message  string
	duration time.Duration
}

type clearToastMsg struct {
	seq int
}

type refreshTickMsg struct{}

type progressSavedMsg struct {
	level int
	err   error
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("214")).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

func NewConsoleUI(cfg *ConsoleConfig, catalog *level.Catalog, controller *engine.Controller, events <-chan tea.Msg, progress *progressClient, startIndex int) (ConsoleUI, error) {
	ta := textarea.New()
	ta.Placeholder = "robot.moveRight()"
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = true
	ta.SetWidth(60)
	ta.SetHeight(14)

	vp := viewport.New(60, 8)
	vp.MouseWheelEnabled = true

	m := ConsoleUI{
		config:     cfg,
		catalog:    catalog,
		controller: controller,
		events:     events,
		progress:   progress,
		editor:     ta,
		logView:    vp,
	}
	if err := m.loadLevel(startIndex); err != nil {
		return m, err
	}
	return m, nil
}

func (m *ConsoleUI) loadLevel(index int) error {
	lvl, err := m.catalog.Get(index)
	if err != nil {
		return err
	}
	m.levelIndex = index
	m.level = lvl
	m.controller.ResetForLevel(lvl)
	m.editor.SetValue(lvl.InitialScript)
	m.status = ""
	m.refresh()
	return nil
}

// refresh pulls a fresh snapshot from the controller and redraws the log.
func (m *ConsoleUI) refresh() {
	m.state = m.controller.Snapshot()
	m.phase = m.controller.Phase()

	width := m.logView.Width
	if width <= 0 {
		width = 60
	}
	var b strings.Builder
	for _, line := range m.state.Log {
		wrapped := wordwrap.String(line, width)
		if strings.HasPrefix(line, "Error:") {
			wrapped = errorStyle.Render(wrapped)
		}
		b.WriteString(wrapped + "\n")
	}
	m.logView.SetContent(b.String())
	m.logView.GotoBottom()
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForEvent(m.events), refreshTick())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForEvent(m.events)

	case wonMsg:
		m.refresh()
		m.status = successStyle.Render(fmt.Sprintf("Level %d complete! Press ctrl+n for the next level.", msg.levelID))
		return m, tea.Batch(waitForEvent(m.events), m.saveProgress(msg.levelID+1))

	case toastMsg:
		cmd := m.showToast(msg.message, msg.duration)
		return m, tea.Batch(waitForEvent(m.events), cmd)

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case refreshTickMsg:
		m.state = m.controller.Snapshot()
		return m, refreshTick()

	case progressSavedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.showQuitModal = true
			return m, nil
		case "ctrl+r":
			m.launch(engine.ModeRun)
			return m, nil
		case "ctrl+t":
			m.launch(engine.ModeContinue)
			return m, nil
		case "ctrl+n":
			return m.nextLevel()
		case "ctrl+y":
			m.copyLog()
			return m, nil
		}
	}

	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
	)
	m.editor, taCmd = m.editor.Update(msg)
	m.logView, vpCmd = m.logView.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

func (m *ConsoleUI) resize() {
	leftWidth := max(int(float64(m.width)*0.6)-4, 20)
	m.editor.SetWidth(leftWidth)
	m.editor.SetHeight(max(m.height/2-3, 5))
	m.logView.Width = leftWidth
	m.logView.Height = max(m.height-m.editor.Height()-9, 3)
}

func (m *ConsoleUI) launch(mode engine.Mode) {
	m.err = nil
	m.status = ""
	err := m.controller.Launch(mode, m.editor.Value())
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrBusy):
		m.status = promptStyle.Render("A run is already in progress.")
	case errors.Is(err, engine.ErrCannotContinue):
		m.status = promptStyle.Render("Nothing to continue. Press ctrl+r to run first.")
	default:
		m.err = err
	}
	m.refresh()
}

func (m ConsoleUI) nextLevel() (tea.Model, tea.Cmd) {
	next := m.levelIndex + 1
	if next >= m.catalog.Len() {
		cmd := m.showToast(allCompletedMessage, allCompletedFor)
		return m, cmd
	}
	if err := m.loadLevel(next); err != nil {
		m.err = err
	}
	return m, nil
}

// showToast displays message until d passes or a newer toast replaces it.
func (m *ConsoleUI) showToast(message string, d time.Duration) tea.Cmd {
	m.toastSeq++
	m.toast = message
	seq := m.toastSeq
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearToastMsg{seq: seq}
	})
}

func (m *ConsoleUI) copyLog() {
	if err := clipboard.WriteAll(strings.Join(m.state.Log, "\n")); err != nil {
		m.err = fmt.Errorf("failed to copy log: %w", err)
		return
	}
	m.status = promptStyle.Render("Log copied to clipboard.")
}

func (m ConsoleUI) saveProgress(next int) tea.Cmd {
	if m.progress == nil {
		return nil
	}
	p, username := m.progress, m.config.Username
	return func() tea.Msg {
		saved, err := p.get(username)
		if err == nil && saved >= next {
			return progressSavedMsg{level: saved}
		}
		return progressSavedMsg{level: next, err: p.save(username, next)}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "enter", "y", "Y":
			return m, tea.Quit
		case "n", "N":
			m.showQuitModal = false
			m.editor.Focus()
			return m, textarea.Blink
		}

	default:
		// keep draining engine events behind the modal
		switch msg.(type) {
		case changedMsg, wonMsg, toastMsg:
			m.refresh()
			return m, waitForEvent(m.events)
		case refreshTickMsg:
			return m, refreshTick()
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to keep coding"))
	modal := modalStyle.Width(40).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(fmt.Sprintf("ROBOT ENGINE  Level %d: %s", m.level.ID, m.level.Title))
	left := lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(m.editor.View()),
		panelStyle.Render(m.logView.View()),
	)

	var right strings.Builder
	right.WriteString(renderGrid(m.level, &m.state))
	right.WriteString("\n")
	right.WriteString(fmt.Sprintf("Phase: %s  Actions: %d\n\n", m.phase, m.state.ExecutedCount))
	right.WriteString(renderLegend(&m.state))

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, panelStyle.Render(right.String()))

	var footer strings.Builder
	if m.toast != "" {
		footer.WriteString(toastStyle.Render(m.toast) + "  ")
	}
	if m.err != nil {
		footer.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "  ")
	} else if m.status != "" {
		footer.WriteString(m.status + "  ")
	}
	footer.WriteString("\n")
	footer.WriteString(promptStyle.Render("ctrl+r run • ctrl+t continue • ctrl+n next level • ctrl+y copy log • esc quit"))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer.String())
}
