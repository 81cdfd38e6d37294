package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskvox/tasks"
)

// TUI message types
type ListeningStartMsg struct{}
type ListeningStopMsg struct{}
type AudioLevelMsg struct{ Level float64 }
type LiveTextMsg struct{ Text string }
type TaskAddedMsg struct {
	Task tasks.Task
	Dup  bool
}
type DeviceLineMsg struct{ Text string }
type NoticeMsg struct{ Text string }
type tickMsg time.Time

const taskPanelMax = 8

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

var (
	statusLiveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusIdleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	liveTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	taskTitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	taskDueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	taskDupStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBoldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	noticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	levelBarStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	levelTrackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	panelHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

type tuiModel struct {
	listening     bool
	frame         int
	level         float64
	live          string
	recent        []tasks.Task
	lastDup       bool
	captureCount  int
	deviceLine    string
	notice        string
	width, height int
	onStop        func()
}

func NewTUIProgram(recent []tasks.Task, onStop func()) *tea.Program {
	m := tuiModel{recent: recent, onStop: onStop}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "s", "enter":
			if m.onStop != nil {
				m.onStop()
			}
		}

	case tickMsg:
		m.frame++
		if !m.listening {
			m.level = 0
		}
		return m, tuiTick()

	case ListeningStartMsg:
		m.listening = true
		m.live = ""
		m.level = 0
		m.notice = ""

	case ListeningStopMsg:
		m.listening = false
		m.level = 0

	case AudioLevelMsg:
		if m.listening {
			m.level = m.level*0.6 + msg.Level*0.4
		}

	case LiveTextMsg:
		m.live = msg.Text

	case TaskAddedMsg:
		m.captureCount++
		m.lastDup = msg.Dup
		if !msg.Dup {
			m.recent = append([]tasks.Task{msg.Task}, m.recent...)
			if len(m.recent) > taskPanelMax {
				m.recent = m.recent[:taskPanelMax]
			}
		}

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case NoticeMsg:
		m.notice = msg.Text
	}
	return m, nil
}

func renderLevelBar(level float64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := int(level * 12 * float64(width))
	if filled > width {
		filled = width
	}
	return levelBarStyle.Render(strings.Repeat("█", filled)) +
		levelTrackStyle.Render(strings.Repeat("░", width-filled))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 4
	if wrapWidth < 16 {
		wrapWidth = 16
	}

	var b strings.Builder
	b.WriteString(panelHeaderStyle.Render("taskvox "+version) + "\n\n")

	if m.listening {
		dots := strings.Repeat(".", (m.frame/4)%4)
		b.WriteString(statusLiveStyle.Render("● LISTENING"+dots) + "\n")
		b.WriteString(renderLevelBar(m.level, 24) + "\n\n")
		if m.live != "" {
			for _, line := range wrapText(m.live, wrapWidth) {
				b.WriteString(liveTextStyle.Render(line) + "\n")
			}
		} else {
			b.WriteString(dimStyle.Render("(waiting for words)") + "\n")
		}
	} else {
		b.WriteString(statusIdleStyle.Render("○ IDLE — speak to capture a task") + "\n")
		b.WriteString(levelTrackStyle.Render(strings.Repeat("░", 24)) + "\n")
	}
	b.WriteString("\n")

	header := "Captured tasks"
	if m.captureCount > 0 {
		header = fmt.Sprintf("Captured tasks (#%d)", m.captureCount)
	}
	b.WriteString(panelHeaderStyle.Render(header) + "\n")
	if m.lastDup {
		b.WriteString(taskDupStyle.Render("  duplicate skipped") + "\n")
	}
	if len(m.recent) == 0 {
		b.WriteString(dimStyle.Render("  none yet") + "\n")
	}
	for _, t := range m.recent {
		line := "  • " + taskTitleStyle.Render(t.Title)
		if lbl := t.DueLabel(); lbl != "" {
			line += " " + taskDueStyle.Render("["+lbl+"]")
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render("⚠ "+m.notice) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(dimStyle.Render(m.deviceLine) + "\n")
	}
	b.WriteString(helpBoldStyle.Render("s") + helpStyle.Render(" finish utterance  ") +
		helpBoldStyle.Render("q") + helpStyle.Render(" quit") + "\n")

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards capture events into the Bubble Tea program.
type tuiSink struct{}

func (tuiSink) ListeningStart()        { tuiSend(ListeningStartMsg{}) }
func (tuiSink) ListeningStop()         { tuiSend(ListeningStopMsg{}) }
func (tuiSink) AudioLevel(l float64)   { tuiSend(AudioLevelMsg{Level: l}) }
func (tuiSink) LiveText(text string)   { tuiSend(LiveTextMsg{Text: text}) }
func (tuiSink) DeviceLine(text string) { tuiSend(DeviceLineMsg{Text: text}) }
func (tuiSink) Notice(text string)     { tuiSend(NoticeMsg{Text: text}) }

func (tuiSink) TaskAdded(t tasks.Task, dup bool) {
	tuiSend(TaskAddedMsg{Task: t, Dup: dup})
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
