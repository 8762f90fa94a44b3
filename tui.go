package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hark/ptt"
	"hark/recorder"
	"hark/transcriber"
)

// TUI message types, sent from the status fanout.
type RecordingStartMsg struct {
	Origin ptt.Origin
	Device string
}
type RecordingStopMsg struct{}
type RecordingTickMsg struct{ Seconds float64 }
type AudioLevelMsg struct{ Level float64 }
type SilenceMsg struct{ On bool }
type TakeMsg struct {
	Take   recorder.Take
	Copied bool
}
type EnhanceMsg struct {
	On    bool
	Style int
}
type ModeLineMsg struct{ Text string }   // provider | format
type DeviceLineMsg struct{ Text string } // microphone device name
type UpdateAvailableMsg struct{ Version string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
)

const meterCells = 28

type tuiModel struct {
	state         tuiState
	frame         int
	origin        ptt.Origin
	seconds       float64
	level         float64 // smoothed
	peak          float64 // peak during current take
	silence       bool
	width, height int
	modeLine      string
	deviceLine    string
	enhanceOn     bool
	style         int
	lastTake      recorder.Take
	lastCopied    bool
	takeCount     int
	combo         string // help line text for the hold binding
	toggle        string // help line text for the hands-free binding
	updateVer     string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

// Pre-computed styles so View allocates nothing per frame.
var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	originStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	grayStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	noSpeechStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	copiedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	meterStyles   [meterCells]lipgloss.Style
	meterOff      = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	meterFrame    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

func init() {
	// Green up to 60%, yellow to 85%, red above.
	for i := 0; i < meterCells; i++ {
		frac := float64(i) / float64(meterCells)
		c := "42"
		switch {
		case frac >= 0.85:
			c = "196"
		case frac >= 0.60:
			c = "220"
		}
		meterStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
}

// NewTUIProgram builds the status HUD. combo and toggle are the bound
// shortcuts, shown on the help line.
func NewTUIProgram(combo, toggle string) *tea.Program {
	m := tuiModel{combo: combo, toggle: toggle, style: 1}
	return tea.NewProgram(m, tea.WithAltScreen())
}

// sendTUI forwards a message when the HUD is running, and drops it
// otherwise. Callers never block on the terminal.
func sendTUI(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		// Global in-take keys are handled outside the terminal.
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.origin = msg.Origin
		if msg.Device != "" {
			m.deviceLine = "mic: " + msg.Device
		}
		m.seconds = 0
		m.level = 0
		m.peak = 0
		m.silence = false

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.level = 0
		m.silence = false

	case RecordingTickMsg:
		m.seconds = msg.Seconds

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.level = m.level*0.6 + msg.Level*0.4
			if msg.Level > m.peak {
				m.peak = msg.Level
			}
		}

	case SilenceMsg:
		m.silence = msg.On

	case TakeMsg:
		m.takeCount++
		m.lastTake = msg.Take
		m.lastCopied = msg.Copied

	case EnhanceMsg:
		m.enhanceOn = msg.On
		m.style = msg.Style

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = "mic: " + msg.Text

	case UpdateAvailableMsg:
		m.updateVer = msg.Version
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("hark") + "\n\n")

	// Status line. The dot blinks while recording.
	if m.state == tuiStateRecording {
		dot := "●"
		if m.frame/8%2 == 1 {
			dot = "◌"
		}
		b.WriteString("  " + recStyle.Render(fmt.Sprintf("%s REC %.1fs", dot, m.seconds)))
		b.WriteString("  " + originStyle.Render(string(m.origin)))
		b.WriteString("\n")
		b.WriteString("  " + renderMeter(m.level, m.peak) + "\n")
		if m.silence {
			b.WriteString("  " + warnStyle.Render("⚠ no voice detected") + "\n")
		} else {
			b.WriteString("\n")
		}
	} else {
		b.WriteString("  " + idleStyle.Render("○ STANDBY") + "\n")
		b.WriteString("  " + renderMeter(0, 0) + "\n\n")
	}
	b.WriteString("\n")

	if m.deviceLine != "" {
		b.WriteString("  " + dimStyle.Render(m.deviceLine) + "\n")
	}
	mode := m.modeLine
	if m.enhanceOn {
		mode += " | enhance: " + transcriber.StyleLabel(m.style)
	} else if mode != "" {
		mode += " | enhance off"
	}
	if mode != "" {
		b.WriteString("  " + grayStyle.Render(mode) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderLastTake())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func renderMeter(level, peak float64) string {
	// Full scale sits near speech peaks, not digital max.
	lit := int(level * 3.0 * meterCells)
	if lit > meterCells {
		lit = meterCells
	}
	peakCell := int(peak*3.0*float64(meterCells)) - 1
	if peakCell >= meterCells {
		peakCell = meterCells - 1
	}

	var b strings.Builder
	b.WriteString(meterFrame.Render("▕"))
	for i := 0; i < meterCells; i++ {
		switch {
		case i < lit:
			b.WriteString(meterStyles[i].Render("█"))
		case i == peakCell:
			b.WriteString(meterStyles[i].Render("▏"))
		default:
			b.WriteString(meterOff.Render("░"))
		}
	}
	b.WriteString(meterFrame.Render("▏"))
	return b.String()
}

func (m tuiModel) renderLastTake() string {
	var b strings.Builder
	if m.takeCount == 0 {
		b.WriteString("  " + dimStyle.Render("No takes yet") + "\n")
		return b.String()
	}

	t := m.lastTake
	b.WriteString("  " + grayStyle.Render(fmt.Sprintf("Last take (#%d)", m.takeCount)) + "\n")

	wrapWidth := m.width - 4
	if wrapWidth > 76 {
		wrapWidth = 76
	}
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	switch {
	case t.Err != "":
		for _, line := range wrapText(t.Err, wrapWidth) {
			b.WriteString("  " + errStyle.Render(line) + "\n")
		}
	case t.NoSpeech:
		b.WriteString("  " + noSpeechStyle.Render("(no speech detected)") + "\n")
	default:
		lines := wrapText(t.Text, wrapWidth)
		for i, line := range lines {
			b.WriteString("  " + textStyle.Render(line))
			if i == len(lines)-1 && m.lastCopied {
				b.WriteString(" " + copiedStyle.Render("[✓ copied]"))
			}
			b.WriteString("\n")
		}
	}

	meta := fmt.Sprintf("%.1fs | %d words | %s", t.Duration.Seconds(), len(strings.Fields(t.Text)), t.Provider)
	if t.Enhanced {
		meta += " | " + transcriber.StyleLabel(t.Style)
	}
	if t.AutoStopped {
		meta += " | auto-stopped"
	}
	b.WriteString("  " + dimStyle.Render(meta) + "\n")
	return b.String()
}

func (m tuiModel) renderHelp() string {
	var parts []string
	if m.combo != "" {
		parts = append(parts, helpKeyStyle.Render("hold "+m.combo)+helpStyle.Render(" to talk"))
	}
	if m.toggle != "" {
		parts = append(parts, helpKeyStyle.Render(m.toggle)+helpStyle.Render(" hands-free"))
	}
	parts = append(parts,
		helpKeyStyle.Render("esc")+helpStyle.Render(" cancel"),
		helpKeyStyle.Render("e")+helpStyle.Render(" enhance"),
		helpKeyStyle.Render("1-9")+helpStyle.Render(" style"),
		helpKeyStyle.Render("ctrl+c")+helpStyle.Render(" quit"),
	)
	sep := helpStyle.Render(" | ")
	footer := helpStyle.Render("hark " + version)
	if m.updateVer != "" {
		footer += warnStyle.Render("  ⚠ update available: " + m.updateVer)
	}
	return "  " + strings.Join(parts, sep) + "\n  " + footer + "\n"
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
