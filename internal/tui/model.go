package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quero/internal/service"
)

// Chat commands recognized at the prompt.
const (
	CmdAdd  = "/add"
	CmdBye  = "/bye"
	CmdHelp = "/help"
)

const farewell = "Bye 👋, See you soon."

// AssistantPort is the TUI-facing subset of the assistant service.
type AssistantPort interface {
	Username() string
	CanChat() bool
	Ingest(ctx context.Context, paths []string) (service.IngestReport, error)
	Ask(ctx context.Context, question string, onDelta func(string)) (string, error)
}

type speaker int

const (
	speakerUser speaker = iota
	speakerBot
	speakerSystem
	speakerError
)

type entry struct {
	who  speaker
	text string
}

type (
	deltaMsg  string
	answerMsg struct {
		reply string
		err   error
	}
	ingestMsg struct {
		report service.IngestReport
		err    error
	}
)

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	assistant AssistantPort
	ctx       context.Context
	cancel    context.CancelFunc
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	entries   []entry
	stream    <-chan tea.Msg
	busy      bool
	ready     bool
	quitting  bool
	said      string
}

// New creates a new TUI model instance.
func New(ctx context.Context, assistant AssistantPort) Model {
	ctx, cancel := context.WithCancel(ctx)
	ti := textinput.New()
	ti.Prompt = fmt.Sprintf("(%s) >>> ", assistant.Username())
	ti.Placeholder = "Ask something, or /help"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{
		assistant: assistant,
		ctx:       ctx,
		cancel:    cancel,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
	}
	m.entries = append(m.entries, entry{speakerSystem, fmt.Sprintf("Hi %s. How can I help you?", assistant.Username())})
	m.entries = append(m.entries, entry{speakerSystem, helpText()})
	if !assistant.CanChat() {
		m.entries = append(m.entries, entry{speakerError, "No chat model configured: /add works, questions will fail until chat.provider is set."})
	}
	return m
}

// Farewell is the goodbye shown after /bye, or "" when the chat ended otherwise.
func (m Model) Farewell() string { return m.said }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and assistant events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, input line, frame, status
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.input.Width = max(10, msg.Width-len(m.input.Prompt)-4)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.cancel()
			m.quitting = true
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()
			return m.handleLine(line)
		}
		if m.busy {
			return m, nil
		}
	case deltaMsg:
		m.appendToBot(string(msg))
		m.refresh()
		return m, waitFor(m.stream)
	case answerMsg:
		m.busy = false
		m.stream = nil
		if msg.err != nil {
			m.dropEmptyBot()
			m.entries = append(m.entries, entry{speakerError, "Error: " + msg.err.Error()})
		}
		m.refresh()
		return m, nil
	case ingestMsg:
		m.busy = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{speakerError, "Error: " + msg.err.Error()})
		} else {
			text := fmt.Sprintf("Remembered %d chunks from %d documents.", msg.report.Chunks, len(msg.report.Documents))
			if msg.report.Summary != "" {
				text += "\n" + msg.report.Summary
			}
			m.entries = append(m.entries, entry{speakerSystem, text})
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleLine(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch fields[0] {
	case CmdBye:
		m.cancel()
		m.quitting = true
		m.said = farewell
		m.entries = append(m.entries, entry{speakerSystem, farewell})
		m.refresh()
		return m, tea.Quit
	case CmdHelp:
		m.entries = append(m.entries, entry{speakerSystem, helpText()})
		m.refresh()
		return m, nil
	case CmdAdd:
		if len(fields) < 2 {
			m.entries = append(m.entries, entry{speakerError, "Usage: /add <path> [path...]"})
			m.refresh()
			return m, nil
		}
		m.busy = true
		m.entries = append(m.entries, entry{speakerUser, line})
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, m.ingest(fields[1:]))
	}

	m.busy = true
	m.entries = append(m.entries, entry{speakerUser, line}, entry{speakerBot, ""})
	m.refresh()
	m.stream = m.ask(line)
	return m, tea.Batch(m.spinner.Tick, waitFor(m.stream))
}

func (m Model) ingest(paths []string) tea.Cmd {
	ctx, assistant := m.ctx, m.assistant
	return func() tea.Msg {
		report, err := assistant.Ingest(ctx, paths)
		return ingestMsg{report: report, err: err}
	}
}

// ask runs the question in the background; deltas and the final answer
// arrive on the returned channel, which is closed afterwards.
func (m Model) ask(question string) <-chan tea.Msg {
	ch := make(chan tea.Msg, 64)
	ctx, assistant := m.ctx, m.assistant
	go func() {
		defer close(ch)
		reply, err := assistant.Ask(ctx, question, func(d string) {
			select {
			case ch <- deltaMsg(d):
			case <-ctx.Done():
			}
		})
		select {
		case ch <- answerMsg{reply: reply, err: err}:
		case <-ctx.Done():
		}
	}()
	return ch
}

func waitFor(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) appendToBot(delta string) {
	if n := len(m.entries); n > 0 && m.entries[n-1].who == speakerBot {
		m.entries[n-1].text += delta
		return
	}
	m.entries = append(m.entries, entry{speakerBot, delta})
}

func (m *Model) dropEmptyBot() {
	if n := len(m.entries); n > 0 && m.entries[n-1].who == speakerBot && m.entries[n-1].text == "" {
		m.entries = m.entries[:n-1]
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the transcript, the prompt and the status line.
func (m Model) View() string {
	if m.quitting {
		return m.renderTranscript() + "\n"
	}
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Quero")
	status := statusStyle.Render("Enter to send · PgUp/PgDn to scroll · Ctrl+C to quit")
	if m.busy {
		status = m.spinner.View() + " " + statusStyle.Render("thinking...")
	}
	return header + "\n" + m.viewport.View() + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderTranscript() string {
	width := m.viewport.Width
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		var label, body string
		switch e.who {
		case speakerUser:
			label = userStyle.Render(fmt.Sprintf("(%s) >>>", m.assistant.Username()))
			body = e.text
		case speakerBot:
			label = botStyle.Render("(Quero) >>>")
			body = e.text
		case speakerError:
			body = errorStyle.Render(e.text)
		default:
			body = noteStyle.Render(e.text)
		}
		if label != "" {
			b.WriteString(label)
			b.WriteString("\n")
		}
		if width > 0 {
			body = lipgloss.NewStyle().Width(width).Render(body)
		}
		b.WriteString(body)
	}
	return b.String()
}

func helpText() string {
	return CmdAdd + " <path...> -> to add documents.\n" +
		CmdBye + " -> to end the chat.\n" +
		CmdHelp + " -> to show this help."
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	botStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
