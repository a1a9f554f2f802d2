package main

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/poiesic/ragstream/core"
	"github.com/urfave/cli/v2"
)

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Ask questions interactively with streamed answers",
		Flags: append(queryFlags(),
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Generation provider (default: provider.default)",
			},
		),
		Action: func(c *cli.Context) error {
			e, err := openEngine(c.Context, c)
			if err != nil {
				return err
			}
			defer e.Close()

			m := newChatModel(c.Context, e.Pipeline(), core.Query{
				Provider:   c.String("provider"),
				TopK:       c.Int("top-k"),
				DocumentID: c.String("document"),
			})
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(c.Context)).Run()
			return err
		},
	}
}

// answerer is the part of the pipeline the chat needs.
type answerer interface {
	Query(ctx context.Context, q core.Query) (iter.Seq2[string, error], error)
}

type turn struct {
	question string
	answer   strings.Builder
	failed   bool
}

type streamStartedMsg struct {
	next func() (string, error, bool)
	stop func()
	err  error
}

type fragmentMsg struct {
	text string
	err  error
	done bool
}

// chatModel is the Bubble Tea model of the chat command. One question is
// answered at a time; Esc cancels the answer being streamed.
type chatModel struct {
	ctx      context.Context
	svc      answerer
	template core.Query

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []*turn
	status   string
	ready    bool

	streaming bool
	cancel    context.CancelFunc
	next      func() (string, error, bool)
	stop      func()
}

func newChatModel(ctx context.Context, svc answerer, template core.Query) *chatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	return &chatModel{
		ctx:      ctx,
		svc:      svc,
		template: template,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		status:   "Ready. Esc cancels an answer, Ctrl-C quits.",
	}
}

func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 + 1 // header, input line, status, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.cancelAnswer()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming {
				m.cancelAnswer()
				m.status = "Cancelling..."
			}
			return m, nil
		case tea.KeyEnter:
			return m, m.ask()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case streamStartedMsg:
		if msg.err != nil {
			m.finish("Error: " + msg.err.Error())
			m.current().answer.WriteString(msg.err.Error())
			m.current().failed = true
			m.refresh()
			return m, nil
		}
		m.next, m.stop = msg.next, msg.stop
		return m, m.waitFragment()

	case fragmentMsg:
		if msg.done {
			if m.stop != nil {
				m.stop()
			}
			m.next, m.stop = nil, nil
			m.finish("Ready.")
			m.refresh()
			return m, nil
		}
		if msg.err != nil {
			m.current().failed = true
			m.current().answer.WriteString("\n[Error: " + msg.err.Error() + "]")
		} else {
			m.current().answer.WriteString(msg.text)
		}
		m.refresh()
		return m, m.waitFragment()

	case spinner.TickMsg:
		if !m.streaming {
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

func (m *chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := m.status
	if m.streaming {
		status = m.spinner.View() + " " + status
	}
	return headerStyle.Render("ragstream chat") + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

// ask starts answering the question in the input line.
func (m *chatModel) ask() tea.Cmd {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.streaming {
		return nil
	}
	m.input.Reset()
	m.turns = append(m.turns, &turn{question: question})
	m.streaming = true
	m.status = "Thinking..."
	m.refresh()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	q := m.template
	q.Text = question
	svc := m.svc

	start := func() tea.Msg {
		seq, err := svc.Query(ctx, q)
		if err != nil {
			return streamStartedMsg{err: err}
		}
		next, stop := iter.Pull2(seq)
		return streamStartedMsg{next: next, stop: stop}
	}
	return tea.Batch(start, m.spinner.Tick)
}

func (m *chatModel) waitFragment() tea.Cmd {
	next := m.next
	return func() tea.Msg {
		text, err, ok := next()
		if !ok {
			return fragmentMsg{done: true}
		}
		return fragmentMsg{text: text, err: err}
	}
}

func (m *chatModel) cancelAnswer() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *chatModel) finish(status string) {
	m.cancelAnswer()
	m.cancel = nil
	m.streaming = false
	m.status = status
}

func (m *chatModel) current() *turn {
	return m.turns[len(m.turns)-1]
}

func (m *chatModel) refresh() {
	width := max(20, m.viewport.Width-2)
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Width(width).Render("You: " + t.question))
		b.WriteString("\n")
		style := answerStyle
		if t.failed {
			style = errorStyle
		}
		b.WriteString(style.Width(width).Render(t.answer.String()))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// transcript returns the answers given so far, for tests.
func (m *chatModel) transcript() []string {
	out := make([]string, len(m.turns))
	for i, t := range m.turns {
		out[i] = fmt.Sprintf("%s => %s", t.question, t.answer.String())
	}
	return out
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	answerStyle     = lipgloss.NewStyle()
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
