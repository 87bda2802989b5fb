// Package tui provides the interactive question-answer session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/minirag/internal/rag"
	"github.com/mwiater/minirag/internal/util"
)

// Asker answers one question.
type Asker interface {
	Run(ctx context.Context, question string) rag.Result
}

// Info is shown in the session header.
type Info struct {
	Reranker string
	Chunks   int
	Tokens   int
	Debug    bool
}

// exchange is one question with its pipeline result.
type exchange struct {
	question string
	result   rag.Result
}

// answerMsg carries a finished pipeline run back to the UI.
type answerMsg struct {
	result rag.Result
}

type tickMsg time.Time

// model is the Bubble Tea model for the session.
type model struct {
	ctx              context.Context
	asker            Asker
	info             Info
	isLoading        bool
	textArea         textarea.Model
	viewport         viewport.Model
	spinner          spinner.Model
	history          []exchange
	pending          string
	width, height    int
	requestStartTime time.Time
}

// initialModel creates and initializes a new model with default values.
func initialModel(ctx context.Context, asker Asker, info Info) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Bir soru sorun..."
	ta.Focus()
	ta.Prompt = "Soru: "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return &model{
		ctx:      ctx,
		asker:    asker,
		info:     info,
		spinner:  s,
		textArea: ta,
		viewport: viewport.New(100, 5),
	}
}

// tickCmd keeps the elapsed timer moving while a run is in flight.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func answerCmd(ctx context.Context, asker Asker, question string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{result: asker.Run(ctx, question)}
	}
}

// Init starts the cursor blink.
func (m *model) Init() tea.Cmd {
	return textarea.Blink
}

// Update is the central update function for the Bubble Tea model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.isLoading {
				return m, nil
			}
			question := strings.TrimSpace(m.textArea.Value())
			if question == "" {
				return m, nil
			}
			m.pending = question
			m.textArea.Reset()
			m.isLoading = true
			m.requestStartTime = time.Now()
			return m, tea.Batch(m.spinner.Tick, answerCmd(m.ctx, m.asker, question), tickCmd())
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 3
		footerHeight := 3
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}

	case answerMsg:
		m.history = append(m.history, exchange{question: m.pending, result: msg.result})
		m.pending = ""
		m.isLoading = false
		m.textArea.Focus()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case tickMsg:
		if m.isLoading {
			return m, tickCmd()
		}
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.isLoading {
		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View renders the session.
func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var builder strings.Builder
	headerStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	header := headerStyle.Render("minirag")
	header = lipgloss.JoinHorizontal(lipgloss.Top,
		header,
		renderBadge(fmt.Sprintf("Reranker: %s", m.info.Reranker), "229"),
		renderBadge(fmt.Sprintf("Chunks: %d", m.info.Chunks), "255"),
	)
	help := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(" (enter to ask, esc to quit)")
	builder.WriteString(header + help + "\n\n")

	m.viewport.SetContent(m.renderHistory())
	builder.WriteString(m.viewport.View())

	if m.isLoading {
		timer := fmt.Sprintf("%.1f", time.Since(m.requestStartTime).Seconds())
		builder.WriteString("\n" + m.spinner.View() + fmt.Sprintf(" Searching... %ss", timer))
	} else {
		builder.WriteString("\n" + m.textArea.View())
	}
	return builder.String()
}

func (m *model) renderHistory() string {
	if len(m.history) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render("No questions yet.")
	}

	width := m.width
	if width <= 0 {
		width = 100
	}
	userStyle := lipgloss.NewStyle().Bold(true)
	answerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	sourceStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("40"))

	var b strings.Builder
	for _, ex := range m.history {
		role := userStyle.Render("Soru: ")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, role, lipgloss.NewStyle().Width(width-lipgloss.Width(role)-2).Render(ex.question)) + "\n")

		role = answerStyle.Render("Cevap: ")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, role, lipgloss.NewStyle().Width(width-lipgloss.Width(role)-2).Render(ex.result.Answer.FinalText)) + "\n")

		var sources []string
		for _, c := range ex.result.Answer.Citations {
			sources = append(sources, "["+c.String()+"]")
		}
		if len(sources) > 0 {
			b.WriteString(sourceStyle.Render("Kaynak: "+strings.Join(sources, " ")) + "\n")
		}
		if ex.result.Cached {
			b.WriteString(renderBadge("cached", "229") + "\n")
		}
		if m.info.Debug {
			b.WriteString(formatMeta(ex.result, width) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderBadge returns a Lipgloss-styled badge.
func renderBadge(label, background string) string {
	badgeStyle := lipgloss.NewStyle().Background(lipgloss.Color(background)).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1)
	return badgeStyle.Render(label)
}

// formatMeta summarizes a run for debug display.
func formatMeta(res rag.Result, width int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	line := fmt.Sprintf("  >>> [Intent: %s] [Terms: %s] [Hits: %d] [Total: %s]",
		res.Intent,
		strings.Join(res.Terms, ", "),
		len(res.Hits),
		res.Elapsed.Truncate(time.Microsecond),
	)
	if err := res.Err(); err != nil {
		line += fmt.Sprintf(" [Fallbacks: %v]", err)
	}
	return style.Render(util.TruncateToWidth(line, width))
}

// Start runs the interactive session until the user quits.
func Start(ctx context.Context, asker Asker, info Info) error {
	if asker == nil {
		return fmt.Errorf("pipeline is nil")
	}
	m := initialModel(ctx, asker, info)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
