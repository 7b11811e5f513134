// Package repl implements the `kb repl` built-in: a small bubbletea
// program that reads one command line at a time and dispatches it through
// the same Dispatcher used for single-shot invocations, printing results
// to a scrollback view. Model shape (Init/Update/View) grounded on
// kcli/internal/ui/tui.go's tea.Model, trimmed from a full resource
// browser (no analogue in this domain) to a single-line input plus
// scrollback.
package repl

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dispatch runs one REPL line and returns the text to append to
// scrollback. Supplied by the caller so this package never imports
// internal/dispatcher directly (avoiding an import cycle through
// internal/builtin, which registers the repl command itself).
type Dispatch func(line string) string

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type model struct {
	input      textinput.Model
	history    []string
	dispatch   Dispatch
	quitting   bool
}

// New constructs the REPL's initial bubbletea model.
func New(dispatch Dispatch) tea.Model {
	ti := textinput.New()
	ti.Placeholder = "kb> "
	ti.Focus()
	return model{input: ti, dispatch: dispatch}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			if line == "exit" || line == "quit" {
				m.quitting = true
				return m, tea.Quit
			}
			m.history = append(m.history, promptStyle.Render("kb> ")+line)
			if m.dispatch != nil {
				m.history = append(m.history, m.dispatch(line))
			}
			m.input.SetValue("")
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	for _, line := range m.history {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	return b.String()
}
