// Package presenter is the minimal text/JSON output envelope the built-ins
// write through; the Dispatcher returns an Outcome and does not call it.
// spec.md §1
// calls presenters out of scope as a pluggable concern, but something
// concrete has to exist to run built-ins end to end; text rendering
// follows the teacher cli package's direct fmt.Fprintf-to-writer style,
// JSON follows spec.md §6's envelope shape.
package presenter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/kblabs/kb/internal/terminal"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

func init() {
	if terminal.ColorDisabled() {
		headingStyle = headingStyle.UnsetForeground()
		errorStyle = lipgloss.NewStyle().Bold(true)
		hintStyle = lipgloss.NewStyle().Italic(true)
	}
}

// Envelope is the JSON output shape for --json mode.
type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Presenter renders output in either text or JSON mode, selected once at
// construction by the --json global flag.
type Presenter struct {
	out  io.Writer
	json bool
}

// New constructs a Presenter writing to out in the given mode.
func New(out io.Writer, jsonMode bool) *Presenter {
	return &Presenter{out: out, json: jsonMode}
}

// Heading prints a section title in text mode; a no-op in JSON mode (the
// caller is expected to fold the same information into Data via Success).
func (p *Presenter) Heading(text string) {
	if p.json {
		return
	}
	fmt.Fprintln(p.out, headingStyle.Render(text))
}

// Line prints one plain line of text output.
func (p *Presenter) Line(format string, args ...any) {
	if p.json {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success emits an ok envelope (JSON mode) or a plain message (text mode).
func (p *Presenter) Success(message string, data any) {
	if p.json {
		p.emit(Envelope{OK: true, Message: message, Data: data})
		return
	}
	if message != "" {
		fmt.Fprintln(p.out, message)
	}
}

// Error emits a failure envelope (JSON) or a styled error line plus hint
// (text), carrying the message/code/hint fields spec.md §4.F's crash
// report and availability/permission gates surface to the user.
func (p *Presenter) Error(message, code, hint string) {
	if p.json {
		p.emit(Envelope{OK: false, Error: message, Code: code, Hint: hint})
		return
	}
	fmt.Fprintln(p.out, errorStyle.Render("error: "+message))
	if hint != "" {
		fmt.Fprintln(p.out, hintStyle.Render("hint: "+hint))
	}
}

func (p *Presenter) emit(e Envelope) {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		fmt.Fprintf(p.out, `{"ok":false,"error":%q}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(p.out, string(b))
}
