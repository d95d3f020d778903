package compose

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/textinput"

	"github.com/olivoil/onewordstory/internal/ui"
)

const hint = "Only one word per contribution! No spaces allowed."

// SubmitMsg is sent when the user contributes the typed word.
type SubmitMsg struct {
	Word string
}

// ChangedMsg is sent whenever the draft changes.
type ChangedMsg struct {
	Word string
}

// Model is the single-word input line.
type Model struct {
	input    textinput.Model
	focused  bool
	disabled bool
	width    int
}

// New creates a new compose model.
func New() Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your word here (e.g., 'adventure')"
	ti.CharLimit = 64

	return Model{input: ti}
}

// SetSize updates dimensions.
func (m *Model) SetSize(w int) {
	m.width = w
	m.input.SetWidth(w - 4)
}

// SetDisabled blocks submission while an operation is in flight.
func (m *Model) SetDisabled(disabled bool) {
	m.disabled = disabled
}

// Disabled reports whether submission is blocked.
func (m *Model) Disabled() bool {
	return m.disabled
}

// Focus activates the input.
func (m *Model) Focus() tea.Cmd {
	m.focused = true
	return m.input.Focus()
}

// Blur deactivates the input.
func (m *Model) Blur() {
	m.focused = false
	m.input.Blur()
}

// Focused returns whether the input has focus.
func (m *Model) Focused() bool {
	return m.focused
}

// Value returns the current draft.
func (m *Model) Value() string {
	return m.input.Value()
}

// Reset clears the draft.
func (m *Model) Reset() {
	m.input.SetValue("")
}

// Update handles key input while focused.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	if kp, ok := msg.(tea.KeyPressMsg); ok {
		switch kp.String() {
		case "esc":
			m.Blur()
			return m, nil
		case "enter":
			// The one-word rule belongs to the contract; its revert reason is
			// shown when a phrase is submitted.
			word := strings.TrimSpace(m.input.Value())
			if m.disabled || word == "" {
				return m, nil
			}
			return m, func() tea.Msg { return SubmitMsg{Word: word} }
		}
	}

	prev := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != prev {
		return m, tea.Batch(cmd, func() tea.Msg { return ChangedMsg{Word: v} })
	}
	return m, cmd
}

// View renders the input and its hint.
func (m Model) View() string {
	hintStyle := ui.StyleDim
	if strings.ContainsAny(strings.TrimSpace(m.input.Value()), " \t") {
		hintStyle = ui.StyleError
	}
	line := m.input.View()
	if m.disabled {
		line = ui.StyleDim.Render("> Adding word...")
	}
	return line + "\n" + hintStyle.Render("  "+hint)
}
