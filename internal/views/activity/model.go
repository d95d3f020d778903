package activity

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/viewport"

	"github.com/olivoil/onewordstory/internal/contract"
	"github.com/olivoil/onewordstory/internal/ui"
	"github.com/olivoil/onewordstory/internal/wallet"
)

const maxEntries = 100

// Model is the feed of recent WordAdded notifications.
type Model struct {
	viewport viewport.Model
	entries  []contract.WordAdded
	width    int
	height   int
}

// New creates a new activity feed model.
func New() Model {
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(5))
	return Model{viewport: vp}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.SetWidth(w - 2)
	m.viewport.SetHeight(h)
	m.setContent()
}

// Add records a notification, newest first. Duplicate deliveries of the same
// log are ignored.
func (m *Model) Add(ev contract.WordAdded) {
	for _, e := range m.entries {
		if e.TxHash == ev.TxHash && e.Word == ev.Word {
			return
		}
	}
	m.entries = append([]contract.WordAdded{ev}, m.entries...)
	if len(m.entries) > maxEntries {
		m.entries = m.entries[:maxEntries]
	}
	m.setContent()
}

// Len returns the number of entries.
func (m *Model) Len() int {
	return len(m.entries)
}

// Refresh re-renders relative times.
func (m *Model) Refresh() {
	m.setContent()
}

// Update handles scrolling.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the feed.
func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) setContent() {
	if len(m.entries) == 0 {
		m.viewport.SetContent(ui.StyleDim.Render("(no contributions yet this session)"))
		return
	}
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		who := wallet.Session{Address: e.Contributor}.Short()
		lines[i] = fmt.Sprintf("%s %s %s  %s",
			ui.StyleAccent.Render(who),
			ui.StyleDim.Render("added"),
			ui.StyleWord.Render(e.Word),
			ui.StyleDim.Render(ui.FormatTime(e.Timestamp)),
		)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}
