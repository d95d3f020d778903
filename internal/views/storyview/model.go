package storyview

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/viewport"
	"charm.land/lipgloss/v2"

	"github.com/olivoil/onewordstory/internal/backend"
	"github.com/olivoil/onewordstory/internal/failure"
	"github.com/olivoil/onewordstory/internal/story"
	"github.com/olivoil/onewordstory/internal/ui"
)

const (
	placeholderEmpty   = "Be the first to start the story!"
	placeholderLoading = "Loading story..."
)

// Model renders the story so far with the operation banner above it.
type Model struct {
	viewport viewport.Model
	snap     backend.Snapshot
	width    int
	height   int
}

// New creates a new story view model.
func New() Model {
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(10))
	return Model{viewport: vp}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.SetWidth(w)
	m.viewport.SetHeight(max(h-m.bannerHeight(), 3))
	m.setContent()
}

// SetSnapshot replaces the rendered state. The view follows the end of the
// story when it was already scrolled to the bottom.
func (m *Model) SetSnapshot(snap backend.Snapshot) {
	atBottom := m.viewport.AtBottom()
	m.snap = snap
	m.viewport.SetHeight(max(m.height-m.bannerHeight(), 3))
	m.setContent()
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// Update handles scrolling.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the banner and the story.
func (m Model) View() string {
	var b strings.Builder
	if banner := m.banner(); banner != "" {
		b.WriteString(banner)
		b.WriteByte('\n')
	}
	b.WriteString(m.viewport.View())
	return b.String()
}

func (m Model) banner() string {
	switch m.snap.State.Phase {
	case story.PhaseLoading:
		return ui.StyleDim.Render(" " + placeholderLoading)
	case story.PhaseError:
		msg := m.snap.State.Message()
		if hint := recoveryHint(m.snap.State.Err); hint != "" {
			msg += "\n" + ui.StyleDim.Render(hint)
		}
		return ui.StyleBanner.Width(max(m.width-2, 10)).Render(msg)
	}
	return ""
}

func recoveryHint(err error) string {
	switch {
	case !failure.CodeOf(err).Recoverable():
		return "Start a wallet provider or set STORY_PROVIDER_URL; it is picked up on the next connect."
	case failure.HasCode(err, failure.CodeUserRejected):
		return "Press c to ask the wallet again."
	}
	return ""
}

func (m Model) bannerHeight() int {
	if b := m.banner(); b != "" {
		return lipgloss.Height(b)
	}
	return 0
}

func (m *Model) setContent() {
	title := ui.StyleHeader.Render("The Story So Far:")
	var body string
	switch {
	case len(m.snap.Story) > 0:
		words := make([]string, len(m.snap.Story))
		for i, w := range m.snap.Story {
			words[i] = ui.StyleWord.Render(w)
		}
		body = lipgloss.NewStyle().Width(max(m.width-4, 10)).Render(strings.Join(words, " "))
	case m.snap.State.Phase == story.PhaseIdle:
		body = ui.StyleDim.Italic(true).Render(placeholderEmpty)
	}
	m.viewport.SetContent(title + "\n\n" + ui.StyleStoryBox.Render(body))
}
