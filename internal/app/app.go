package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/bubbles/v2/key"
	"charm.land/lipgloss/v2"

	"github.com/olivoil/onewordstory/internal/backend"
	"github.com/olivoil/onewordstory/internal/story"
	"github.com/olivoil/onewordstory/internal/ui"
	"github.com/olivoil/onewordstory/internal/views/activity"
	"github.com/olivoil/onewordstory/internal/views/compose"
	"github.com/olivoil/onewordstory/internal/views/storyview"
)

const (
	accountPollInterval = 3 * time.Second
	activityHeight      = 4
)

// Run starts the TUI application.
func Run(configPath string) error {
	cfg, err := backend.LoadConfig(configPath, AppName)
	if err != nil {
		return err
	}
	logger, logFile, err := backend.OpenLog(cfg.General)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ui.Apply(ui.DefaultTheme().Merge(themeFromConfig(cfg.Theme)))

	client, err := backend.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(ctx, client)
	p := tea.NewProgram(m)
	client.SetSender(p)

	w, err := backend.NewWatcher(client.Endpoint(), p, logger.With("component", "watcher"))
	switch {
	case err == nil:
		defer w.Close()
	case !errors.Is(err, backend.ErrNotIPC):
		logger.Warn("provider socket watcher unavailable", "error", err)
	}

	logger.Info("starting", "version", AppVersion, "provider", client.Endpoint(), "contract", cfg.Contract.Address)
	_, err = p.Run()
	return err
}

func themeFromConfig(c backend.ThemeConfig) ui.Theme {
	return ui.Theme{
		Accent: c.Accent,
		Green:  c.Green,
		Red:    c.Red,
		Yellow: c.Yellow,
		Blue:   c.Blue,
		Dim:    c.Dim,
		Border: c.Border,
	}
}

// model is the root application model.
type model struct {
	ctx      context.Context
	width    int
	height   int
	ready    bool
	showHelp bool
	keys     KeyMap

	// scrollFeed routes scroll input to the activity feed instead of the story.
	scrollFeed bool

	client *backend.Client
	snap   backend.Snapshot

	storyView    storyview.Model
	composeView  compose.Model
	activityView activity.Model
}

func newModel(ctx context.Context, client *backend.Client) model {
	m := model{
		ctx:          ctx,
		keys:         DefaultKeyMap(),
		client:       client,
		storyView:    storyview.New(),
		composeView:  compose.New(),
		activityView: activity.New(),
	}
	m.sync()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.detect,
		m.tickAccounts(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layoutViews()
		return m, nil

	case SessionDetectedMsg:
		m.sync()
		if msg.Err == nil && !msg.Session.Absent() {
			return m, m.startRefresh()
		}
		return m, nil

	case ConnectedMsg:
		m.sync()
		if msg.Err == nil {
			return m, m.startRefresh()
		}
		return m, nil

	case StoryLoadedMsg, ProviderGoneMsg:
		m.sync()
		return m, nil

	case WordSubmittedMsg:
		if msg.Committed {
			m.composeView.Reset()
		}
		m.sync()
		return m, nil

	case AccountsCheckedMsg:
		m.sync()
		if msg.Err == nil && (msg.Resubscribed || msg.Changed && !msg.Session.Absent()) {
			return m, m.startRefresh()
		}
		return m, nil

	case AccountsTickMsg:
		m.activityView.Refresh()
		return m, tea.Batch(m.checkAccounts, m.tickAccounts())

	case backend.AppendMsg:
		m.activityView.Add(msg.Event)
		return m, m.startRefresh()

	case backend.WatchMsg:
		switch msg.Kind {
		case backend.WatchProviderUp:
			return m, m.detect
		case backend.WatchProviderDown:
			return m, m.providerGone
		}
		return m, nil

	case compose.ChangedMsg:
		m.client.SetPending(msg.Word)
		return m, nil

	case compose.SubmitMsg:
		return m, m.startSubmit(msg.Word)

	case tea.KeyPressMsg:
		// If the input has focus, let it handle keys first.
		if m.composeView.Focused() {
			var cmd tea.Cmd
			m.composeView, cmd = m.composeView.Update(msg)
			return m, cmd
		}
		return m.handleKey(msg)
	}

	return m.scroll(msg)
}

func (m model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case m.showHelp && key.Matches(msg, m.keys.Back):
		m.showHelp = false
		return m, nil

	case key.Matches(msg, m.keys.Connect):
		if m.snap.Connected() {
			return m, nil
		}
		return m, m.connect

	case key.Matches(msg, m.keys.Compose):
		if !m.snap.Connected() {
			return m, nil
		}
		return m, m.composeView.Focus()

	case key.Matches(msg, m.keys.Submit):
		return m, m.startSubmit(m.composeView.Value())

	case key.Matches(msg, m.keys.Refresh):
		return m, m.startRefresh()

	case key.Matches(msg, m.keys.Switch):
		m.scrollFeed = !m.scrollFeed
		return m, nil
	}

	return m.scroll(msg)
}

func (m model) scroll(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.scrollFeed {
		m.activityView, cmd = m.activityView.Update(msg)
	} else {
		m.storyView, cmd = m.storyView.Update(msg)
	}
	return m, cmd
}

// sync re-reads the client state into the views.
func (m *model) sync() {
	m.snap = m.client.Snapshot()
	m.storyView.SetSnapshot(m.snap)
	m.composeView.SetDisabled(m.snap.State.Phase == story.PhaseLoading)
	if !m.snap.Connected() {
		m.composeView.Blur()
	}
}

// markLoading shows the loading state until the command's result arrives.
func (m *model) markLoading() {
	m.snap.State = story.State{Phase: story.PhaseLoading}
	m.storyView.SetSnapshot(m.snap)
	m.composeView.SetDisabled(true)
}

func (m *model) startRefresh() tea.Cmd {
	if !m.snap.Bound {
		return nil
	}
	m.markLoading()
	return m.refresh
}

func (m *model) startSubmit(word string) tea.Cmd {
	if m.composeView.Disabled() {
		return nil
	}
	m.client.SetPending(word)
	if m.snap.Connected() && strings.TrimSpace(word) != "" {
		m.markLoading()
	}
	return m.submit
}

func (m model) View() tea.View {
	var v tea.View
	v.AltScreen = true
	v.SetContent(m.render())
	return v
}

func (m model) render() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	var b strings.Builder

	// Header (2 lines: title + bar).
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	b.WriteString(m.storyView.View())
	b.WriteByte('\n')

	feedTitle := ui.StyleDim.Render(" Recent activity")
	if m.scrollFeed {
		feedTitle = ui.StyleAccent.Render(" Recent activity ↕")
	}
	b.WriteString(feedTitle)
	b.WriteByte('\n')
	b.WriteString(m.activityView.View())
	b.WriteByte('\n')

	if m.snap.Connected() {
		b.WriteString(m.composeView.View())
		b.WriteByte('\n')
	}
	b.WriteString(m.renderHelpLine())
	return b.String()
}

func (m *model) renderHeader() string {
	title := ui.StyleHeader.Render(" One Word Story ")

	var account string
	switch {
	case m.snap.Connected():
		account = ui.StyleDim.Render("Connected: ") + ui.StyleActive.Render(m.snap.Session.Short())
	case !m.snap.ProviderReady:
		account = ui.StyleInactive.Render("○ no wallet provider")
	default:
		account = ui.StyleInactive.Render("○ not connected")
	}

	parts := []string{title, account, ui.PhaseIcon(m.snap.State.Phase) + " " + ui.StyleDim.Render(m.snap.State.Phase.String())}
	if m.snap.Bound {
		parts = append(parts, ui.StyleDim.Render(fmt.Sprintf("chain %d", m.snap.ChainID)))
	}
	parts = append(parts, ui.StyleDim.Render(fmt.Sprintf("words: %d", len(m.snap.Story))))

	header := lipgloss.JoinHorizontal(lipgloss.Center, interleave(parts, ui.StyleDim.Render("   "))...)

	bar := strings.Repeat("━", max(m.width, 1))
	return header + "\n" + ui.StyleDim.Render(bar)
}

func interleave(parts []string, sep string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, p)
	}
	return out
}

func (m *model) renderHelpLine() string {
	var parts []string
	switch {
	case m.composeView.Focused():
		parts = []string{"enter contribute word", "esc cancel"}
	case m.snap.Connected():
		parts = []string{"/ write a word", "enter contribute", "ctrl+l refresh", "↑↓ scroll", "tab story/activity", "? help", "q quit"}
	default:
		parts = []string{"c connect wallet", "ctrl+l refresh", "? help", "q quit"}
	}
	return ui.StyleDim.Render(" " + strings.Join(parts, "  │  "))
}

func (m *model) renderHelpOverlay() string {
	title := ui.StyleHeader.Render(fmt.Sprintf(" %s help ", AppName))
	help := `
  Collaborate on an ever-growing tale, one word at a time, on the blockchain.

  Wallet
    c               Connect wallet
    q, ctrl+c       Quit

  Story
    /, i            Write a word
    enter           Contribute word
    esc             Cancel writing
    ctrl+l, r       Refresh the story
    ↑/↓, j/k        Scroll
    tab             Scroll the story or the activity feed

  Other
    ?               Toggle this help

  ` + ui.StyleDim.Render("Press ? to close")
	return title + "\n" + help
}

func (m *model) layoutViews() {
	// header(2) + activity title(1) + activity + compose(2) + help line(1)
	storyHeight := m.height - 6 - activityHeight
	if storyHeight < 5 {
		storyHeight = 5
	}
	m.storyView.SetSize(m.width, storyHeight)
	m.activityView.SetSize(m.width, activityHeight)
	m.composeView.SetSize(m.width)
}

// --- Commands ---

func (m *model) detect() tea.Msg {
	s, err := m.client.Detect(m.ctx)
	return SessionDetectedMsg{Session: s, Err: err}
}

func (m *model) connect() tea.Msg {
	s, err := m.client.Connect(m.ctx)
	return ConnectedMsg{Session: s, Err: err}
}

func (m *model) refresh() tea.Msg {
	return StoryLoadedMsg{Err: m.client.Refresh(m.ctx)}
}

func (m *model) submit() tea.Msg {
	word := m.client.Snapshot().Pending
	committed, err := m.client.Submit(m.ctx)
	return WordSubmittedMsg{Word: word, Committed: committed, Err: err}
}

func (m *model) checkAccounts() tea.Msg {
	s, changed, err := m.client.CheckAccounts(m.ctx)
	if err != nil || changed {
		return AccountsCheckedMsg{Session: s, Changed: changed, Err: err}
	}
	resubscribed, err := m.client.EnsureSubscribed(m.ctx)
	return AccountsCheckedMsg{Session: s, Resubscribed: resubscribed, Err: err}
}

func (m *model) providerGone() tea.Msg {
	m.client.ProviderGone()
	return ProviderGoneMsg{}
}

func (m *model) tickAccounts() tea.Cmd {
	return tea.Tick(accountPollInterval, func(time.Time) tea.Msg {
		return AccountsTickMsg{}
	})
}
