// Package tui is the interactive terminal front end. Every action runs as a
// tea.Cmd that calls a service; the view re-reads the state store.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/liliang-cn/ragdesk/internal/config"
	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/service"
	"github.com/liliang-cn/ragdesk/internal/state"
)

const sidebarWidth = 30

type phase int

const (
	phaseChecking phase = iota
	phaseReady
	phaseUnhealthy
)

type (
	changedMsg struct{}

	startedMsg struct {
		status domain.HealthStatus
		err    error
	}

	actionDoneMsg struct {
		err error
	}

	askDoneMsg struct {
		outcome *service.AskOutcome
		err     error
	}

	alphaDoneMsg struct {
		alpha float64
		err   error
	}
)

// Model is the bubbletea model of the application
type Model struct {
	ctx     context.Context
	orch    *service.Orchestrator
	baseURL string
	step    float64
	changes chan struct{}

	phase       phase
	health      domain.HealthStatus
	useCache    bool
	alpha       float64
	alphaKnown  bool
	showSources bool
	naming      bool
	cursor      int
	flash       string

	keys     keyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
}

// New creates the model and subscribes it to state and notification changes
func New(ctx context.Context, orch *service.Orchestrator, cfg *config.Config) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Ask a question"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = activeStyle

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = true

	changes := make(chan struct{}, 1)
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	orch.Store.OnChange(notify)
	orch.Hub.OnChange(notify)

	return Model{
		ctx:      ctx,
		orch:     orch,
		baseURL:  cfg.Backend.BaseURL,
		step:     cfg.UI.AlphaStep,
		changes:  changes,
		useCache: cfg.UI.UseCache,
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    input,
		viewport: vp,
		spinner:  sp,
	}
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, orch *service.Orchestrator, cfg *config.Config) error {
	defer orch.Shutdown()
	p := tea.NewProgram(New(ctx, orch, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCmd(), waitForChange(m.changes))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) startCmd() tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		status, err := orch.Start(ctx)
		return startedMsg{status: status, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case changedMsg:
		m.syncFromState()
		return m, waitForChange(m.changes)

	case startedMsg:
		m.health = msg.status
		if !msg.status.Healthy() {
			m.phase = phaseUnhealthy
			return m, nil
		}
		m.phase = phaseReady
		m.syncFromState()
		return m, nil

	case actionDoneMsg:
		m.setFlash(msg.err)
		m.syncFromState()
		return m, nil

	case askDoneMsg:
		m.setFlash(msg.err)
		if msg.outcome != nil && msg.outcome.Discarded {
			m.flash = "Answer discarded: session changed"
		}
		m.syncFromState()
		return m, nil

	case alphaDoneMsg:
		m.setFlash(msg.err)
		if msg.err == nil {
			m.alpha, m.alphaKnown = msg.alpha, true
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.phase != phaseReady {
			return m, nil
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	snap := m.orch.Store.Snapshot()

	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.naming {
			m.naming = false
			m.input.Reset()
			m.input.Placeholder = "Ask a question"
		}
		return nil, true

	case key.Matches(msg, m.keys.Submit):
		return m.submit(snap), true

	case key.Matches(msg, m.keys.New):
		m.naming = true
		m.input.Reset()
		m.input.Placeholder = "Session name"
		return nil, true

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return nil, true

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(snap.Sessions)-1 {
			m.cursor++
		}
		return nil, true

	case key.Matches(msg, m.keys.Delete):
		id := snap.ActiveID()
		if id == "" {
			m.flash = "No active session"
			return nil, true
		}
		return m.run(func(ctx context.Context) error {
			return m.orch.Sessions.Delete(ctx, id)
		}), true

	case key.Matches(msg, m.keys.Sources):
		m.showSources = !m.showSources
		m.resize()
		m.refreshViewport()
		return nil, true

	case key.Matches(msg, m.keys.Cache):
		m.useCache = !m.useCache
		return nil, true

	case key.Matches(msg, m.keys.AlphaUp):
		return m.alphaCmd(m.alpha + m.step), true

	case key.Matches(msg, m.keys.AlphaDown):
		return m.alphaCmd(m.alpha - m.step), true

	case key.Matches(msg, m.keys.Refresh):
		orch := m.orch
		return m.run(func(ctx context.Context) error {
			if _, err := orch.Sessions.List(ctx); err != nil {
				return err
			}
			if orch.Store.ActiveID() != "" {
				if err := orch.Conv.LoadHistory(ctx); err != nil {
					return err
				}
			}
			return orch.Config.LoadStats(ctx)
		}), true
	}
	return nil, false
}

func (m *Model) submit(snap state.Snapshot) tea.Cmd {
	text := strings.TrimSpace(m.input.Value())

	if m.naming {
		m.naming = false
		m.input.Reset()
		m.input.Placeholder = "Ask a question"
		orch := m.orch
		return m.run(func(ctx context.Context) error {
			_, err := orch.Sessions.Create(ctx, text)
			return err
		})
	}

	if text == "" {
		if m.cursor >= len(snap.Sessions) {
			return nil
		}
		id := snap.Sessions[m.cursor].ID
		orch := m.orch
		return m.run(func(ctx context.Context) error {
			return orch.Sessions.Select(ctx, id)
		})
	}

	id := snap.ActiveID()
	if id == "" {
		m.flash = "Create or select a session first"
		return nil
	}
	m.input.Reset()
	orch, ctx, useCache := m.orch, m.ctx, m.useCache
	return func() tea.Msg {
		outcome, err := orch.Conv.Ask(ctx, id, text, useCache)
		return askDoneMsg{outcome: outcome, err: err}
	}
}

func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: fn(ctx)}
	}
}

func (m Model) alphaCmd(target float64) tea.Cmd {
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		alpha, err := orch.Config.SetAlpha(ctx, target)
		return alphaDoneMsg{alpha: alpha, err: err}
	}
}

// setFlash shows local validation errors; backend failures already reach
// the user through the notification hub.
func (m *Model) setFlash(err error) {
	m.flash = ""
	if err != nil && domain.IsValidation(err) {
		m.flash = err.Error()
	}
}

func (m *Model) syncFromState() {
	snap := m.orch.Store.Snapshot()
	if m.cursor >= len(snap.Sessions) {
		m.cursor = max(0, len(snap.Sessions)-1)
	}
	if id := snap.ActiveID(); id != "" {
		for i, s := range snap.Sessions {
			if s.ID == id {
				m.cursor = i
				break
			}
		}
	}
	if snap.Stats != nil && !m.alphaKnown {
		m.alpha, m.alphaKnown = snap.Stats.Alpha, true
	}
	m.refreshViewport()
}

func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	mainWidth := max(20, m.width-sidebarWidth-4)
	m.input.Width = mainWidth - 4

	reserved := 6
	if m.showSources {
		reserved += m.height / 3
	}
	m.viewport.Width = mainWidth - 2
	m.viewport.Height = max(3, m.height-reserved)

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(20, mainWidth-6)),
	)
	if err == nil {
		m.renderer = r
	}
}

func (m *Model) refreshViewport() {
	snap := m.orch.Store.Snapshot()
	m.viewport.SetContent(m.renderMessages(snap))
	m.viewport.GotoBottom()
}

func (m Model) renderMessages(snap state.Snapshot) string {
	if snap.Active == nil {
		return mutedStyle.Render("No session selected. ctrl+n creates one; ctrl+↑/↓ and enter select.")
	}
	if len(snap.Messages) == 0 && !snap.Sending {
		return mutedStyle.Render("No messages yet.")
	}

	var b strings.Builder
	for _, msg := range snap.Messages {
		if msg.Role == domain.RoleUser {
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(msg.Message + "\n\n")
			continue
		}
		b.WriteString(activeStyle.Render("Assistant") + "\n")
		b.WriteString(m.renderMarkdown(msg.Message))
		b.WriteString("\n")
	}
	if snap.Sending {
		b.WriteString(mutedStyle.Render(m.spinner.View() + " Thinking..."))
	}
	return b.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (m Model) View() string {
	switch m.phase {
	case phaseChecking:
		return fmt.Sprintf("\n  %s Checking backend at %s...\n", m.spinner.View(), m.baseURL)
	case phaseUnhealthy:
		reason := m.health.Error
		if reason == "" {
			reason = "unknown error"
		}
		return "\n  " + errorStyle.Render("Backend unavailable") + "\n\n" +
			fmt.Sprintf("  %s: %s\n\n", m.baseURL, reason) +
			mutedStyle.Render("  Start the backend and restart ragdesk. Press ctrl+c to quit.") + "\n"
	}

	snap := m.orch.Store.Snapshot()
	sidebar := paneStyle.Width(sidebarWidth).Height(max(3, m.height-4)).Render(m.renderSessions(snap))

	main := []string{m.viewport.View()}
	if m.showSources {
		main = append(main, m.renderSources(snap))
	}
	main = append(main, m.input.View())
	right := paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, main...))

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, right)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatus(snap), m.help.ShortHelpView(m.keys.help()))
}

func (m Model) renderSessions(snap state.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sessions") + "\n\n")
	if len(snap.Sessions) == 0 {
		b.WriteString(mutedStyle.Render("none"))
		return b.String()
	}
	active := snap.ActiveID()
	for i, s := range snap.Sessions {
		line := fmt.Sprintf("%s (%d)", s.Name, s.MessageCount)
		if len(line) > sidebarWidth-4 {
			line = line[:sidebarWidth-7] + "..."
		}
		switch {
		case i == m.cursor:
			line = selectedStyle.Render(line)
		case s.ID == active:
			line = activeStyle.Render(line)
		}
		if s.ID == active {
			line = "● " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderSources(snap state.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sources") + "\n")
	if len(snap.Sources) == 0 {
		b.WriteString(mutedStyle.Render("no sources"))
		return b.String()
	}
	for i, src := range snap.Sources {
		fmt.Fprintf(&b, "[%d] %s p.%d  %s\n", i+1, src.Table, src.Page,
			mutedStyle.Render(fmt.Sprintf("score %.2f", src.Score)))
		text := strings.Join(strings.Fields(src.Text), " ")
		if len(text) > 160 {
			text = text[:160] + "..."
		}
		b.WriteString("    " + mutedStyle.Render(text) + "\n")
	}
	return b.String()
}

func (m Model) renderStatus(snap state.Snapshot) string {
	var parts []string

	errSignal, okSignal := m.orch.Hub.Pending()
	if errSignal != nil {
		parts = append(parts, errorStyle.Render("✗ "+errSignal.Message))
	}
	if okSignal != nil {
		parts = append(parts, successStyle.Render("✓ "+okSignal.Message))
	}
	if m.flash != "" {
		parts = append(parts, warningStyle.Render(m.flash))
	}

	cache := "off"
	if m.useCache {
		cache = "on"
	}
	alpha := "?"
	if m.alphaKnown {
		alpha = fmt.Sprintf("%.2f", m.alpha)
	}
	info := fmt.Sprintf("alpha %s | cache %s", alpha, cache)
	if snap.Stats != nil {
		info += fmt.Sprintf(" | %d chunks", snap.Stats.TotalChunks)
	}
	if snap.Sending {
		info += " | " + m.spinner.View() + " sending"
	}
	parts = append(parts, mutedStyle.Render(info))
	return strings.Join(parts, "  ")
}
