// Package tui is the terminal front end for user players: it shows the
// current player's local map, the turn, team scores and chat, and reads
// moves and chat commands from the keyboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/teamgrid/chat"
	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/peer"
	"github.com/brensch/teamgrid/protocol"
)

// Backend is the part of the engine the UI talks to.
type Backend interface {
	Events() <-chan peer.Event
	SendChat(ctx context.Context, from, text string) error
	Chat() *chat.Relay
	TeamOf(player string) string
}

var _ Backend = (*peer.Engine)(nil)

type eventMsg peer.Event
type promptMsg moveRequest
type eventsClosedMsg struct{}
type statusMsg struct {
	text string
	err  bool
}

func waitForEvent(events <-chan peer.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func waitForPrompt(requests chan moveRequest) tea.Cmd {
	return func() tea.Msg {
		return promptMsg(<-requests)
	}
}

type Model struct {
	ctx      context.Context
	backend  Backend
	prompter *Prompter
	styles   styles

	// viewer is the local player whose chat and map are shown.
	viewer string

	input    textinput.Model
	chatView viewport.Model
	lines    []string

	current   string
	view      game.LocalMap
	viewOwner string
	hasView   bool
	pending   *moveRequest
	scores    protocol.Scores
	lobby     string
	status    string
	statusErr bool
	over      bool

	width, height int
}

func New(ctx context.Context, backend Backend, prompter *Prompter, viewer string) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 280
	input.Placeholder = "up/down/left/right, /chat <text>, /open <your team>, /close <your team>"
	input.Focus()

	return Model{
		ctx:      ctx,
		backend:  backend,
		prompter: prompter,
		styles:   defaultStyles(),
		viewer:   viewer,
		input:    input,
		chatView: viewport.New(60, 8),
		scores:   protocol.Scores{},
		status:   "waiting for the game to start",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.backend.Events()), waitForPrompt(m.prompter.requests))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chatView.Width = max(20, msg.Width-4)
		m.chatView.Height = max(4, msg.Height-22)
		m.refreshChat()

	case eventMsg:
		m.applyEvent(peer.Event(msg))
		cmds = append(cmds, waitForEvent(m.backend.Events()))

	case eventsClosedMsg:
		m.setStatus("engine stopped", true)

	case promptMsg:
		req := moveRequest(msg)
		m.pending = &req
		m.viewer = req.player
		m.view, m.viewOwner, m.hasView = req.view, req.player, true
		m.setStatus(fmt.Sprintf("%s, your move", req.player), false)
		m.drainVisible()

	case statusMsg:
		m.setStatus(msg.text, msg.err)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			line := m.input.Value()
			m.input.Reset()
			return m, m.submit(ParseCommand(line))
		}
		if mv, ok := keyMove(msg.String()); ok && m.pending != nil && m.input.Value() == "" {
			return m, m.answer(mv)
		}
		if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			var cmd tea.Cmd
			m.chatView, cmd = m.chatView.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status, m.statusErr = text, isErr
}

func (m *Model) applyEvent(ev peer.Event) {
	switch ev.Kind {
	case peer.EventTurn:
		m.current = ev.Player
		m.drainVisible()
	case peer.EventMap:
		if ev.Player == m.viewer && m.pending == nil {
			m.view, m.viewOwner, m.hasView = ev.Map, ev.Player, true
		}
	case peer.EventChat:
		m.drainVisible()
	case peer.EventScores:
		m.scores = ev.Scores
	case peer.EventLobby:
		m.lobby = ev.Text
	case peer.EventPhase:
		if ev.Phase == game.PhaseInGame {
			m.setStatus("game started", false)
		}
	case peer.EventGameOver:
		m.over = true
		m.pending = nil
		if ev.Scores != nil {
			m.scores = ev.Scores
		}
		m.setStatus(ev.Text+" (ctrl+c to exit)", false)
	}
}

// drainVisible moves queued chat for the viewer's team into the chat pane
// when the viewer is allowed to see it. Lines stay queued otherwise.
func (m *Model) drainVisible() {
	if m.viewer == "" {
		return
	}
	relay := m.backend.Chat()
	team := m.backend.TeamOf(m.viewer)
	if team == "" || !relay.Visible(m.viewer, team) {
		return
	}
	if lines := relay.Drain(m.viewer); len(lines) > 0 {
		m.lines = append(m.lines, lines...)
		m.refreshChat()
	}
}

func (m *Model) refreshChat() {
	m.chatView.SetContent(strings.Join(m.lines, "\n"))
	m.chatView.GotoBottom()
}

func (m *Model) answer(mv game.Move) tea.Cmd {
	req := m.pending
	m.pending = nil
	m.setStatus(fmt.Sprintf("%s moved %s", req.player, mv), false)
	req.reply <- mv
	return waitForPrompt(m.prompter.requests)
}

func (m *Model) submit(c Command) tea.Cmd {
	switch c.Kind {
	case CmdNone:
		return nil
	case CmdQuit:
		return tea.Quit
	case CmdInvalid:
		m.setStatus(c.Arg, true)
		return nil
	case CmdMove:
		if m.pending == nil {
			m.setStatus("not your turn; use /chat to talk to your team", true)
			return nil
		}
		return m.answer(c.Move)
	case CmdOpen, CmdClose:
		// Only the viewer's own team's lines are ever queued for the viewer.
		own := m.backend.TeamOf(m.viewer)
		if c.Arg != own {
			m.setStatus(fmt.Sprintf("you can only open your own team's room (%s)", own), true)
			return nil
		}
		if c.Kind == CmdClose {
			m.backend.Chat().CloseRoom(m.viewer, own)
			m.setStatus("closed chat room "+own, false)
			return nil
		}
		m.backend.Chat().OpenRoom(m.viewer, own)
		m.setStatus("opened chat room "+own, false)
		m.drainVisible()
		return nil
	case CmdChat:
		ctx, backend, from, text := m.ctx, m.backend, m.viewer, c.Arg
		return func() tea.Msg {
			if err := backend.SendChat(ctx, from, text); err != nil {
				return statusMsg{text: err.Error(), err: true}
			}
			return statusMsg{text: "sent"}
		}
	}
	return nil
}

func (m Model) View() string {
	s := m.styles
	var b strings.Builder

	turnLine := "waiting for start"
	if m.current != "" {
		turnLine = "turn: " + m.current
	}
	if m.over {
		turnLine = "game over"
	}
	b.WriteString(s.header.Render(fmt.Sprintf("teamgrid  %s  %s", turnLine, m.lobby)))
	b.WriteByte('\n')

	mapBody := s.help.Render("no map yet")
	mapTitle := "map"
	if m.hasView {
		mapBody = s.renderMap(m.view, m.viewOwner)
		mapTitle = m.viewOwner + "'s map"
	}
	mapPanel := s.panel.Render(s.title.Render(mapTitle) + "\n" + mapBody)
	scorePanel := s.panel.Render(s.title.Render("scores") + "\n" + renderScores(m.scores))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, mapPanel, scorePanel))
	b.WriteByte('\n')

	b.WriteString(s.panel.Render(s.title.Render("chat") + "\n" + m.chatView.View()))
	b.WriteByte('\n')

	if m.statusErr {
		b.WriteString(s.errMsg.Render(m.status))
	} else {
		b.WriteString(s.status.Render(m.status))
	}
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	b.WriteByte('\n')
	b.WriteString(s.help.Render("arrows, or w/a/s/d then enter, to move · /chat /open /close · ctrl+c quits"))
	return b.String()
}

func renderScores(scores protocol.Scores) string {
	if len(scores) == 0 {
		return "-"
	}
	var lines []string
	for _, team := range slices.Sorted(maps.Keys(scores)) {
		lines = append(lines, fmt.Sprintf("%-10s %d", team, scores[team]))
	}
	return strings.Join(lines, "\n")
}

// Run shows the UI until the user quits or ctx ends.
func Run(ctx context.Context, backend Backend, prompter *Prompter, viewer string) error {
	p := tea.NewProgram(New(ctx, backend, prompter, viewer), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
