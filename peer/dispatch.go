package peer

import (
	"context"
	"encoding/json"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
	"github.com/brensch/teamgrid/transport"
	"github.com/brensch/teamgrid/turn"
)

// dispatch applies inbound messages one at a time, so messages on a topic
// are handled in arrival order.
func (e *Engine) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-e.bus.Messages():
			if !ok {
				e.logger.Warn("transport closed")
				return transport.ErrClosed
			}
			e.handle(ctx, msg)
		}
	}
}

func (e *Engine) handle(ctx context.Context, msg transport.Message) {
	route, subject := e.ns.Parse(msg.Topic)
	switch route {
	case protocol.RouteLobby:
		e.handleLobby(ctx, string(msg.Payload))
	case protocol.RouteGameState:
		e.handleGameState(subject, msg.Payload)
	case protocol.RouteScores:
		var scores protocol.Scores
		if !e.decode(msg, &scores) {
			return
		}
		e.mu.Lock()
		e.scores = scores
		e.mu.Unlock()
		e.emit(Event{Kind: EventScores, Scores: scores})
	case protocol.RouteCurrentPlayer:
		name := string(msg.Payload)
		if !e.sched.SetCurrent(name) {
			e.logger.Debug("dropping current player notice", "player", name)
			return
		}
		e.emit(Event{Kind: EventTurn, Player: name})
	case protocol.RouteTeams:
		var teams protocol.Teams
		if !e.decode(msg, &teams) {
			return
		}
		if e.sched.State() == turn.NotStarted {
			e.mu.Lock()
			e.agreedTeams = teams
			e.mu.Unlock()
		}
		if n := e.reg.MergeTeams(teams); n > 0 {
			e.logger.Debug("learned players", "added", n)
			e.emit(Event{Kind: EventPlayers})
		}
	case protocol.RouteClientStates:
		var states protocol.ClientStates
		if !e.decode(msg, &states) {
			return
		}
		e.sync.Merge(states)
	case protocol.RouteChat:
		var c protocol.Chat
		if !e.decode(msg, &c) {
			return
		}
		for team, line := range c {
			// A chat topic only carries lines for its own team.
			if team != subject {
				continue
			}
			e.chat.Relay(team, line)
			e.emit(Event{Kind: EventChat, Team: team, Text: line})
		}
	case protocol.RouteStart:
		if string(msg.Payload) != protocol.StartPayload {
			e.logger.Debug("ignoring start payload", "payload", string(msg.Payload))
			return
		}
		e.onStart()
	default:
		e.logger.Debug("ignoring message", "topic", msg.Topic)
	}
}

func (e *Engine) decode(msg transport.Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		e.logger.Warn("dropping malformed message", "topic", msg.Topic, "err", err)
		return false
	}
	return true
}

func (e *Engine) handleLobby(ctx context.Context, status string) {
	e.mu.Lock()
	e.lobbyStatus = status
	e.mu.Unlock()
	if turn.IsGameOver(status) {
		e.finish(ctx, status)
		return
	}
	e.emit(Event{Kind: EventLobby, Text: status})
}

func (e *Engine) handleGameState(player string, payload []byte) {
	var snap game.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		e.logger.Warn("dropping malformed snapshot", "player", player, "err", err)
		return
	}
	if !e.reg.RecordSnapshot(player, &snap) {
		e.logger.Debug("snapshot for unknown player", "player", player)
		return
	}
	p, _ := e.reg.Player(player)
	e.emit(Event{Kind: EventMap, Player: player, Team: p.Team, Map: p.Map})
}
