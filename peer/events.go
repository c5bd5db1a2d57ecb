package peer

import (
	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
)

type EventKind int

const (
	EventTurn EventKind = iota + 1
	EventMap
	EventChat
	EventScores
	EventLobby
	EventPlayers
	EventPhase
	EventGameOver
)

func (k EventKind) String() string {
	switch k {
	case EventTurn:
		return "turn"
	case EventMap:
		return "map"
	case EventChat:
		return "chat"
	case EventScores:
		return "scores"
	case EventLobby:
		return "lobby"
	case EventPlayers:
		return "players"
	case EventPhase:
		return "phase"
	case EventGameOver:
		return "game_over"
	}
	return "unknown"
}

// Event tells a front end that something it may display has changed. Only
// the fields relevant to Kind are set.
type Event struct {
	Kind EventKind
	// Player is the current player for EventTurn and the map owner for
	// EventMap.
	Player string
	Team   string
	Map    game.LocalMap
	Scores protocol.Scores
	Phase  game.Phase
	// Text is a chat line or lobby status.
	Text string
}
