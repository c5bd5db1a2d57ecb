// Package protocol names the bus topics a lobby uses and encodes the payloads
// carried on them.
package protocol

import "strings"

// TopicNewGame is the global topic used to register a player with the game
// server.
const TopicNewGame = "new_game"

// StartPayload is the literal body of the start topic.
const StartPayload = "START"

// Route identifies what a topic carries.
type Route int

const (
	RouteUnknown Route = iota
	RouteLobby
	RouteGameState
	RouteScores
	RouteCurrentPlayer
	RouteTeams
	RouteClientStates
	RouteChat
	RouteMove
	RouteStart
	RouteNewGame
)

func (r Route) String() string {
	switch r {
	case RouteLobby:
		return "lobby"
	case RouteGameState:
		return "game_state"
	case RouteScores:
		return "scores"
	case RouteCurrentPlayer:
		return "current_player"
	case RouteTeams:
		return "teams"
	case RouteClientStates:
		return "client_states"
	case RouteChat:
		return "chat"
	case RouteMove:
		return "move"
	case RouteStart:
		return "start"
	case RouteNewGame:
		return TopicNewGame
	}
	return "unknown"
}

// Namespace builds topics under games/{lobby}.
type Namespace string

func (n Namespace) prefix() string { return "games/" + string(n) + "/" }

func (n Namespace) Lobby() string { return n.prefix() + "lobby" }
func (n Namespace) GameState(player string) string { return n.prefix() + player + "/game_state" }
func (n Namespace) GameStateFilter() string { return n.prefix() + "+/game_state" }
func (n Namespace) Scores() string { return n.prefix() + "scores" }
func (n Namespace) CurrentPlayer() string { return n.prefix() + "current_player" }
func (n Namespace) Teams() string { return n.prefix() + "teams" }
func (n Namespace) ClientStates() string { return n.prefix() + "client_states" }
func (n Namespace) Chat(team string) string { return n.prefix() + team + "/chat" }
func (n Namespace) Move(player string) string { return n.prefix() + player + "/move" }
func (n Namespace) Start() string { return n.prefix() + "start" }

// Parse classifies topic. For per-player and per-team topics subject is the
// player or team segment. Topics outside this lobby return RouteUnknown,
// except the global new_game topic.
func (n Namespace) Parse(topic string) (route Route, subject string) {
	if topic == TopicNewGame {
		return RouteNewGame, ""
	}
	rest, ok := strings.CutPrefix(topic, n.prefix())
	if !ok {
		return RouteUnknown, ""
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		switch parts[0] {
		case "lobby":
			return RouteLobby, ""
		case "scores":
			return RouteScores, ""
		case "current_player":
			return RouteCurrentPlayer, ""
		case "teams":
			return RouteTeams, ""
		case "client_states":
			return RouteClientStates, ""
		case "start":
			return RouteStart, ""
		}
	case 2:
		if parts[0] == "" {
			break
		}
		switch parts[1] {
		case "game_state":
			return RouteGameState, parts[0]
		case "chat":
			return RouteChat, parts[0]
		case "move":
			return RouteMove, parts[0]
		}
	}
	return RouteUnknown, ""
}
