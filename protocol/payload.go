package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brensch/teamgrid/game"
)

// Sentinels on the lobby topic that end a game.
const (
	GameOverAllCoins = "Game Over: All coins have been collected"
	GameOverPrefix   = "Game Over"
)

// IsGameOver reports whether a lobby payload announces the end of the game.
func IsGameOver(payload string) bool {
	return payload == GameOverAllCoins || strings.HasPrefix(payload, GameOverPrefix)
}

// NewGame registers one player with the game server.
type NewGame struct {
	LobbyName  string `json:"lobby_name"`
	TeamName   string `json:"team_name"`
	PlayerName string `json:"player_name"`
}

// Team is one entry of a teams payload.
type Team struct {
	Name    string
	Members []string
}

// Teams is the team -> members mapping. It travels as a JSON object but the
// key order is registration order, which fixes the turn order, so it is kept
// as a slice rather than a map.
type Teams []Team

func (ts Teams) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range ts {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(t.Name)
		if err != nil {
			return nil, err
		}
		members := t.Members
		if members == nil {
			members = []string{}
		}
		v, err := json.Marshal(members)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (ts *Teams) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode teams: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode teams: want object, got %v", tok)
	}
	var out Teams
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode teams: %w", err)
		}
		name, _ := tok.(string)
		var members []string
		if err := dec.Decode(&members); err != nil {
			return fmt.Errorf("decode team %q: %w", name, err)
		}
		out = append(out, Team{Name: name, Members: members})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode teams: %w", err)
	}
	*ts = out
	return nil
}

// ClientStates is the clientId -> phase delta published on client_states.
type ClientStates map[string]game.Phase

// Chat maps a team to one rendered chat line.
type Chat map[string]string

// Scores maps a team to its score.
type Scores map[string]int

// RenderChat formats a chat line the way every client displays it.
func RenderChat(from, text string) string {
	return from + ": " + text
}
