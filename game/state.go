// Package game defines the value types shared by every peer component.
//
// These types describe what a client can reconstruct from bus messages: who the
// players are, which phase a client is in, and the bounded view a player has of
// the world. The authoritative world itself lives on the external game server.
package game

import (
	"encoding/json"
	"fmt"
)

// World dimensions of the authoritative board. The peer never sees the whole
// board; it only needs the bounds to tell free cells from out-of-bounds ones.
const (
	WorldWidth  = 10
	WorldHeight = 10
)

// Point is a world coordinate. On the wire it is a two element array [x, y].
type Point struct {
	X int
	Y int
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// InWorld reports whether p lies inside [0,WorldWidth)x[0,WorldHeight).
func (p Point) InWorld() bool {
	return p.X >= 0 && p.X < WorldWidth && p.Y >= 0 && p.Y < WorldHeight
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(b []byte) error {
	var xy []int
	if err := json.Unmarshal(b, &xy); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("decode point: want 2 coordinates, got %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Kind says who decides a player's moves.
type Kind string

const (
	KindUser Kind = "user"
	KindBot  Kind = "bot"
)

func (k Kind) Valid() bool { return k == KindUser || k == KindBot }

// Phase is the lifecycle phase of one client process.
type Phase string

const (
	PhaseTitle    Phase = "title"
	PhaseLobby    Phase = "lobby"
	PhaseReady    Phase = "ready"
	PhaseInGame   Phase = "in_game"
	PhaseGameOver Phase = "game_over"
)

// Rank orders phases along a client's lifecycle. Unknown phases rank -1.
func (p Phase) Rank() int {
	switch p {
	case PhaseTitle:
		return 0
	case PhaseLobby:
		return 1
	case PhaseReady:
		return 2
	case PhaseInGame:
		return 3
	case PhaseGameOver:
		return 4
	}
	return -1
}

// Mode is what a player's console is currently focused on.
type Mode string

const (
	ModePlay Mode = "play"
	ModeChat Mode = "chat"
)

// BotState is the working memory of the sweep policy between turns.
type BotState struct {
	ScaleUp    bool
	ScaleRight bool
}
