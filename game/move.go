package game

import (
	"errors"
	"strings"
)

// Move is a single step request published on games/{lobby}/{player}/move.
type Move string

const (
	MoveUp    Move = "UP"
	MoveDown  Move = "DOWN"
	MoveLeft  Move = "LEFT"
	MoveRight Move = "RIGHT"
)

// Moves lists every move in the order the bot policy prefers coins.
var Moves = []Move{MoveUp, MoveLeft, MoveRight, MoveDown}

var ErrInvalidMove = errors.New("invalid move")

// ParseMove accepts a move name in any case, ignoring surrounding whitespace.
func ParseMove(s string) (Move, error) {
	switch m := Move(strings.ToUpper(strings.TrimSpace(s))); m {
	case MoveUp, MoveDown, MoveLeft, MoveRight:
		return m, nil
	}
	return "", ErrInvalidMove
}

// Offset is the LocalMap displacement of a move: i grows downwards, j grows to
// the right.
func (m Move) Offset() (di, dj int) {
	switch m {
	case MoveUp:
		return -1, 0
	case MoveDown:
		return 1, 0
	case MoveLeft:
		return 0, -1
	case MoveRight:
		return 0, 1
	}
	return 0, 0
}

func (m Move) Opposite() Move {
	switch m {
	case MoveUp:
		return MoveDown
	case MoveDown:
		return MoveUp
	case MoveLeft:
		return MoveRight
	case MoveRight:
		return MoveLeft
	}
	return m
}
