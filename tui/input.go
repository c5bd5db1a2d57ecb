package tui

import (
	"strings"

	"github.com/brensch/teamgrid/game"
)

type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdMove
	CmdChat
	CmdOpen
	CmdClose
	CmdQuit
	CmdInvalid
)

type Command struct {
	Kind CommandKind
	Move game.Move
	Arg  string
}

var shortMoves = map[string]game.Move{
	"w": game.MoveUp,
	"a": game.MoveLeft,
	"s": game.MoveDown,
	"d": game.MoveRight,
}

// ParseCommand interprets one submitted input line.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: CmdNone}
	}
	if strings.HasPrefix(line, "/") {
		name, arg, _ := strings.Cut(line[1:], " ")
		arg = strings.TrimSpace(arg)
		switch strings.ToLower(name) {
		case "chat", "c":
			if arg == "" {
				return Command{Kind: CmdInvalid, Arg: "usage: /chat <text>"}
			}
			return Command{Kind: CmdChat, Arg: arg}
		case "open":
			if arg == "" {
				return Command{Kind: CmdInvalid, Arg: "usage: /open <team>"}
			}
			return Command{Kind: CmdOpen, Arg: arg}
		case "close":
			if arg == "" {
				return Command{Kind: CmdInvalid, Arg: "usage: /close <team>"}
			}
			return Command{Kind: CmdClose, Arg: arg}
		case "quit", "q":
			return Command{Kind: CmdQuit}
		}
		return Command{Kind: CmdInvalid, Arg: "unknown command /" + name}
	}
	if m, ok := shortMoves[strings.ToLower(line)]; ok {
		return Command{Kind: CmdMove, Move: m}
	}
	if m, err := game.ParseMove(line); err == nil {
		return Command{Kind: CmdMove, Move: m}
	}
	return Command{Kind: CmdInvalid, Arg: line + " is not a valid move (up/down/left/right)"}
}

// keyMove maps arrow keys to moves.
func keyMove(key string) (game.Move, bool) {
	switch key {
	case "up":
		return game.MoveUp, true
	case "down":
		return game.MoveDown, true
	case "left":
		return game.MoveLeft, true
	case "right":
		return game.MoveRight, true
	}
	return "", false
}
