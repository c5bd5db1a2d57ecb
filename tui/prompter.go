package tui

import (
	"context"

	"github.com/brensch/teamgrid/game"
)

type moveRequest struct {
	player string
	view   game.LocalMap
	reply  chan game.Move
}

// Prompter hands move requests from the engine's turn loop to the UI and
// waits for the answer. It satisfies peer.MoveSource.
type Prompter struct {
	requests chan moveRequest
}

func NewPrompter() *Prompter {
	return &Prompter{requests: make(chan moveRequest)}
}

func (p *Prompter) NextMove(ctx context.Context, player string, view game.LocalMap) (game.Move, error) {
	req := moveRequest{player: player, view: view, reply: make(chan game.Move, 1)}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case m := <-req.reply:
		return m, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
