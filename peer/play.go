package peer

import (
	"context"
	"errors"
	"fmt"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/registry"
	"github.com/brensch/teamgrid/rules"
	"github.com/brensch/teamgrid/store"
	"github.com/brensch/teamgrid/transport"
	"github.com/brensch/teamgrid/turn"
)

// MoveSource supplies moves for local user players. Implementations re-prompt
// on invalid input themselves and only return an error when they stop.
type MoveSource interface {
	NextMove(ctx context.Context, player string, view game.LocalMap) (game.Move, error)
}

// PlayTurns runs the turn loop until the game ends, returning nil on a normal
// end of game. On a local player's turn it waits for that player's next map,
// picks a move, publishes it and advances the turn. Otherwise it waits for
// the current player to change.
func (e *Engine) PlayTurns(ctx context.Context, input MoveSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.over:
		case <-e.done:
		case <-ctx.Done():
		}
		cancel()
	}()

	for {
		if e.sched.State() == turn.Finished {
			return nil
		}
		cur := e.sched.Current()
		if cur == "" || !e.reg.IsLocal(cur) {
			if _, err := e.sched.AwaitChange(ctx, cur); err != nil {
				return e.stopReason(err)
			}
			continue
		}
		// The same player may move again straight away, for example when
		// playing alone, so there is no wait here.
		if err := e.playTurn(ctx, cur, input); err != nil {
			return e.stopReason(err)
		}
	}
}

func (e *Engine) stopReason(err error) error {
	select {
	case <-e.over:
		return nil
	default:
	}
	select {
	case <-e.done:
		if werr := e.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
			return werr
		}
	default:
	}
	return err
}

func (e *Engine) playTurn(ctx context.Context, name string, input MoveSource) error {
	view, err := e.reg.AwaitMap(ctx, name)
	if err != nil {
		return fmt.Errorf("await map for %s: %w", name, err)
	}
	p, _ := e.reg.Player(name)

	var move game.Move
	switch p.Kind {
	case game.KindBot:
		blocked := rules.DefaultBlocked()
		blocked.Add(e.reg.Names()...)
		var st game.BotState
		move, st = rules.Decide(view, e.reg.BotState(name), blocked)
		e.reg.SetBotState(name, st)
	default:
		if input == nil {
			return fmt.Errorf("no move source for user %s", name)
		}
		move, err = input.NextMove(ctx, name, view)
		if err != nil {
			return fmt.Errorf("read move for %s: %w", name, err)
		}
	}

	if err := e.bus.Publish(ctx, e.ns.Move(name), []byte(move), transport.AtLeastOnce); err != nil {
		return fmt.Errorf("publish move for %s: %w", name, err)
	}
	moveNo := e.countMove(name)
	e.logger.Info("move", "player", name, "move", move, "move_no", moveNo)
	e.record(p, move, view, moveNo)

	if _, err := e.sched.Advance(ctx, name); err != nil {
		return err
	}
	return nil
}

// countMove returns name's move number, starting at 1. Only the owning
// client moves a player, so the number is the same whatever notices other
// clients saw.
func (e *Engine) countMove(name string) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moves[name]++
	return e.moves[name]
}

func (e *Engine) record(p registry.Player, move game.Move, view game.LocalMap, moveNo int32) {
	if e.rec == nil {
		return
	}
	cells := make([]string, 0, game.ViewSize*game.ViewSize)
	for i := range view {
		cells = append(cells, view[i][:]...)
	}
	row := store.TurnRow{
		Lobby:  e.cfg.Lobby,
		Turn:   moveNo,
		Player: p.Name,
		Team:   p.Team,
		Kind:   string(p.Kind),
		Move:   string(move),
		PosX:   -1,
		PosY:   -1,
		View:   cells,
	}
	if p.HasMap {
		row.PosX, row.PosY = int32(p.Position.X), int32(p.Position.Y)
	}
	e.rec.Record(row)
}

func (e *Engine) TeamOf(player string) string { return e.reg.TeamOf(player) }

// SendChat publishes text from a local player to that player's team.
func (e *Engine) SendChat(ctx context.Context, from, text string) error {
	team := e.reg.TeamOf(from)
	if team == "" {
		return fmt.Errorf("send chat from %s: %w", from, registry.ErrUnknownPlayer)
	}
	return e.chat.Send(ctx, team, from, text)
}
