// Package rules holds the bot's move policy: a greedy coin grab over the four
// neighbouring cells, falling back to a back-and-forth sweep of the board.
//
// The policy only looks one step ahead. A bot boxed in on all four sides keeps
// requesting the same move; that is a known limitation, not something callers
// should try to detect.
package rules

import (
	"strings"

	"github.com/brensch/teamgrid/game"
)

// LabelSet is a set of cell labels a bot may not step onto.
type LabelSet map[string]struct{}

func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	s.Add(labels...)
	return s
}

func (s LabelSet) Add(labels ...string) {
	for _, l := range labels {
		s[l] = struct{}{}
	}
}

func (s LabelSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// DefaultBlocked covers walls, the world edge and unnamed teammates. Callers
// add every known player name on top.
func DefaultBlocked() LabelSet {
	return NewLabelSet(game.LabelWall, game.LabelOutOfBounds, game.LabelTeammate)
}

// IsCoin reports whether a cell label carries a coin.
func IsCoin(label string) bool {
	return strings.Contains(label, game.CoinMarker)
}

// Decide picks the next move for a bot standing at the centre of m.
//
// Coins next to the bot are taken first, preferring up, left, right, down.
// Otherwise the bot sweeps: it walks vertically in the ScaleUp direction until
// blocked, then steps sideways in the ScaleRight direction and reverses.
func Decide(m game.LocalMap, st game.BotState, blocked LabelSet) (game.Move, game.BotState) {
	for _, mv := range game.Moves {
		if IsCoin(m.Neighbor(mv)) {
			return mv, st
		}
	}

	isBlocked := func(mv game.Move) bool { return blocked.Has(m.Neighbor(mv)) }
	vertical := func() game.Move {
		if st.ScaleUp {
			return game.MoveUp
		}
		return game.MoveDown
	}
	horizontal := func() game.Move {
		if st.ScaleRight {
			return game.MoveRight
		}
		return game.MoveLeft
	}

	upB, downB := isBlocked(game.MoveUp), isBlocked(game.MoveDown)
	leftB, rightB := isBlocked(game.MoveLeft), isBlocked(game.MoveRight)

	if upB && downB {
		st.ScaleUp = !st.ScaleUp
	}
	if leftB && rightB {
		st.ScaleRight = !st.ScaleRight
	}
	// Heading into a corner: sweep the other way along the row.
	if isBlocked(vertical()) && isBlocked(horizontal()) {
		st.ScaleRight = !st.ScaleRight
	}

	v := vertical()
	if !isBlocked(v) {
		return v, st
	}

	st.ScaleUp = !st.ScaleUp
	if h := horizontal(); !isBlocked(h) {
		return h, st
	}
	st.ScaleRight = !st.ScaleRight
	if h := horizontal(); !isBlocked(h) {
		return h, st
	}
	if back := vertical(); !isBlocked(back) {
		return back, st
	}
	return v, st
}
