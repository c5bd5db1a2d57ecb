package game

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	ViewSize   = 5
	ViewCenter = ViewSize / 2
)

// Cell labels with a fixed marker. Walls and the world edge share a marker
// because both stop movement the same way.
const (
	LabelFree        = "__"
	LabelOutOfBounds = "XX"
	LabelWall        = "XX"
	CoinMarker       = "$"
	// LabelTeammate marks a teammate whose name the snapshot left out.
	LabelTeammate    = "Teammate"
)

var markers = map[string]string{
	"walls":     LabelWall,
	"obstacles": LabelWall,
	"coin1":     "$1",
	"coin2":     "$2",
	"coin3":     "$3",
}

// Marker returns the short label drawn for an entity kind.
func Marker(kind string) string {
	if m, ok := markers[kind]; ok {
		return m
	}
	return capitalize(kind)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// LocalMap is a player's 5x5 view of the world, indexed [i][j] where i follows
// the first world coordinate and j the second. The owner is always at
// [ViewCenter][ViewCenter].
type LocalMap [ViewSize][ViewSize]string

// At returns the label at (i, j), or LabelOutOfBounds outside the grid.
func (m *LocalMap) At(i, j int) string {
	if i < 0 || i >= ViewSize || j < 0 || j >= ViewSize {
		return LabelOutOfBounds
	}
	return m[i][j]
}

// Neighbor returns the label of the cell one step from the centre in move's
// direction.
func (m *LocalMap) Neighbor(move Move) string {
	di, dj := move.Offset()
	return m.At(ViewCenter+di, ViewCenter+dj)
}

func (m *LocalMap) String() string {
	var b strings.Builder
	for i := 0; i < ViewSize; i++ {
		b.WriteString(strings.Join(m[i][:], "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

// Project builds owner's local view from an authoritative snapshot. Entities
// are drawn walls first, then coins, then other kinds, then teammates, then
// the owner; later draws overwrite earlier ones. Coordinates outside the view
// or outside the world are ignored.
func Project(owner string, s *Snapshot) LocalMap {
	var m LocalMap
	topLeft := s.CurrentPosition.Sub(Point{X: ViewCenter, Y: ViewCenter})

	for i := 0; i < ViewSize; i++ {
		for j := 0; j < ViewSize; j++ {
			if topLeft.Add(Point{X: i, Y: j}).InWorld() {
				m[i][j] = LabelFree
			} else {
				m[i][j] = LabelOutOfBounds
			}
		}
	}

	set := func(p Point, label string) {
		if !p.InWorld() {
			return
		}
		i, j := p.X-topLeft.X, p.Y-topLeft.Y
		if i < 0 || i >= ViewSize || j < 0 || j >= ViewSize {
			return
		}
		m[i][j] = label
	}

	for _, kind := range s.orderedKinds() {
		label := Marker(kind)
		for _, p := range s.Entities[kind] {
			set(p, label)
		}
	}
	for k, p := range s.TeammatePositions {
		name := LabelTeammate
		if k < len(s.TeammateNames) {
			name = s.TeammateNames[k]
		}
		set(p, name)
	}
	set(s.CurrentPosition, owner)

	return m
}
