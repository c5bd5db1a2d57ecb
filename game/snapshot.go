package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Snapshot keys with special meaning. Every other key is a coordinate list for
// some entity kind (walls, coin1, enemyPositions, ...).
const (
	KeyCurrentPosition   = "currentPosition"
	KeyTeammateNames     = "teammateNames"
	KeyTeammatePositions = "teammatePositions"
)

// Snapshot is the per-player game state published by the game server on
// games/{lobby}/{player}/game_state. The peer only reads it.
type Snapshot struct {
	CurrentPosition   Point
	TeammateNames     []string
	TeammatePositions []Point
	// Entities holds every other coordinate list keyed by kind name.
	Entities map[string][]Point
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	pos, ok := raw[KeyCurrentPosition]
	if !ok {
		return fmt.Errorf("decode snapshot: missing %s", KeyCurrentPosition)
	}
	if err := json.Unmarshal(pos, &s.CurrentPosition); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", KeyCurrentPosition, err)
	}

	if v, ok := raw[KeyTeammateNames]; ok {
		if err := json.Unmarshal(v, &s.TeammateNames); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", KeyTeammateNames, err)
		}
	}
	if v, ok := raw[KeyTeammatePositions]; ok {
		if err := json.Unmarshal(v, &s.TeammatePositions); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", KeyTeammatePositions, err)
		}
	}

	s.Entities = make(map[string][]Point, len(raw))
	for kind, v := range raw {
		switch kind {
		case KeyCurrentPosition, KeyTeammateNames, KeyTeammatePositions:
			continue
		}
		var pts []Point
		if err := json.Unmarshal(v, &pts); err != nil {
			// Not a coordinate list; nothing to draw.
			continue
		}
		s.Entities[kind] = pts
	}
	return nil
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Entities)+3)
	for kind, pts := range s.Entities {
		out[kind] = pts
	}
	out[KeyCurrentPosition] = s.CurrentPosition
	if s.TeammateNames != nil {
		out[KeyTeammateNames] = s.TeammateNames
	}
	if s.TeammatePositions != nil {
		out[KeyTeammatePositions] = s.TeammatePositions
	}
	return json.Marshal(out)
}

// kindRank orders entity kinds for projection: walls, coins, everything else.
// Teammates and the owner are drawn after all of these.
func kindRank(kind string) int {
	switch {
	case kind == "walls" || kind == "obstacles":
		return 0
	case strings.HasPrefix(kind, "coin"):
		return 1
	default:
		return 2
	}
}

// orderedKinds returns the entity kinds in the canonical overwrite order.
func (s *Snapshot) orderedKinds() []string {
	kinds := make([]string, 0, len(s.Entities))
	for kind := range s.Entities {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		ri, rj := kindRank(kinds[i]), kindRank(kinds[j])
		if ri != rj {
			return ri < rj
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}
