package game

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSnapshotDecode(t *testing.T) {
	raw := `{
		"currentPosition": [1, 2],
		"teammateNames": ["Bob", "Cy"],
		"teammatePositions": [[1, 3], [0, 2]],
		"walls": [[0, 0], [9, 9]],
		"coin1": [],
		"enemyPositions": [[4, 4]],
		"score": 7
	}`
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.CurrentPosition != (Point{X: 1, Y: 2}) {
		t.Fatalf("currentPosition=%v", s.CurrentPosition)
	}
	if len(s.TeammateNames) != 2 || s.TeammateNames[1] != "Cy" {
		t.Fatalf("teammateNames=%v", s.TeammateNames)
	}
	if len(s.TeammatePositions) != 2 || s.TeammatePositions[1] != (Point{X: 0, Y: 2}) {
		t.Fatalf("teammatePositions=%v", s.TeammatePositions)
	}
	if len(s.Entities["walls"]) != 2 {
		t.Fatalf("walls=%v", s.Entities["walls"])
	}
	if _, ok := s.Entities["coin1"]; !ok {
		t.Fatalf("empty coin1 list dropped")
	}
	if _, ok := s.Entities["score"]; ok {
		t.Fatalf("non-coordinate key kept as entity")
	}
	for _, k := range []string{KeyCurrentPosition, KeyTeammateNames, KeyTeammatePositions} {
		if _, ok := s.Entities[k]; ok {
			t.Fatalf("reserved key %s kept as entity", k)
		}
	}
}

func TestSnapshotDecodeRequiresPosition(t *testing.T) {
	var s Snapshot
	if err := json.Unmarshal([]byte(`{"walls":[[1,1]]}`), &s); err == nil {
		t.Fatalf("expected error for snapshot without currentPosition")
	}
	if err := json.Unmarshal([]byte(`{"currentPosition":[1]}`), &s); err == nil {
		t.Fatalf("expected error for one-coordinate position")
	}
}

func TestSnapshotOrderedKinds(t *testing.T) {
	s := Snapshot{Entities: map[string][]Point{
		"enemyPositions": nil,
		"coin2":          nil,
		"walls":          nil,
		"coin1":          nil,
		"ants":           nil,
	}}
	got := s.orderedKinds()
	want := []string{"walls", "coin1", "coin2", "ants", "enemyPositions"}
	if len(got) != len(want) {
		t.Fatalf("kinds=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds[%d]=%q want=%q (all=%v)", i, got[i], want[i], got)
		}
	}
}

func TestParseMove(t *testing.T) {
	for in, want := range map[string]Move{"up": MoveUp, " Down ": MoveDown, "LEFT": MoveLeft, "right\n": MoveRight} {
		got, err := ParseMove(in)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseMove(%q)=%s want=%s", in, got, want)
		}
	}
	for _, in := range []string{"", "north", "U"} {
		if _, err := ParseMove(in); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("ParseMove(%q) err=%v want ErrInvalidMove", in, err)
		}
	}
}

func TestPointJSON(t *testing.T) {
	b, err := json.Marshal(Point{X: 3, Y: 7})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "[3,7]" {
		t.Fatalf("json=%s want=[3,7]", b)
	}
}
